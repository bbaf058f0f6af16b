// Package diag implements the pipeline's resource sampler: periodic process
// CPU and RSS usage, the same host-pressure signal the teacher's
// pkg/system/system.go fed to its web dashboard, read here through
// Sampler.Stats instead of a standalone dashboard endpoint. Only a failed
// sample is reported on the logger's event feed, as a warning.
package diag

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/log"
)

// Stats is one sample of process resource usage.
type Stats struct {
	CPUPercent float64
	RSSBytes   uint64
}

// procFunc abstracts *process.Process so tests can substitute a fake.
type procFunc interface {
	CPUPercent() (float64, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
}

// Sampler periodically refreshes Stats until Run's context is canceled.
type Sampler struct {
	proc   procFunc
	period time.Duration
	logger *log.Logger

	mu    sync.Mutex
	stats Stats
	o     sync.Once
}

// New returns a Sampler for the current process. period defaults to 10s,
// matching the teacher's system.New duration, if zero or negative.
func New(period time.Duration, logger *log.Logger) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errs.New(errs.BadParameter, "diag.New", err)
	}
	if period <= 0 {
		period = 10 * time.Second
	}
	return &Sampler{proc: proc, period: period, logger: logger}, nil
}

func (s *Sampler) update() error {
	cpuPct, err := s.proc.CPUPercent()
	if err != nil {
		return errs.New(errs.TransientIO, "diag.Sampler.update", err)
	}
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return errs.New(errs.TransientIO, "diag.Sampler.update", err)
	}

	s.mu.Lock()
	s.stats = Stats{CPUPercent: cpuPct, RSSBytes: mem.RSS}
	s.mu.Unlock()
	return nil
}

// Run drives periodic sampling until ctx is canceled. Safe to call once;
// a second call is a no-op, mirroring the teacher's StatusLoop sync.Once
// guard.
func (s *Sampler) Run(ctx context.Context) {
	s.o.Do(func() {
		t := time.NewTicker(s.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.update(); err != nil && s.logger != nil {
					s.logger.Warn().Src("diag").Msgf("could not sample resource usage: %v", err)
				}
			}
		}
	})
}

// Stats returns the most recently sampled Stats. Zero-valued until the
// first tick completes.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
