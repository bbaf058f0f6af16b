package diag

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	cpuPct float64
	rss    uint64
	err    error
}

func (f *fakeProc) CPUPercent() (float64, error) { return f.cpuPct, f.err }
func (f *fakeProc) MemoryInfo() (*process.MemoryInfoStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &process.MemoryInfoStat{RSS: f.rss}, nil
}

func TestSamplerRunUpdatesStats(t *testing.T) {
	s := &Sampler{proc: &fakeProc{cpuPct: 12.5, rss: 4096}, period: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.CPUPercent == 12.5 && st.RSSBytes == 4096
	}, time.Second, time.Millisecond)

	cancel()
}

func TestSamplerStatsZeroBeforeFirstTick(t *testing.T) {
	s := &Sampler{proc: &fakeProc{cpuPct: 1}, period: time.Hour}
	require.Equal(t, Stats{}, s.Stats())
}
