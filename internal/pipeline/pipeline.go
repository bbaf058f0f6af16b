// Package pipeline implements the orchestrator: the single object an
// application drives to register elementary streams, feed it encoded
// frames, and control the Idle/Configured/Streaming lifecycle spec.md §4.1
// describes. It owns frame routing (inline codec-config splitting), the
// bounded per-output channel spec.md §5 requires, and the muxing+sink task
// that drains it.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/diag"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/log"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/regulator"
)

// State is the orchestrator's lifecycle state (spec.md §4.1 "State
// machine").
type State uint8

// Lifecycle states.
const (
	StateIdle State = iota
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// stopDrainTimeout bounds stop_stream's wait for the muxing+sink task to
// finish draining already-buffered frames (spec.md §5 "bounded by a 2s
// timeout").
const stopDrainTimeout = 2 * time.Second

// Target is the write destination a Pipeline drives: either a single
// internal/endpoint.Endpoint or an internal/endpoint.CombineEndpoint,
// wrapped to take the sink descriptor list start_stream needs.
type Target interface {
	Open(descs []config.SinkDescriptor) error
	StartStream() error
	Write(f *media.Frame) error
	StopStream() error
	Close() error
}

// VideoAdder registers a video track with id on one concrete container
// muxer instance.
type VideoAdder func(id int, cfg media.VideoConfig) error

// AudioAdder registers an audio track with id on one concrete container
// muxer instance.
type AudioAdder func(id int, cfg media.AudioConfig) error

// MuxerInstance is one independent container-muxer instance: combine mode
// runs one per configured sink, each with its own continuity counters/box
// offsets, fed the same frames (spec.md §4.6 "duplicates the frame's
// buffer view").
type MuxerInstance struct {
	AddVideo VideoAdder
	AddAudio AudioAdder
}

// Pipeline is the orchestrator (spec.md §4.1).
type Pipeline struct {
	mu sync.Mutex

	cfg    config.PipelineConfig
	logger *log.Logger
	target Target
	muxers []MuxerInstance

	state        State
	closed       bool
	fatalErr     error
	streams      map[int]struct{}
	nextStreamID int

	frameCh chan *media.Frame
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	reg        *regulator.Regulator
	regCancel  context.CancelFunc
	regStatsFn func() regulator.Stats

	diagEnabled bool
	diagPeriod  time.Duration
	diagSampler *diag.Sampler
	diagCancel  context.CancelFunc
}

// New returns a Pipeline ready for add_stream calls. target is the
// already-composed write destination (a single endpoint or a combine
// endpoint); muxers are the same-kind container-muxer instances backing it,
// one per configured sink, used only to register tracks.
func New(cfg config.PipelineConfig, logger *log.Logger, target Target, muxers []MuxerInstance) *Pipeline {
	capacity := cfg.ChannelCapacity
	if capacity <= 0 {
		capacity = config.Defaults().ChannelCapacity
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		target:  target,
		muxers:  muxers,
		streams: map[int]struct{}{},
		frameCh: make(chan *media.Frame, capacity),
	}
}

// AddStream registers one elementary stream and returns the id the
// producer must tag frames with (spec.md §4.1 "add_stream"). Exactly one of
// video/audio is consulted, selected by mime.IsVideo()/IsAudio().
func (p *Pipeline) AddStream(mime media.Mime, video media.VideoConfig, audio media.AudioConfig) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpenLocked(); err != nil {
		return 0, err
	}
	if p.state == StateStreaming {
		return 0, errs.New(errs.InvalidState, "pipeline.Pipeline.AddStream", fmt.Errorf("add_stream after start_stream"))
	}

	id := p.nextStreamID + 1
	for _, m := range p.muxers {
		var err error
		switch {
		case mime.IsVideo():
			err = m.AddVideo(id, video)
		case mime.IsAudio():
			err = m.AddAudio(id, audio)
		default:
			err = errs.New(errs.BadParameter, "pipeline.Pipeline.AddStream", fmt.Errorf("unsupported mime %q", mime))
		}
		if err != nil {
			return 0, err
		}
	}
	p.nextStreamID = id
	p.streams[id] = struct{}{}
	p.state = StateConfigured
	return id, nil
}

// StartStream opens every sink and initializes every muxer instance,
// transitioning to Streaming (spec.md §4.1 "start_stream").
func (p *Pipeline) StartStream() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpenLocked(); err != nil {
		return err
	}
	if len(p.streams) == 0 {
		return errs.New(errs.Unconfigured, "pipeline.Pipeline.StartStream", fmt.Errorf("no streams added"))
	}
	if p.state == StateStreaming {
		return errs.New(errs.InvalidState, "pipeline.Pipeline.StartStream", fmt.Errorf("already streaming"))
	}

	if err := p.target.Open(p.cfg.Sinks); err != nil {
		return err
	}
	if err := p.target.StartStream(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state = StateStreaming

	p.wg.Add(1)
	go p.run(ctx)

	if p.reg != nil {
		regCtx, regCancel := context.WithCancel(context.Background())
		p.regCancel = regCancel
		period := p.cfg.Regulator.Period
		if period <= 0 {
			period = config.Defaults().Regulator.Period
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.reg.Run(regCtx, period, p.regStatsFn)
		}()
	}

	if p.diagEnabled {
		sampler, err := diag.New(p.diagPeriod, p.logger)
		if err != nil {
			p.logWarn("pipeline", "could not start resource sampler: "+err.Error())
		} else {
			p.diagSampler = sampler
			diagCtx, diagCancel := context.WithCancel(context.Background())
			p.diagCancel = diagCancel
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				sampler.Run(diagCtx)
			}()
		}
	}
	return nil
}

// EnableRegulator arms the bitrate regulator for the next start_stream,
// using cfg's configured bounds and period (spec.md §4.7). statsFn supplies
// each tick's transport sample (typically derived from an SRT sink's
// cumulative counters by the caller, since only the caller's concrete sink
// wiring knows which sink is the regulated transport); setVideo/setAudio
// commit the regulator's targets to the encoder. A no-op if
// cfg.Regulator.Enabled is false.
func (p *Pipeline) EnableRegulator(statsFn func() regulator.Stats, setVideo, setAudio regulator.TargetFunc) {
	if !p.cfg.Regulator.Enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bounds := regulator.Bounds{
		MinVideo: p.cfg.Regulator.MinVideoBitrate,
		MaxVideo: p.cfg.Regulator.MaxVideoBitrate,
		MinAudio: p.cfg.Regulator.MinAudioBitrate,
		MaxAudio: p.cfg.Regulator.MaxAudioBitrate,
	}
	p.reg = regulator.New(bounds, bounds.MaxVideo, bounds.MaxAudio, setVideo, setAudio)
	p.regStatsFn = statsFn
}

// EnableDiagnostics arms a process CPU/RSS sampler, started fresh on every
// start_stream (spec.md §4.12) since diag.Sampler.Run is one-shot per
// instance, and whose latest reading is readable through Stats. Readings
// are not published on logger's feed; only a failed sample is logged there
// as a warning. A zero period uses diag.New's default.
func (p *Pipeline) EnableDiagnostics(period time.Duration) {
	p.mu.Lock()
	p.diagEnabled = true
	p.diagPeriod = period
	p.mu.Unlock()
}

// Stats returns the most recent resource-usage sample, or the zero value
// if EnableDiagnostics was never called or start_stream has not sampled
// yet.
func (p *Pipeline) Stats() diag.Stats {
	p.mu.Lock()
	s := p.diagSampler
	p.mu.Unlock()
	if s == nil {
		return diag.Stats{}
	}
	return s.Stats()
}

// Write routes one frame to the target, splitting any inline codec-config
// NAL units and enqueuing onto the bounded channel (spec.md §4.1 "write").
// Non-blocking from the caller's perspective: on overflow the oldest
// buffered frame is dropped and a warning logged (spec.md §5 "drop-oldest
// overflow policy").
func (p *Pipeline) Write(f *media.Frame) error {
	p.mu.Lock()
	if err := p.checkOpenLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.state != StateStreaming {
		p.mu.Unlock()
		return errs.New(errs.InvalidState, "pipeline.Pipeline.Write", fmt.Errorf("start_stream not called"))
	}
	if _, ok := p.streams[f.StreamID]; !ok {
		p.mu.Unlock()
		return errs.New(errs.BadParameter, "pipeline.Pipeline.Write", fmt.Errorf("unknown stream id %d", f.StreamID))
	}
	p.mu.Unlock()

	splitInlineCodecConfig(f)

	select {
	case p.frameCh <- f:
		return nil
	default:
	}

	select {
	case old := <-p.frameCh:
		old.Release()
		p.logWarn("pipeline", fmt.Sprintf("channel overflow: dropped oldest frame for stream %d", old.StreamID))
	default:
	}
	select {
	case p.frameCh <- f:
	default:
		f.Release()
		p.logWarn("pipeline", fmt.Sprintf("channel overflow: dropped frame for stream %d", f.StreamID))
	}
	return nil
}

// run is the muxing+sink task: it drains frameCh and invokes the target,
// which internally drives the muxer and then the sink synchronously
// (grounded on recorder.go's single select-loop consuming one event
// channel; spec.md §5 models muxing and sink I/O as separate tasks, but
// since every muxer here writes straight into its sink's io.Writer/Sink
// adapter, a second queue between them would add no real concurrency).
func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case f := <-p.frameCh:
			p.writeFrame(f)
		case <-ctx.Done():
			p.drainRemaining()
			return
		}
	}
}

// drainRemaining flushes whatever was already buffered when stop_stream (or
// release) signaled, without blocking for more (spec.md §5 "stop_stream()
// awaits drain bounded by a 2s timeout": since this loop never blocks
// waiting for new frames, it always finishes well inside that bound).
func (p *Pipeline) drainRemaining() {
	for {
		select {
		case f := <-p.frameCh:
			p.writeFrame(f)
		default:
			return
		}
	}
}

func (p *Pipeline) writeFrame(f *media.Frame) {
	defer f.Release()
	if err := p.target.Write(f); err != nil {
		kind, _ := errs.KindOf(err)
		switch kind {
		case errs.Closed, errs.ConnectionLost:
			p.mu.Lock()
			if p.fatalErr == nil {
				p.fatalErr = err
			}
			p.mu.Unlock()
			p.logWarn("pipeline", fmt.Sprintf("fatal write error, stream %d: %v", f.StreamID, err))
		default:
			p.logWarn("pipeline", fmt.Sprintf("dropped frame, stream %d: %v", f.StreamID, err))
		}
	}
}

// StopStream flushes the muxer(s) and sink(s) and returns to Idle
// (spec.md §4.1 "stop_stream"). Idempotent: calling it from Idle or
// Configured is a no-op.
func (p *Pipeline) StopStream() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errs.New(errs.Closed, "pipeline.Pipeline.StopStream", fmt.Errorf("released"))
	}
	if p.state != StateStreaming {
		p.mu.Unlock()
		return nil
	}
	p.state = StateIdle
	cancel := p.cancel
	regCancel := p.regCancel
	diagCancel := p.diagCancel
	p.cancel = nil
	p.regCancel = nil
	p.diagCancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if regCancel != nil {
		regCancel()
	}
	if diagCancel != nil {
		diagCancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopDrainTimeout):
		p.logWarn("pipeline", "stop_stream drain exceeded timeout")
	}

	return p.target.StopStream()
}

// Release tears down the pipeline unconditionally and permanently, from any
// state (spec.md §4.1 "release()"). Unlike StopStream it does not drain:
// background tasks are canceled immediately.
func (p *Pipeline) Release() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	streaming := p.state == StateStreaming
	cancel := p.cancel
	regCancel := p.regCancel
	diagCancel := p.diagCancel
	p.cancel = nil
	p.regCancel = nil
	p.diagCancel = nil
	p.state = StateIdle
	p.mu.Unlock()

	if streaming {
		if cancel != nil {
			cancel()
		}
		if regCancel != nil {
			regCancel()
		}
		if diagCancel != nil {
			diagCancel()
		}
		p.wg.Wait()
	}
	return p.target.Close()
}

// State returns the orchestrator's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) checkOpenLocked() error {
	if p.closed {
		return errs.New(errs.Closed, "pipeline.Pipeline", fmt.Errorf("released"))
	}
	if p.fatalErr != nil {
		return errs.New(errs.Closed, "pipeline.Pipeline", fmt.Errorf("fatal error on a prior write: %w", p.fatalErr))
	}
	return nil
}

func (p *Pipeline) logWarn(src, msg string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn().Src(src).Msg(msg)
}
