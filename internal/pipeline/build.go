package pipeline

import (
	"fmt"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/endpoint"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/log"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/muxer/flv"
	"github.com/thibaultbee/streampack-go/internal/muxer/fmp4"
	"github.com/thibaultbee/streampack-go/internal/muxer/ts"
	"github.com/thibaultbee/streampack-go/internal/sink"
)

// singleTarget adapts a lone *endpoint.Endpoint to Target, which otherwise
// speaks in terms of a descriptor list (what endpoint.CombineEndpoint
// already takes, for more than one sink).
type singleTarget struct{ e *endpoint.Endpoint }

func (t singleTarget) Open(descs []config.SinkDescriptor) error {
	if len(descs) != 1 {
		return errs.New(errs.BadParameter, "pipeline.singleTarget.Open",
			fmt.Errorf("exactly one sink descriptor required, got %d", len(descs)))
	}
	return t.e.Open(descs[0])
}
func (t singleTarget) StartStream() error         { return t.e.StartStream() }
func (t singleTarget) Write(f *media.Frame) error { return t.e.Write(f) }
func (t singleTarget) StopStream() error          { return t.e.StopStream() }
func (t singleTarget) Close() error               { return t.e.Close() }

// newMuxerPair builds one fresh container-muxer instance of kind, wrapped
// both as an endpoint.Muxer (for Start/Write/Stop) and as a MuxerInstance
// (for add_stream's AddVideo/AddAudio calls, whose signatures differ per
// container per spec.md §4.2-§4.4).
func newMuxerPair(kind config.MuxerKind, cfg config.PipelineConfig) (endpoint.Muxer, MuxerInstance, error) {
	switch kind {
	case config.MuxerTS:
		m := ts.New(cfg.PSICadenceMs, cfg.PCRMaxIntervalMs)
		return endpoint.WrapIOWriterMuxer(m.Start, m.Write, m.Stop), MuxerInstance{
			AddVideo: func(id int, c media.VideoConfig) error { return m.AddStreamVideo(id, c.Mime) },
			AddAudio: func(id int, c media.AudioConfig) error {
				return m.AddStreamAudio(id, c.Mime, c.SampleRate, c.ChannelConfig)
			},
		}, nil

	case config.MuxerFMP4:
		m := fmp4.New(cfg.SegmentTargetMs)
		return endpoint.WrapIOWriterMuxer(m.Start, m.Write, m.Stop), MuxerInstance{
			AddVideo: func(id int, c media.VideoConfig) error {
				gotID, err := m.AddStreamVideo(c)
				return checkFMP4TrackID(id, gotID, err)
			},
			AddAudio: func(id int, c media.AudioConfig) error {
				gotID, err := m.AddStreamAudio(c)
				return checkFMP4TrackID(id, gotID, err)
			},
		}, nil

	case config.MuxerFLV:
		m := flv.New(cfg.EnhancedFLV)
		return endpoint.FLVMuxer{M: m}, MuxerInstance{
			AddVideo: func(id int, c media.VideoConfig) error { return m.AddStreamVideo(id, c) },
			AddAudio: func(id int, c media.AudioConfig) error { return m.AddStreamAudio(id, c) },
		}, nil

	default:
		return nil, MuxerInstance{}, errs.New(errs.BadParameter, "pipeline.newMuxerPair",
			fmt.Errorf("unsupported muxer kind %q", kind))
	}
}

// checkFMP4TrackID asserts that fmp4's self-assigned track id (it auto-
// increments, unlike ts/flv which take a caller-supplied id) still lines up
// with the orchestrator's own stream id counter. They can only drift if a
// muxer instance's AddStream* is called out of step with the others, which
// would itself be an orchestrator bug.
func checkFMP4TrackID(wantID, gotID int, err error) error {
	if err != nil {
		return err
	}
	if gotID != wantID {
		return errs.New(errs.MuxerInternal, "pipeline.checkFMP4TrackID",
			fmt.Errorf("fmp4 track id mismatch: want %d got %d", wantID, gotID))
	}
	return nil
}

// newSink constructs the concrete sink.Sink for one descriptor, wiring its
// EventFunc to logger so connection-lost/warning events are visible through
// the same pub-sub feed every other package logs through.
func newSink(desc config.SinkDescriptor, logger *log.Logger, opener sink.ContentOpener) (sink.Sink, error) {
	onEvent := func(kind sink.EventKind, msg string) {
		if logger == nil {
			return
		}
		level := log.LevelWarning
		if kind == sink.EventConnectionLost {
			level = log.LevelError
		}
		logger.Level(level).Src("sink").Msg(msg)
	}

	switch desc.Kind {
	case config.SinkFile:
		return sink.NewFile(onEvent), nil
	case config.SinkContent:
		if opener == nil {
			return nil, errs.New(errs.BadParameter, "pipeline.newSink", fmt.Errorf("content sink requires a ContentOpener"))
		}
		return sink.NewContent(opener, onEvent), nil
	case config.SinkSRT:
		return sink.NewSRT(onEvent), nil
	case config.SinkRTMP:
		return sink.NewRTMP(onEvent), nil
	default:
		return nil, errs.New(errs.BadParameter, "pipeline.newSink", fmt.Errorf("unsupported sink kind %q", desc.Kind))
	}
}

// Build wires a complete Pipeline from a validated PipelineConfig: one
// container-muxer instance and one concrete sink per configured descriptor,
// composed into a single endpoint (cfg.Sinks has one entry) or a combine
// endpoint (more than one), per spec.md §4.6. opener resolves content://
// URIs for the content sink; it may be nil if no content sink is
// configured. onCombineFailure receives per-constituent isolated failures
// when more than one sink is configured; it may be nil.
func Build(
	cfg config.PipelineConfig,
	logger *log.Logger,
	opener sink.ContentOpener,
	onCombineFailure endpoint.FailureFunc,
) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoints := make([]*endpoint.Endpoint, 0, len(cfg.Sinks))
	muxers := make([]MuxerInstance, 0, len(cfg.Sinks))
	for _, desc := range cfg.Sinks {
		muxWrap, inst, err := newMuxerPair(cfg.Muxer, cfg)
		if err != nil {
			return nil, err
		}
		s, err := newSink(desc, logger, opener)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint.New(muxWrap, s))
		muxers = append(muxers, inst)
	}

	var target Target
	if len(endpoints) == 1 {
		target = singleTarget{e: endpoints[0]}
	} else {
		target = endpoint.NewCombine(onCombineFailure, endpoints...)
	}

	return New(cfg, logger, target, muxers), nil
}
