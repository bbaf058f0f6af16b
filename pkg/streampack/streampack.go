// Package streampack is the module's public surface: everything an
// embedding application needs to build and drive a pipeline lives behind
// this one import, mirroring the teacher's own pkg/video.Server composition
// root (construct once from a declarative config, drive through a small
// method set, internals stay unexported).
package streampack

import (
	"net/http"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/diag"
	"github.com/thibaultbee/streampack-go/internal/endpoint"
	"github.com/thibaultbee/streampack-go/internal/events"
	"github.com/thibaultbee/streampack-go/internal/log"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/pipeline"
	"github.com/thibaultbee/streampack-go/internal/regulator"
	"github.com/thibaultbee/streampack-go/internal/sink"
)

// Re-exported configuration types (spec.md §6): callers build a Config the
// same way they would write the YAML document internal/config.Parse loads.
type (
	Config           = config.PipelineConfig
	SinkDescriptor   = config.SinkDescriptor
	RegulatorConfig  = config.RegulatorConfig
	MuxerKind        = config.MuxerKind
	SinkKind         = config.SinkKind
)

// Muxer/sink kind constants, re-exported so callers never import
// internal/config directly.
const (
	MuxerTS   = config.MuxerTS
	MuxerFMP4 = config.MuxerFMP4
	MuxerFLV  = config.MuxerFLV

	SinkFile    = config.SinkFile
	SinkContent = config.SinkContent
	SinkSRT     = config.SinkSRT
	SinkRTMP    = config.SinkRTMP
)

// Re-exported data-model types (spec.md §3): the types an encoder-facing
// caller constructs and passes to Pipeline.Write/AddStream.
type (
	Frame       = media.Frame
	Mime        = media.Mime
	VideoConfig = media.VideoConfig
	AudioConfig = media.AudioConfig
)

// Codec mimes.
const (
	MimeH264 = media.MimeH264
	MimeH265 = media.MimeH265
	MimeAAC  = media.MimeAAC
	MimeOpus = media.MimeOpus
)

// NewFrame builds a Frame ready for Pipeline.Write.
func NewFrame(streamID int, mime Mime, payload []byte, ptsUs int64) *Frame {
	return media.NewFrame(streamID, mime, payload, ptsUs)
}

// ContentOpener resolves a content:// sink's URI to a writable stream.
type ContentOpener = sink.ContentOpener

// FailureFunc observes one constituent sink's isolated failure in combine
// mode (spec.md §4.6).
type FailureFunc = endpoint.FailureFunc

// State is the orchestrator's lifecycle state (spec.md §4.1).
type State = pipeline.State

// Lifecycle states.
const (
	StateIdle       = pipeline.StateIdle
	StateConfigured = pipeline.StateConfigured
	StateStreaming  = pipeline.StateStreaming
)

// Stats is a diagnostics sample (spec.md §4.12).
type Stats = diag.Stats

// TransportStats and RegulatorStats mirror the regulator's reliable-UDP
// transport input and per-tick derived output (spec.md §4.7, §6).
type (
	TransportStats  = regulator.TransportStats
	RegulatorStats  = regulator.Stats
	TargetFunc      = regulator.TargetFunc
)

// DeriveRegulatorStats turns two cumulative TransportStats snapshots into
// the fractional RegulatorStats EnableRegulator's statsFn should report.
func DeriveRegulatorStats(prev, cur TransportStats, bufCapacityBytes uint64) RegulatorStats {
	return regulator.DeriveStats(prev, cur, bufCapacityBytes)
}

// Entry is one event-feed record (spec.md §4.14).
type Entry = log.Entry

// Pipeline is the orchestrator an embedding application drives: register
// streams with AddStream, start/stop with StartStream/StopStream, push
// encoded access units with Write, and tear down permanently with Release
// (spec.md §4.1).
type Pipeline struct {
	*pipeline.Pipeline
}

// DefaultConfig returns the spec-mandated default PipelineConfig (spec.md
// §4.2, §4.3, §4.7, §5), ready to have Sinks/Muxer overridden.
func DefaultConfig() Config { return config.Defaults() }

// ParseConfig unmarshals a YAML pipeline configuration document, starting
// from DefaultConfig and validating the result.
func ParseConfig(data []byte) (Config, error) { return config.Parse(data) }

// New builds a Pipeline from cfg: one container-muxer instance and one
// concrete sink per configured SinkDescriptor, composed into a single
// endpoint or a combine endpoint depending on how many sinks are
// configured (spec.md §4.6). opener resolves content:// URIs; it may be
// nil if no content sink is configured. onCombineFailure observes
// per-constituent isolated failures in combine mode; it may be nil.
// Logged output (sink warnings and connection loss, overflow and
// dropped-frame notices, resource-sampler failures) is published on
// logger's pub-sub feed, which
// Events and Listen read from; logger may be nil to discard it.
func New(cfg Config, logger *log.Logger, opener ContentOpener, onCombineFailure FailureFunc) (*Pipeline, error) {
	p, err := pipeline.Build(cfg, logger, opener, onCombineFailure)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Pipeline: p}, nil
}

// Events returns an http.Handler streaming logger's events over a
// websocket, one JSON-encoded Entry per message (spec.md §4.14). Wrap it in
// an application's own auth middleware before exposing it.
func Events(logger *log.Logger) http.Handler {
	return events.Handler(logger)
}

// Listen subscribes onEntry to this pipeline's logged events in-process,
// without a websocket hop (spec.md §4.14), returning a function that stops
// the subscription and waits for delivery to finish.
func Listen(logger *log.Logger, onEntry func(Entry)) func() {
	return events.Listen(logger, onEntry)
}
