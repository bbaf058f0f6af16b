// Package endpoint composes a muxer with a sink into a single write target
// for the pipeline orchestrator, and combines several such endpoints into
// one fan-out target (spec.md §4.6).
package endpoint

import (
	"fmt"
	"io"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/muxer/flv"
	"github.com/thibaultbee/streampack-go/internal/sink"
)

// Muxer is the subset of a container muxer's lifecycle an Endpoint drives.
// AddStream* calls happen directly against the concrete muxer before it is
// handed to New, since their signatures differ per container (spec.md §4.2-
// §4.4); Endpoint only needs the shared Start/Write/Stop shape.
type Muxer interface {
	Start(s sink.Sink) error
	Write(f *media.Frame) error
	Stop() error
}

// sinkIOWriter adapts a sink.Sink to a plain io.Writer for muxers (TS,
// fragmented MP4) that are already self-framed and so need nothing beyond
// raw bytes from their sink.
type sinkIOWriter struct{ s sink.Sink }

func (w sinkIOWriter) Write(b []byte) (int, error) {
	return w.s.Write(&media.Packet{Payload: b, Kind: media.PacketOther})
}

// sinkTagWriter adapts a sink.Sink to flv.Output, forwarding each tag's
// media.PacketKind and timestamp so a downstream RTMP sink can interleave
// audio ahead of video by timestamp (spec.md §4.6, §5, §8 invariant 5).
// Payload is the complete FLV tag (11-byte header, body, 4-byte
// PreviousTagSize trailer): file/content sinks need exactly that to
// reproduce a valid .flv byte stream, and the RTMP sink (the one consumer
// that cares about kind/timestamp at all) unwraps the body itself — see
// sink.FLVTagBody.
type sinkTagWriter struct{ s sink.Sink }

func (w sinkTagWriter) WriteTag(kind media.PacketKind, tsUs int64, raw []byte) error {
	_, err := w.s.Write(&media.Packet{Payload: raw, TSUs: tsUs, Kind: kind})
	return err
}

// ioWriterMuxer adapts any muxer whose Start takes a plain io.Writer (TS,
// fragmented MP4) to the Muxer interface.
type ioWriterMuxer struct {
	start func(io.Writer) error
	write func(*media.Frame) error
	stop  func() error
}

func (m ioWriterMuxer) Start(s sink.Sink) error   { return m.start(sinkIOWriter{s}) }
func (m ioWriterMuxer) Write(f *media.Frame) error { return m.write(f) }
func (m ioWriterMuxer) Stop() error                { return m.stop() }

// WrapIOWriterMuxer builds a Muxer from a container muxer's Start/Write/Stop
// methods when Start accepts a plain io.Writer (the TS and fragmented MP4
// muxers).
func WrapIOWriterMuxer(start func(io.Writer) error, write func(*media.Frame) error, stop func() error) Muxer {
	return ioWriterMuxer{start: start, write: write, stop: stop}
}

// FLVMuxer adapts *flv.Muxer to the Muxer interface, wiring its kind/
// timestamp-aware Output so the RTMP sink can do its interleave.
type FLVMuxer struct{ M *flv.Muxer }

// Start begins the FLV stream, writing through s.
func (m FLVMuxer) Start(s sink.Sink) error { return m.M.Start(sinkTagWriter{s}) }

// Write emits one access unit.
func (m FLVMuxer) Write(f *media.Frame) error { return m.M.Write(f) }

// Stop ends the FLV stream.
func (m FLVMuxer) Stop() error { return m.M.Stop() }

// Endpoint binds one muxer to one sink (spec.md §4.6 "An endpoint is a
// muxer bound to a sink").
type Endpoint struct {
	muxer   Muxer
	s       sink.Sink
	started bool
}

// New returns an Endpoint composing m and s.
func New(m Muxer, s sink.Sink) *Endpoint {
	return &Endpoint{muxer: m, s: s}
}

// Open opens the underlying sink.
func (e *Endpoint) Open(desc config.SinkDescriptor) error {
	return e.s.Open(desc)
}

// StartStream readies the sink, then starts the muxer writing through it.
func (e *Endpoint) StartStream() error {
	if err := e.s.StartStream(); err != nil {
		return err
	}
	if err := e.muxer.Start(e.s); err != nil {
		return err
	}
	e.started = true
	return nil
}

// Write routes one frame through the muxer.
func (e *Endpoint) Write(f *media.Frame) error {
	if !e.started {
		return errs.New(errs.InvalidState, "endpoint.Endpoint.Write", fmt.Errorf("start_stream not called"))
	}
	return e.muxer.Write(f)
}

// StopStream flushes the muxer then the sink; best-effort, as spec.md §7
// requires: the sink still transitions out of Streaming even if its flush
// fails.
func (e *Endpoint) StopStream() error {
	muxErr := e.muxer.Stop()
	sinkErr := e.s.StopStream()
	e.started = false
	if muxErr != nil {
		return muxErr
	}
	return sinkErr
}

// Close releases the sink.
func (e *Endpoint) Close() error {
	e.started = false
	return e.s.Close()
}

// IsOpen reports whether the endpoint's sink is currently accepting writes,
// used by CombineEndpoint to skip constituents that have failed or not yet
// opened (spec.md §4.6 "calls write on every constituent that is currently
// open").
func (e *Endpoint) IsOpen() bool {
	return e.s.State() == sink.StateOpen || e.s.State() == sink.StateStreaming
}
