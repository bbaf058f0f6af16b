// Package sink implements the output side of an endpoint: file,
// content-stream, SRT, and RTMP sinks sharing one open/write/start_stream/
// stop_stream/close contract (spec.md §4.6).
package sink

import (
	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// State is a sink's lifecycle state (spec.md §4.6 sink contract table).
type State uint8

// Sink lifecycle states.
const (
	StateIdle State = iota
	StateOpen
	StateStreaming
	StateClosed
)

// EventKind classifies an out-of-band sink notification. Spec.md §9 replaces
// "listener callbacks" with explicit callback functions passed at
// construction; EventFunc is that callback.
type EventKind uint8

// Sink event kinds.
const (
	// EventConnectionLost fires once per disconnect (spec.md §4.6 SRT sink,
	// §8 scenario 5).
	EventConnectionLost EventKind = iota
	// EventWarning fires for non-fatal conditions a caller may want to log,
	// e.g. open() on an already-open sink (spec.md §4.6 sink contract table).
	EventWarning
)

// EventFunc receives sink lifecycle notifications. A nil EventFunc is valid
// and simply discards events.
type EventFunc func(kind EventKind, msg string)

func fire(f EventFunc, kind EventKind, msg string) {
	if f != nil {
		f(kind, msg)
	}
}

// Sink is the contract every sink variant implements (spec.md §4.6). Write
// takes a media.Packet rather than a raw byte slice so kind-aware sinks
// (RTMP) can interleave audio ahead of video by timestamp without the muxer
// needing to know anything about the sink underneath it.
type Sink interface {
	Open(desc config.SinkDescriptor) error
	Write(pkt *media.Packet) (int, error)
	StartStream() error
	StopStream() error
	Close() error
	State() State
}
