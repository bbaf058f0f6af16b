package sink

import (
	"fmt"
	"io"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// ContentOpener resolves a content descriptor's URI to a writable stream.
// Platform content URIs (e.g. Android SAF content://) have no portable Go
// representation, so the embedder supplies the platform-specific resolver
// at construction instead of the sink hard-coding an OS API (spec.md §9
// "Platform-specific media buffers ... out of scope").
type ContentOpener func(uri string) (io.WriteCloser, error)

// Content is the content-stream sink: same semantics as File, but writing
// through a caller-supplied stream instead of an os.File (spec.md §4.6
// "Content-stream sink").
type Content struct {
	onEvent EventFunc
	open    ContentOpener

	w     io.WriteCloser
	state State
}

// NewContent returns a Content sink using open to resolve descriptors.
func NewContent(open ContentOpener, onEvent EventFunc) *Content {
	return &Content{open: open, onEvent: onEvent}
}

// Open resolves desc.URI via the configured ContentOpener.
func (s *Content) Open(desc config.SinkDescriptor) error {
	if s.state == StateOpen || s.state == StateStreaming {
		fire(s.onEvent, EventWarning, "sink.Content.Open: already open")
		return nil
	}
	w, err := s.open(desc.URI)
	if err != nil {
		return errs.New(errs.TransientIO, "sink.Content.Open", err)
	}
	s.w = w
	s.state = StateOpen
	return nil
}

// StartStream moves the sink from Open to Streaming.
func (s *Content) StartStream() error {
	if s.state != StateOpen {
		return errs.New(errs.InvalidState, "sink.Content.StartStream", fmt.Errorf("not open"))
	}
	s.state = StateStreaming
	return nil
}

// Write writes pkt.Payload to the underlying stream.
func (s *Content) Write(pkt *media.Packet) (int, error) {
	if s.state != StateStreaming {
		return 0, errs.New(errs.Closed, "sink.Content.Write", fmt.Errorf("sink not streaming"))
	}
	n, err := s.w.Write(pkt.Payload)
	if err != nil {
		s.state = StateClosed
		return n, errs.New(errs.TransientIO, "sink.Content.Write", err)
	}
	return n, nil
}

// StopStream is a best-effort flush for streams that support it.
func (s *Content) StopStream() error {
	if f, ok := s.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			fire(s.onEvent, EventWarning, fmt.Sprintf("sink.Content.StopStream: flush failed: %v", err))
		}
	}
	return nil
}

// Close closes the underlying stream; the sink may be re-opened afterward.
func (s *Content) Close() error {
	if s.w != nil {
		_ = s.w.Close()
		s.w = nil
	}
	s.state = StateClosed
	return nil
}

// State returns the sink's current lifecycle state.
func (s *Content) State() State { return s.state }
