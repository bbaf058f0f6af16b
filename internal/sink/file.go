package sink

import (
	"fmt"
	"os"
	"strings"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// File is an OS-file sink opened in truncate mode; re-opens are permitted
// after Close (spec.md §4.6 "File sink"), the same os.OpenFile idiom the
// teacher's recorder uses for its mdat/meta files.
type File struct {
	onEvent EventFunc

	f     *os.File
	state State
}

// NewFile returns a File sink ready to Open.
func NewFile(onEvent EventFunc) *File { return &File{onEvent: onEvent} }

// Open creates (truncating) the file named by desc.URI, accepting both bare
// paths and file:// URIs.
func (s *File) Open(desc config.SinkDescriptor) error {
	if s.state == StateOpen || s.state == StateStreaming {
		fire(s.onEvent, EventWarning, "sink.File.Open: already open")
		return nil
	}
	path := trimFileScheme(desc.URI)
	if path == "" {
		return errs.New(errs.BadParameter, "sink.File.Open", fmt.Errorf("empty path"))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.New(errs.TransientIO, "sink.File.Open", err)
	}
	s.f = f
	s.state = StateOpen
	return nil
}

// StartStream moves the sink from Open to Streaming.
func (s *File) StartStream() error {
	if s.state != StateOpen {
		return errs.New(errs.InvalidState, "sink.File.StartStream", fmt.Errorf("not open"))
	}
	s.state = StateStreaming
	return nil
}

// Write appends pkt.Payload to the file.
func (s *File) Write(pkt *media.Packet) (int, error) {
	if s.state != StateStreaming {
		return 0, errs.New(errs.Closed, "sink.File.Write", fmt.Errorf("sink not streaming"))
	}
	n, err := s.f.Write(pkt.Payload)
	if err != nil {
		s.state = StateClosed
		return n, errs.New(errs.TransientIO, "sink.File.Write", err)
	}
	return n, nil
}

// StopStream flushes to disk; a flush failure is logged but never blocks
// shutdown (spec.md §7 "Stop-streaming is always best-effort").
func (s *File) StopStream() error {
	if s.f == nil {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		fire(s.onEvent, EventWarning, fmt.Sprintf("sink.File.StopStream: flush failed: %v", err))
	}
	return nil
}

// Close closes the file handle; the sink may be re-opened afterward.
func (s *File) Close() error {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	s.state = StateClosed
	return nil
}

// State returns the sink's current lifecycle state.
func (s *File) State() State { return s.state }

func trimFileScheme(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}
