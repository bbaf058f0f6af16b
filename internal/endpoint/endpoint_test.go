package endpoint

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/sink"
)

// fakeSink is a minimal in-memory sink.Sink for endpoint-layer tests.
type fakeSink struct {
	state      sink.State
	written    []*media.Packet
	failOpen   bool
	failWrite  bool
}

func (f *fakeSink) Open(config.SinkDescriptor) error {
	if f.failOpen {
		return fmt.Errorf("boom")
	}
	f.state = sink.StateOpen
	return nil
}
func (f *fakeSink) Write(pkt *media.Packet) (int, error) {
	if f.failWrite {
		return 0, fmt.Errorf("write failed")
	}
	f.written = append(f.written, pkt)
	return len(pkt.Payload), nil
}
func (f *fakeSink) StartStream() error { f.state = sink.StateStreaming; return nil }
func (f *fakeSink) StopStream() error  { f.state = sink.StateOpen; return nil }
func (f *fakeSink) Close() error       { f.state = sink.StateClosed; return nil }
func (f *fakeSink) State() sink.State  { return f.state }

// fakeMuxer just forwards frames to the sink as a single packet each, so
// endpoint tests can assert write routing without a real container muxer.
type fakeMuxer struct {
	s sink.Sink
}

func (m *fakeMuxer) Start(s sink.Sink) error { m.s = s; return nil }
func (m *fakeMuxer) Write(f *media.Frame) error {
	_, err := m.s.Write(&media.Packet{Payload: f.Payload, TSUs: f.PTSUs})
	return err
}
func (m *fakeMuxer) Stop() error { return nil }

func TestEndpointWriteBeforeStartIsInvalidState(t *testing.T) {
	e := New(&fakeMuxer{}, &fakeSink{})
	err := e.Write(media.NewFrame(1, media.MimeH264, []byte{1}, 0))
	require.Error(t, err)
}

func TestEndpointLifecycle(t *testing.T) {
	fs := &fakeSink{}
	e := New(&fakeMuxer{}, fs)
	require.NoError(t, e.Open(config.SinkDescriptor{URI: "x"}))
	require.NoError(t, e.StartStream())
	require.True(t, e.IsOpen())

	require.NoError(t, e.Write(media.NewFrame(1, media.MimeH264, []byte{1, 2, 3}, 0)))
	require.Len(t, fs.written, 1)

	require.NoError(t, e.StopStream())
	require.NoError(t, e.Close())
	require.False(t, e.IsOpen())
}

func TestCombineEndpointRequiresMatchingDescriptorCount(t *testing.T) {
	c := NewCombine(nil, New(&fakeMuxer{}, &fakeSink{}))
	err := c.Open([]config.SinkDescriptor{{URI: "a"}, {URI: "b"}})
	require.Error(t, err)
}

func TestCombineEndpointIsolatesSingleFailure(t *testing.T) {
	good := &fakeSink{}
	bad := &fakeSink{failOpen: true}
	var failures []string
	c := NewCombine(func(i int, op string, err error) {
		failures = append(failures, op)
	}, New(&fakeMuxer{}, good), New(&fakeMuxer{}, bad))

	err := c.Open([]config.SinkDescriptor{{URI: "a"}, {URI: "b"}})
	require.NoError(t, err) // one constituent still opened
	require.Equal(t, []string{"open"}, failures)

	require.NoError(t, c.StartStream())
	require.NoError(t, c.Write(media.NewFrame(1, media.MimeH264, []byte{1}, 0)))
	require.Len(t, good.written, 1)
}

func TestCombineEndpointReportsErrorOnlyWhenAllFail(t *testing.T) {
	bad1 := &fakeSink{failOpen: true}
	bad2 := &fakeSink{failOpen: true}
	c := NewCombine(nil, New(&fakeMuxer{}, bad1), New(&fakeMuxer{}, bad2))

	err := c.Open([]config.SinkDescriptor{{URI: "a"}, {URI: "b"}})
	require.Error(t, err)
}
