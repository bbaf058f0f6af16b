package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/diag"
	"github.com/thibaultbee/streampack-go/internal/media"
)

func diagStatsZero() diag.Stats { return diag.Stats{} }

var errTest = errors.New("fake target failure")

// fakeTarget is an in-memory Target double.
type fakeTarget struct {
	mu      sync.Mutex
	opened  []config.SinkDescriptor
	written []*media.Frame
	started bool
	stopped bool
	closed  bool
	failOn  string // "", "open", "start", "write", "stop"
}

func (t *fakeTarget) Open(descs []config.SinkDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn == "open" {
		return errTest
	}
	t.opened = descs
	return nil
}
func (t *fakeTarget) StartStream() error {
	if t.failOn == "start" {
		return errTest
	}
	t.started = true
	return nil
}
func (t *fakeTarget) Write(f *media.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn == "write" {
		return errTest
	}
	t.written = append(t.written, f)
	return nil
}
func (t *fakeTarget) StopStream() error {
	t.stopped = true
	return nil
}
func (t *fakeTarget) Close() error {
	t.closed = true
	return nil
}
func (t *fakeTarget) writtenLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.written)
}

func newPipelineForTest(target *fakeTarget, capacity int) *Pipeline {
	cfg := config.Defaults()
	cfg.ChannelCapacity = capacity
	cfg.Sinks = []config.SinkDescriptor{{Kind: config.SinkFile, URI: "x"}}
	var addedVideo, addedAudio []int
	inst := MuxerInstance{
		AddVideo: func(id int, _ media.VideoConfig) error { addedVideo = append(addedVideo, id); return nil },
		AddAudio: func(id int, _ media.AudioConfig) error { addedAudio = append(addedAudio, id); return nil },
	}
	return New(cfg, nil, target, []MuxerInstance{inst})
}

func TestPipelineLifecycle(t *testing.T) {
	target := &fakeTarget{}
	p := newPipelineForTest(target, 20)

	id, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)
	require.Equal(t, 1, id)
	require.Equal(t, StateConfigured, p.State())

	require.NoError(t, p.StartStream())
	require.Equal(t, StateStreaming, p.State())
	require.True(t, target.started)

	require.NoError(t, p.Write(media.NewFrame(id, media.MimeH264, []byte{0, 0, 0, 1, 0x65, 1, 2, 3}, 1000)))
	require.Eventually(t, func() bool { return target.writtenLen() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.StopStream())
	require.Equal(t, StateIdle, p.State())
	require.True(t, target.stopped)

	require.NoError(t, p.Release())
	require.True(t, target.closed)
}

func TestPipelineStartBeforeAddStreamFailsUnconfigured(t *testing.T) {
	p := newPipelineForTest(&fakeTarget{}, 20)
	err := p.StartStream()
	require.Error(t, err)
}

func TestPipelineWriteBeforeStartFailsInvalidState(t *testing.T) {
	p := newPipelineForTest(&fakeTarget{}, 20)
	id, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)
	err = p.Write(media.NewFrame(id, media.MimeH264, []byte{1}, 0))
	require.Error(t, err)
}

func TestPipelineAddStreamAfterStartFailsInvalidState(t *testing.T) {
	target := &fakeTarget{}
	p := newPipelineForTest(target, 20)
	_, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)
	require.NoError(t, p.StartStream())

	_, err = p.AddStream(media.MimeAAC, media.VideoConfig{}, media.AudioConfig{Mime: media.MimeAAC})
	require.Error(t, err)
}

func TestPipelineChannelOverflowDropsOldest(t *testing.T) {
	p := newPipelineForTest(&fakeTarget{}, 2)
	id, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)

	// Drive Write directly without starting the background consumer, so the
	// channel stays full and the drop-oldest path is deterministic.
	p.mu.Lock()
	p.state = StateStreaming
	p.mu.Unlock()

	require.NoError(t, p.Write(media.NewFrame(id, media.MimeH264, []byte{1}, 1)))
	require.NoError(t, p.Write(media.NewFrame(id, media.MimeH264, []byte{2}, 2)))
	require.Len(t, p.frameCh, 2)

	require.NoError(t, p.Write(media.NewFrame(id, media.MimeH264, []byte{3}, 3)))
	require.Len(t, p.frameCh, 2)

	first := <-p.frameCh
	second := <-p.frameCh
	require.Equal(t, int64(2), first.PTSUs) // the ts=1 frame was dropped
	require.Equal(t, int64(3), second.PTSUs)
}

func TestPipelineDiagnosticsReportsStatsOnceStreaming(t *testing.T) {
	target := &fakeTarget{}
	p := newPipelineForTest(target, 20)
	_, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)

	require.Equal(t, diagStatsZero(), p.Stats())

	p.EnableDiagnostics(time.Millisecond)
	require.NoError(t, p.StartStream())

	require.Eventually(t, func() bool { return p.Stats() != diagStatsZero() }, time.Second, time.Millisecond)

	require.NoError(t, p.Release())
}

func TestPipelineReleaseFromStreamingStopsBackgroundTask(t *testing.T) {
	target := &fakeTarget{}
	p := newPipelineForTest(target, 20)
	_, err := p.AddStream(media.MimeH264, media.VideoConfig{Mime: media.MimeH264}, media.AudioConfig{})
	require.NoError(t, err)
	require.NoError(t, p.StartStream())
	require.NoError(t, p.Release())
	require.True(t, target.closed)
}
