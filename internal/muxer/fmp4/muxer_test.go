package fmp4

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestStartWritesFtypAndMoov(t *testing.T) {
	m := New(1000)
	_, err := m.AddStreamVideo(media.VideoConfig{Mime: media.MimeH264, Width: 1280, Height: 720})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	require.Equal(t, "ftyp", string(buf.Bytes()[4:8]))
}

func TestFirstFrameMustBeKeyframe(t *testing.T) {
	m := New(1000)
	id, err := m.AddStreamVideo(media.VideoConfig{Mime: media.MimeH264, Width: 1280, Height: 720})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	f := media.NewFrame(id, media.MimeH264, []byte{0, 0, 0, 1, 1}, 0)
	f.IsKey = false
	err = m.Write(f)
	require.Error(t, err)
}

func TestSegmentFlushOnKeyframeBoundary(t *testing.T) {
	m := New(1000) // 1s target
	id, err := m.AddStreamVideo(media.VideoConfig{Mime: media.MimeH264, Width: 1280, Height: 720})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))
	initLen := buf.Len()

	for i, pts := range []int64{0, 500_000, 1_000_000, 1_500_000} {
		f := media.NewFrame(id, media.MimeH264, []byte{0, 0, 0, 1, 1, 2, 3, 4}, pts)
		f.IsKey = i == 0 || i == 2
		require.NoError(t, m.Write(f))
	}
	require.NoError(t, m.Stop())

	require.Greater(t, buf.Len(), initLen)
	// the second keyframe at 1_000_000us should have triggered a mid-stream
	// flush, so the stream contains more than one "moof" fourcc occurrence.
	require.GreaterOrEqual(t, bytes.Count(buf.Bytes(), []byte("moof")), 2)
}

func TestZeroLengthPayloadRejected(t *testing.T) {
	m := New(1000)
	id, err := m.AddStreamVideo(media.VideoConfig{Mime: media.MimeH264})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	f := media.NewFrame(id, media.MimeH264, nil, 0)
	f.IsKey = true
	err = m.Write(f)
	require.Error(t, err)
}
