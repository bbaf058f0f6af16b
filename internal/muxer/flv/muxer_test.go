package flv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestStartWritesHeaderAndMetadata(t *testing.T) {
	m := New(false)
	require.NoError(t, m.AddStreamVideo(1, media.VideoConfig{Mime: media.MimeH264, Width: 1280, Height: 720}))
	var buf bytes.Buffer
	require.NoError(t, m.Start(IOWriter{W: &buf}))

	require.Equal(t, "FLV", string(buf.Bytes()[:3]))
	require.Equal(t, byte(18), buf.Bytes()[13]) // script tag type, right after the 13-byte header+prior-tag-size
}

func TestHEVCRejectedWithoutEnhancedFlag(t *testing.T) {
	m := New(false)
	err := m.AddStreamVideo(1, media.VideoConfig{Mime: media.MimeH265})
	require.Error(t, err)
}

func TestHEVCAcceptedWithEnhancedFlag(t *testing.T) {
	m := New(true)
	err := m.AddStreamVideo(1, media.VideoConfig{Mime: media.MimeH265})
	require.NoError(t, err)
}

func TestVideoTagFrameType(t *testing.T) {
	m := New(false)
	id, err := 1, m.AddStreamVideo(1, media.VideoConfig{Mime: media.MimeH264, Width: 1280, Height: 720})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Start(IOWriter{W: &buf}))
	before := buf.Len()

	f := media.NewFrame(id, media.MimeH264, []byte{0, 0, 0, 1, 0x65, 1, 2, 3}, 0)
	f.IsKey = true
	require.NoError(t, m.Write(f))

	tagBody := buf.Bytes()[before+11]
	require.Equal(t, byte(frameTypeKey<<4|codecAVC), tagBody)
}

func TestZeroLengthPayloadRejected(t *testing.T) {
	m := New(false)
	id, err := 1, m.AddStreamVideo(1, media.VideoConfig{Mime: media.MimeH264})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Start(IOWriter{W: &buf}))

	f := media.NewFrame(id, media.MimeH264, nil, 0)
	f.IsKey = true
	require.Error(t, m.Write(f))
}
