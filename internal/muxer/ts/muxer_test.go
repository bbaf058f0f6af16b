package ts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestStartEmitsPATPMTSDT(t *testing.T) {
	m := New(500, 100)
	require.NoError(t, m.AddStreamVideo(1, media.MimeH264))
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	require.Equal(t, 3*packetSize, buf.Len())
	require.Equal(t, byte(syncByte), buf.Bytes()[0])
	require.Equal(t, byte(syncByte), buf.Bytes()[packetSize])
	require.Equal(t, byte(syncByte), buf.Bytes()[2*packetSize])
}

func TestWritePacketsAre188BytesAligned(t *testing.T) {
	m := New(500, 100)
	require.NoError(t, m.AddStreamVideo(1, media.MimeH264))
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	f := media.NewFrame(1, media.MimeH264, bytes.Repeat([]byte{0, 0, 0, 1, 0x65, 1, 2, 3}, 40), 0)
	f.IsKey = true
	require.NoError(t, m.Write(f))

	require.Equal(t, 0, buf.Len()%packetSize)
	for off := 0; off < buf.Len(); off += packetSize {
		require.Equal(t, byte(syncByte), buf.Bytes()[off])
	}
}

func TestZeroLengthPayloadRejected(t *testing.T) {
	m := New(500, 100)
	require.NoError(t, m.AddStreamVideo(1, media.MimeH264))
	var buf bytes.Buffer
	require.NoError(t, m.Start(&buf))

	f := media.NewFrame(1, media.MimeH264, nil, 0)
	f.IsKey = true
	require.Error(t, m.Write(f))
}

func TestCRC32MPEG2KnownVector(t *testing.T) {
	// CRC-32/MPEG-2 check value for the ASCII string "123456789", then the
	// CRC's top byte against the trailer buildPAT appends.
	require.Equal(t, uint32(0x0376E6E7), crc32MPEG2([]byte("123456789")))
	pat := buildPAT(1, 0, PIDPMTBase)
	require.Len(t, pat, 12+4)
	crc := crc32MPEG2(pat[:len(pat)-4])
	require.Equal(t, pat[len(pat)-4], byte(crc>>24))
}
