package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestSplitInlineCodecConfigMovesParamSetsToExtra(t *testing.T) {
	sps := []byte{0x67, 1, 2, 3}
	pps := []byte{0x68, 4, 5}
	slice := []byte{0x65, 6, 7, 8}
	f := media.NewFrame(1, media.MimeH264, bitstream.EncodeAnnexB([][]byte{sps, pps, slice}), 0)
	f.IsKey = true

	splitInlineCodecConfig(f)

	require.Equal(t, [][]byte{sps, pps}, f.Extra)
	require.Equal(t, bitstream.EncodeAnnexB([][]byte{slice}), f.Payload)
}

func TestSplitInlineCodecConfigNoopWithoutParamSets(t *testing.T) {
	slice := []byte{0x65, 6, 7, 8}
	payload := bitstream.EncodeAnnexB([][]byte{slice})
	f := media.NewFrame(1, media.MimeH264, append([]byte(nil), payload...), 0)

	splitInlineCodecConfig(f)

	require.Nil(t, f.Extra)
	require.Equal(t, payload, f.Payload)
}

func TestSplitInlineCodecConfigSkipsCodecConfigFrames(t *testing.T) {
	sps := []byte{0x67, 1, 2, 3}
	f := media.NewFrame(1, media.MimeH264, bitstream.EncodeAnnexB([][]byte{sps}), 0)
	f.IsCodecConfig = true

	splitInlineCodecConfig(f)

	require.Nil(t, f.Extra)
}

func TestSplitInlineCodecConfigSkipsAudio(t *testing.T) {
	f := media.NewFrame(1, media.MimeAAC, []byte{1, 2, 3}, 0)
	splitInlineCodecConfig(f)
	require.Nil(t, f.Extra)
}

func TestIsParameterSetH265(t *testing.T) {
	vps := byte(32 << 1)
	sps := byte(33 << 1)
	pps := byte(34 << 1)
	slice := byte(1 << 1)
	require.True(t, isParameterSet(media.MimeH265, []byte{vps}))
	require.True(t, isParameterSet(media.MimeH265, []byte{sps}))
	require.True(t, isParameterSet(media.MimeH265, []byte{pps}))
	require.False(t, isParameterSet(media.MimeH265, []byte{slice}))
}
