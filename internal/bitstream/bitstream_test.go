package bitstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartCodeRoundTrip(t *testing.T) {
	payload := []byte{0x67, 0x42, 0x00, 0x1f}
	withStart := AddStartCode(payload)
	require.Equal(t, payload, RemoveStartCode(withStart))
}

func TestSplitAnnexB(t *testing.T) {
	nalus := [][]byte{{0x67, 1, 2}, {0x68, 3, 4}, {0x65, 5, 6, 7}}
	encoded := EncodeAnnexB(nalus)
	got := SplitAnnexB(encoded)
	require.Equal(t, nalus, got)
}

func TestAVCCRoundTrip(t *testing.T) {
	nalus := [][]byte{{0x67, 1, 2, 3}, {0x68, 4}, {0x65, 5, 6, 7, 8, 9}}
	encoded := MarshalAVCC(nalus)
	got, err := UnmarshalAVCC(encoded)
	require.NoError(t, err)
	require.Equal(t, nalus, got)
}

func TestADTSRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	hdr, err := BuildADTS(ADTSHeader{
		ProfileObjectType: 1,
		SampleRate:        48000,
		ChannelConfig:     2,
		PayloadLength:     len(payload),
	})
	require.NoError(t, err)

	parsed, err := ParseADTS(append(hdr, payload...))
	require.NoError(t, err)
	require.Equal(t, len(payload), parsed.PayloadLength)
	require.Equal(t, 48000, parsed.SampleRate)
	require.Equal(t, 2, parsed.ChannelConfig)
}

func TestBuildADTSRejectsZeroLength(t *testing.T) {
	_, err := BuildADTS(ADTSHeader{SampleRate: 48000, ChannelConfig: 2, PayloadLength: 0})
	require.Error(t, err)
}

func TestParseOpusHeadBare(t *testing.T) {
	buf := []byte("OpusHead")
	buf = append(buf, 1)          // version
	buf = append(buf, 2)          // channel count
	buf = append(buf, 0x38, 0x01) // pre-skip = 312
	buf = append(buf, 0x80, 0xBB, 0x00, 0x00) // input sample rate = 48000
	buf = append(buf, 0, 0)       // output gain
	buf = append(buf, 0)          // channel mapping family

	head, err := ParseOpusCSD(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(2), head.ChannelCount)
	require.Equal(t, uint32(48000), head.InputSampleRate)
}
