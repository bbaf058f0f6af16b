package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestInterleaverReleasesAudioAheadOfVideo(t *testing.T) {
	var iv interleaver
	a1 := &media.Packet{TSUs: 1000, Kind: media.PacketAudio}
	a2 := &media.Packet{TSUs: 2000, Kind: media.PacketAudio}
	a3 := &media.Packet{TSUs: 5000, Kind: media.PacketAudio} // after the video packet's ts
	iv.pushAudio(a1)
	iv.pushAudio(a2)
	iv.pushAudio(a3)

	v := &media.Packet{TSUs: 3000, Kind: media.PacketVideo}
	released := iv.pushVideo(v)

	require.Equal(t, []*media.Packet{a1, a2, v}, released)
	require.Equal(t, []*media.Packet{a3}, iv.audioQueue)
}

func TestInterleaverFlushDrainsRemainingAudio(t *testing.T) {
	var iv interleaver
	a1 := &media.Packet{TSUs: 1000, Kind: media.PacketAudio}
	iv.pushAudio(a1)

	require.Equal(t, []*media.Packet{a1}, iv.flush())
	require.Empty(t, iv.audioQueue)
}
