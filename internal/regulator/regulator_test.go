package regulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickAppliesWorkedScenarioFromSpec(t *testing.T) {
	bounds := Bounds{MinVideo: 500_000, MaxVideo: 5_000_000}
	var lastVideo int
	r := New(bounds, 4_000_000, 0, func(b int) { lastVideo = b }, nil)

	video, _ := r.Tick(Stats{LostFraction: 0.03, SendBufferFill: 0.85})
	require.Equal(t, 3_200_000, video)
	require.Equal(t, 3_200_000, lastVideo)

	video, _ = r.Tick(Stats{LostFraction: 0, SendBufferFill: 0.20})
	require.Equal(t, 3_520_000, video)
	video, _ = r.Tick(Stats{LostFraction: 0, SendBufferFill: 0.20})
	require.Equal(t, 3_872_000, video)
	video, _ = r.Tick(Stats{LostFraction: 0, SendBufferFill: 0.20})
	require.Equal(t, 4_259_200, video)
}

func TestTickClampsAtBounds(t *testing.T) {
	bounds := Bounds{MinVideo: 500_000, MaxVideo: 5_000_000}
	r := New(bounds, 4_900_000, 0, nil, nil)

	video, _ := r.Tick(Stats{LostFraction: 0, SendBufferFill: 0.1})
	require.Equal(t, 5_000_000, video) // 4_900_000*1.1 would exceed max

	r2 := New(bounds, 550_000, 0, nil, nil)
	video2, _ := r2.Tick(Stats{LostFraction: 0.05, SendBufferFill: 0.9})
	require.Equal(t, 500_000, video2) // 550_000*0.8 would go under min
}

func TestTickHalvesAudioOnceVideoHitsFloor(t *testing.T) {
	bounds := Bounds{MinVideo: 500_000, MaxVideo: 5_000_000, MinAudio: 32_000, MaxAudio: 128_000}
	r := New(bounds, 500_000, 128_000, nil, nil)

	_, audio := r.Tick(Stats{LostFraction: 0.05, SendBufferFill: 0.9})
	require.Equal(t, 500_000, r.VideoTarget())
	require.Equal(t, 64_000, audio)
}

func TestDeriveStatsComputesFractions(t *testing.T) {
	prev := TransportStats{PktSentTotal: 1000, PktSndLossTotal: 10, ByteSndBuf: 1000}
	cur := TransportStats{PktSentTotal: 1100, PktSndLossTotal: 13, ByteSndBuf: 4000}

	stats := DeriveStats(prev, cur, 10_000)
	require.InDelta(t, 0.03, stats.LostFraction, 1e-9)
	require.InDelta(t, 0.4, stats.SendBufferFill, 1e-9)
}
