// Package regulator implements the periodic bitrate control loop: it reads
// transport statistics from a reliable-UDP sink and adjusts the video (and
// optionally audio) encoder's target bitrate via two callbacks the
// orchestrator wires at construction (spec.md §4.7). The regulator never
// muxes or writes; it only decides targets.
package regulator

import (
	"context"
	"time"
)

// TransportStats mirrors the cumulative counters a reliable-UDP sink
// exposes (spec.md §6 "Transport stats (regulator input)"): only these six
// fields are required.
type TransportStats struct {
	PktSentTotal    uint64
	PktSndLossTotal uint64
	PktRetransTotal uint64
	ByteSndBuf      uint64
	MsRTT           float64
	MbpsBandwidth   float64
}

// Stats is one tick's derived input: loss and send-buffer fill as fractions
// in [0,1] (spec.md §4.7 "Inputs per tick").
type Stats struct {
	LostFraction   float64
	SendBufferFill float64
}

// DeriveStats turns two cumulative TransportStats snapshots plus a
// configured send-buffer capacity into the fractional Stats Tick consumes.
// bufCapacityBytes is whatever the sink reports (or is configured with) as
// its send-buffer's total size; a zero capacity yields a zero fill fraction
// rather than dividing by zero.
func DeriveStats(prev, cur TransportStats, bufCapacityBytes uint64) Stats {
	var lostFraction float64
	if sentDelta := cur.PktSentTotal - prev.PktSentTotal; sentDelta > 0 {
		lostFraction = float64(cur.PktSndLossTotal-prev.PktSndLossTotal) / float64(sentDelta)
	}
	var fill float64
	if bufCapacityBytes > 0 {
		fill = float64(cur.ByteSndBuf) / float64(bufCapacityBytes)
	}
	return Stats{LostFraction: lostFraction, SendBufferFill: fill}
}

// Bounds clamps video and audio targets (spec.md §4.7 "a new target within
// [min_video_bitrate, max_video_bitrate]").
type Bounds struct {
	MinVideo int
	MaxVideo int
	MinAudio int
	MaxAudio int
}

// TargetFunc commits a new bitrate target to an encoder. Per spec.md §4.7
// "Bitrate changes are committed even if the encoder rejects them", this is
// a fire-and-forget notification, not a request/response call.
type TargetFunc func(bitrate int)

// Regulator holds the default policy's mutable state: the current video and
// audio targets (spec.md §9 replaces cyclic streamer/pipeline back-references
// with callbacks passed at construction, which is exactly setVideo/setAudio
// here).
type Regulator struct {
	bounds    Bounds
	setVideo  TargetFunc
	setAudio  TargetFunc

	videoTarget int
	audioTarget int
}

// New returns a Regulator starting at the given initial targets.
func New(bounds Bounds, initialVideoTarget, initialAudioTarget int, setVideo, setAudio TargetFunc) *Regulator {
	return &Regulator{
		bounds:      bounds,
		setVideo:    setVideo,
		setAudio:    setAudio,
		videoTarget: clamp(initialVideoTarget, bounds.MinVideo, bounds.MaxVideo),
		audioTarget: clamp(initialAudioTarget, bounds.MinAudio, bounds.MaxAudio),
	}
}

// Tick applies the default policy (spec.md §4.7 "Default policy
// (implementations may replace)") to one stats sample and commits the
// resulting targets via the configured callbacks. It returns the new
// targets for callers (tests, diagnostics) that want them directly.
func (r *Regulator) Tick(s Stats) (videoTarget, audioTarget int) {
	switch {
	case s.LostFraction > 0.02 || s.SendBufferFill > 0.80:
		r.videoTarget = clamp(scale(r.videoTarget, 0.8), r.bounds.MinVideo, r.bounds.MaxVideo)
	case s.LostFraction < 0.005 && s.SendBufferFill < 0.40:
		r.videoTarget = clamp(scale(r.videoTarget, 1.1), r.bounds.MinVideo, r.bounds.MaxVideo)
	}

	if r.videoTarget <= r.bounds.MinVideo && r.bounds.MaxAudio > 0 {
		r.audioTarget = clamp(r.audioTarget/2, r.bounds.MinAudio, r.bounds.MaxAudio)
	}

	if r.setVideo != nil {
		r.setVideo(r.videoTarget)
	}
	if r.setAudio != nil {
		r.setAudio(r.audioTarget)
	}
	return r.videoTarget, r.audioTarget
}

// VideoTarget returns the current committed video target.
func (r *Regulator) VideoTarget() int { return r.videoTarget }

// AudioTarget returns the current committed audio target.
func (r *Regulator) AudioTarget() int { return r.audioTarget }

// Run drives Tick on a fixed period until ctx is canceled, pulling each
// sample from statsFn (spec.md §4.7 "periodic control loop (default period
// 500 ms)"). Grounded on the teacher's recorder.go select+time.Timer
// goroutine idiom, generalized from an event-triggered timer to a plain
// periodic tick.
func (r *Regulator) Run(ctx context.Context, period time.Duration, statsFn func() Stats) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Tick(statsFn())
		}
	}
}

func scale(v int, factor float64) int {
	return int(float64(v) * factor)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
