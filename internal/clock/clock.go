// Package clock provides the monotonic time source and the per-track
// timescale arithmetic shared by every muxer.
package clock

import "time"

// Clock is a monotonic time source. The default implementation wraps
// time.Now; tests substitute a fake so PCR/PTS assertions are deterministic.
type Clock interface {
	Now() time.Time
}

// System is the production Clock, backed by the runtime monotonic clock.
type System struct{}

// Now returns the current monotonic-backed time.
func (System) Now() time.Time { return time.Now() }

// Fixed is a Clock that never advances unless told to, for tests.
type Fixed struct {
	t time.Time
}

// NewFixed returns a Fixed clock starting at t.
func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

// Now returns the current fixed time.
func (f *Fixed) Now() time.Time { return f.t }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Timescale converts microsecond timestamps (the wire unit Frame.PTSUs uses)
// to and from a muxer's chosen ticks-per-second timescale (90000 for video,
// sample_rate for audio, 27_000_000 for MPEG-TS PCR).
type Timescale uint32

// Common timescales named in spec.md §4.2-§4.3.
const (
	TimescaleTS90kHz  Timescale = 90_000
	TimescalePCR27MHz Timescale = 27_000_000
)

// FromMicros converts a microsecond timestamp into ticks of ts.
func (ts Timescale) FromMicros(us int64) int64 {
	return us * int64(ts) / 1_000_000
}

// ToMicros converts ticks of ts back into microseconds.
func (ts Timescale) ToMicros(ticks int64) int64 {
	return ticks * 1_000_000 / int64(ts)
}

// Wrap33 truncates ticks to the 33-bit field MPEG-TS PES timestamps use,
// without sign extension, so wraparound at 2^33 90kHz ticks is silent and
// lossless on the wire (spec.md §8 "PTS wraparound ... handled ... without
// sign extension").
func Wrap33(ticks int64) uint64 {
	const mask = (uint64(1) << 33) - 1
	return uint64(ticks) & mask
}
