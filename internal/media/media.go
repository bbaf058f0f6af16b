// Package media defines the data model shared by every muxer, sink, and the
// pipeline orchestrator: Frame, Packet, codec configs, and Track (spec.md §3).
package media

// Mime identifies a codec, used both to pick normalization logic and to tag
// tracks/configs.
type Mime string

// Supported codec mimes.
const (
	MimeH264 Mime = "video/avc"
	MimeH265 Mime = "video/hevc"
	MimeAAC  Mime = "audio/aac"
	MimeOpus Mime = "audio/opus"
)

// IsVideo reports whether m names a video codec.
func (m Mime) IsVideo() bool { return m == MimeH264 || m == MimeH265 }

// IsAudio reports whether m names an audio codec.
func (m Mime) IsAudio() bool { return m == MimeAAC || m == MimeOpus }

// Frame is an encoded access unit produced by an encoder (spec.md §3).
type Frame struct {
	StreamID      int
	Mime          Mime
	Payload       []byte // owned by the frame; returned to the pool on Release
	PTSUs         int64
	DTSUs         int64 // defaults to PTSUs if the producer does not set it separately
	IsKey         bool
	IsCodecConfig bool
	Extra         [][]byte // video codec-config segments (SPS/PPS/VPS) attached to a keyframe; audio config travels as an IsCodecConfig frame's Payload

	release func()
}

// NewFrame builds a Frame, defaulting DTSUs to PTSUs when unset.
func NewFrame(streamID int, mime Mime, payload []byte, ptsUs int64) *Frame {
	return &Frame{
		StreamID: streamID,
		Mime:     mime,
		Payload:  payload,
		PTSUs:    ptsUs,
		DTSUs:    ptsUs,
	}
}

// SetRelease attaches the function called when the frame's payload is
// returned to the buffer pool (spec.md §3 "Ownership").
func (f *Frame) SetRelease(release func()) { f.release = release }

// Release returns the frame's payload to whatever pool owns it. Safe to
// call more than once or on a Frame with no release function.
func (f *Frame) Release() {
	if f.release != nil {
		release := f.release
		f.release = nil
		release()
	}
}

// PacketKind classifies a Packet for sinks that must interleave by kind.
type PacketKind uint8

// Packet kinds.
const (
	PacketOther PacketKind = iota
	PacketAudio
	PacketVideo
)

// Packet is a container output unit produced by a muxer (spec.md §3).
type Packet struct {
	Payload []byte
	TSUs    int64
	Kind    PacketKind
}

// ByteFormat distinguishes AVCC/length-prefixed from Annex-B payloads for
// configs that travel through multiple muxers.
type ByteFormat uint8

// Supported byte formats.
const (
	ByteFormatAnnexB ByteFormat = iota
	ByteFormatAVCC
)

// AudioConfig is immutable once a track is created (spec.md §3).
type AudioConfig struct {
	Mime          Mime
	StartBitrate  int
	SampleRate    int
	ChannelConfig int
	ByteFormat    ByteFormat
	Profile       int
}

// VideoConfig is immutable once a track is created (spec.md §3).
type VideoConfig struct {
	Mime         Mime
	StartBitrate int
	Width        int
	Height       int
	FPS          float64
	Profile      int
	Level        int
	GOPSeconds   float64
}

// TrackKind distinguishes audio from video tracks.
type TrackKind uint8

// Track kinds.
const (
	TrackAudio TrackKind = iota
	TrackVideo
)

// Track is a muxer-side descriptor for one elementary stream (spec.md §3).
type Track struct {
	ID        int // unique within the muxer, 1-based, never 0
	Kind      TrackKind
	Audio     AudioConfig
	Video     VideoConfig
	Timescale uint32

	NumSamples  uint64
	FirstPTSUs  int64
	LastPTSUs   int64
	SyncSamples []uint64 // keyframe index list, 0-based sample index
}
