package flv

import (
	"fmt"
	"io"

	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/mp4box"
)

// Output receives each encoded tag this muxer produces, tagged with its
// media.PacketKind and timestamp (microseconds). Plain io.Writer-backed
// sinks (file, content-stream) only care about the bytes; the RTMP sink
// needs the kind and timestamp to interleave audio ahead of video (spec.md
// §4.6, §5 "FLV: strict timestamp order enforced by the RTMP sink").
type Output interface {
	WriteTag(kind media.PacketKind, tsUs int64, raw []byte) error
}

// IOWriter adapts a plain io.Writer into an Output that ignores kind and
// timestamp, for sinks that just want the raw FLV byte stream.
type IOWriter struct{ W io.Writer }

// WriteTag writes raw to the underlying io.Writer, discarding kind/tsUs.
func (o IOWriter) WriteTag(_ media.PacketKind, _ int64, raw []byte) error {
	_, err := o.W.Write(raw)
	return err
}

// FLV video codec ids (spec.md §4.4). codecHEVC (12) is not part of the
// original FLV spec; real players only understand it in "enhanced RTMP"
// mode, so this muxer only emits it when constructed with enhanced=true
// (spec.md §9 Open Questions).
const (
	codecAVC  uint8 = 7
	codecHEVC uint8 = 12
)

const (
	frameTypeKey   uint8 = 1
	frameTypeInter uint8 = 2
)

const (
	avcPacketTypeSeqHeader uint8 = 0
	avcPacketTypeNALU      uint8 = 1
)

const (
	audioFormatAAC uint8 = 10
)

const (
	aacPacketTypeSeqHeader uint8 = 0
	aacPacketTypeRaw       uint8 = 1
)

type flvTrack struct {
	streamID int
	isVideo  bool
	mime     media.Mime

	video media.VideoConfig
	audio media.AudioConfig

	vps, sps, pps []byte
	asc           []byte
}

// Muxer is the FLV muxer.
type Muxer struct {
	enhanced bool

	tracks     map[int]*flvTrack
	videoID    int
	audioID    int
	out        Output
	started    bool
	anchorUs   int64
	haveAnchor bool
}

// New creates a Muxer. enhanced gates HEVC-in-FLV support (spec.md §9).
func New(enhanced bool) *Muxer {
	return &Muxer{enhanced: enhanced, tracks: map[int]*flvTrack{}}
}

// AddStreamVideo registers the (single) video track.
func (m *Muxer) AddStreamVideo(streamID int, cfg media.VideoConfig) error {
	if m.started {
		return errs.New(errs.InvalidState, "flv.Muxer.AddStreamVideo", fmt.Errorf("streams already started"))
	}
	if cfg.Mime == media.MimeH265 && !m.enhanced {
		return errs.New(errs.BadParameter, "flv.Muxer.AddStreamVideo", fmt.Errorf("HEVC-in-FLV requires enhanced mode"))
	}
	m.tracks[streamID] = &flvTrack{streamID: streamID, isVideo: true, mime: cfg.Mime, video: cfg}
	m.videoID = streamID
	return nil
}

// AddStreamAudio registers the (single) audio track; FLV's legacy tag
// layout only carries AAC (spec.md §4.4).
func (m *Muxer) AddStreamAudio(streamID int, cfg media.AudioConfig) error {
	if m.started {
		return errs.New(errs.InvalidState, "flv.Muxer.AddStreamAudio", fmt.Errorf("streams already started"))
	}
	if cfg.Mime != media.MimeAAC {
		return errs.New(errs.BadParameter, "flv.Muxer.AddStreamAudio", fmt.Errorf("FLV only carries AAC audio"))
	}
	m.tracks[streamID] = &flvTrack{streamID: streamID, isVideo: false, mime: cfg.Mime, audio: cfg}
	m.audioID = streamID
	return nil
}

// Start writes the FLV header and the onMetaData script tag.
func (m *Muxer) Start(out Output) error {
	if len(m.tracks) == 0 {
		return errs.New(errs.Unconfigured, "flv.Muxer.Start", fmt.Errorf("no streams added"))
	}
	m.out = out
	m.started = true

	hasAudio, hasVideo := m.audioID != 0, m.videoID != 0
	if err := m.writeBytes(media.PacketOther, 0, buildFLVHeader(hasAudio, hasVideo)); err != nil {
		return err
	}
	return m.writeBytes(media.PacketOther, 0, buildTag(tagTypeScript, 0, buildOnMetaData(m.tracks[m.videoID], m.tracks[m.audioID])))
}

func buildOnMetaData(video, audio *flvTrack) []byte {
	var pairs []amf0Pair
	pairs = append(pairs, amf0Pair{"duration", amf0Number(0)})
	if video != nil {
		codecID := float64(codecAVC)
		if video.mime == media.MimeH265 {
			codecID = float64(codecHEVC)
		}
		pairs = append(pairs,
			amf0Pair{"videocodecid", amf0Number(codecID)},
			amf0Pair{"videodatarate", amf0Number(float64(video.video.StartBitrate) / 1000)},
			amf0Pair{"width", amf0Number(float64(video.video.Width))},
			amf0Pair{"height", amf0Number(float64(video.video.Height))},
			amf0Pair{"framerate", amf0Number(video.video.FPS)},
		)
	}
	if audio != nil {
		pairs = append(pairs,
			amf0Pair{"audiocodecid", amf0Number(float64(audioFormatAAC))},
			amf0Pair{"audiodatarate", amf0Number(float64(audio.audio.StartBitrate) / 1000)},
			amf0Pair{"audiosamplerate", amf0Number(float64(audio.audio.SampleRate))},
			amf0Pair{"audiosamplesize", amf0Number(16)},
			amf0Pair{"stereo", amf0Bool(audio.audio.ChannelConfig >= 2)},
		)
	}
	body := append([]byte{0x02, 0x00, 0x0A}, "onMetaData"...) // AMF0 string "onMetaData"
	return append(body, amf0ECMAArray(pairs)...)
}

// Write emits one access unit as an audio or video tag, inserting sequence
// headers on codec config frames (spec.md §4.4).
func (m *Muxer) Write(f *media.Frame) error {
	if !m.started {
		return errs.New(errs.InvalidState, "flv.Muxer.Write", fmt.Errorf("start_stream not called"))
	}
	t, ok := m.tracks[f.StreamID]
	if !ok {
		return errs.New(errs.BadParameter, "flv.Muxer.Write", fmt.Errorf("unknown stream id %d", f.StreamID))
	}
	if !m.haveAnchor {
		m.anchorUs = f.PTSUs
		m.haveAnchor = true
	}
	timestampMs := int32((f.PTSUs - m.anchorUs) / 1000)

	if f.IsCodecConfig {
		return m.writeCodecConfig(t, f, timestampMs)
	}
	if len(f.Payload) == 0 {
		return errs.New(errs.BadParameter, "flv.Muxer.Write", fmt.Errorf("zero-length payload"))
	}
	if len(f.Extra) > 0 && t.isVideo {
		absorbExtra(t, f.Extra)
	}

	if t.isVideo {
		return m.writeVideoTag(t, f, timestampMs, avcPacketTypeNALU, f.Payload)
	}
	return m.writeAudioTag(t, aacPacketTypeRaw, f.Payload, timestampMs, f.PTSUs)
}

func (m *Muxer) writeCodecConfig(t *flvTrack, f *media.Frame, timestampMs int32) error {
	if !t.isVideo {
		t.asc = f.Payload
		return m.writeAudioTag(t, aacPacketTypeSeqHeader, t.asc, timestampMs, f.PTSUs)
	}
	absorbExtra(t, bitstream.SplitAnnexB(f.Payload))
	record := buildDecoderConfigRecord(t)
	return m.writeVideoTag(t, f, timestampMs, avcPacketTypeSeqHeader, record)
}

// buildDecoderConfigRecord reuses the same AVCDecoderConfigurationRecord/
// HEVCDecoderConfigurationRecord layout the fragmented MP4 muxer's mp4box
// package emits, stripping the 8-byte box header FLV's sequence header does
// not carry (spec.md §4.4 "the body is an AVCDecoderConfigurationRecord /
// HEVCDecoderConfigurationRecord").
func buildDecoderConfigRecord(t *flvTrack) []byte {
	if t.mime == media.MimeH265 {
		sps, _ := bitstream.ParseH265SPS(t.sps)
		hvcC := mp4box.HvcC{VPS: t.vps, SPS: t.sps, PPS: t.pps}
		if sps != nil {
			hvcC.GeneralProfileSpace = sps.GeneralProfileSpace
			hvcC.GeneralTierFlag = sps.GeneralTierFlag
			hvcC.GeneralProfileIdc = sps.GeneralProfileIdc
			hvcC.GeneralProfileCompat = sps.GeneralProfileCompat
			hvcC.GeneralConstraintFlags = sps.GeneralConstraintFlags
			hvcC.GeneralLevelIdc = sps.GeneralLevelIdc
			hvcC.ChromaFormatIdc = uint8(sps.ChromaFormatIdc)
			hvcC.BitDepthLumaMinus8 = uint8(sps.BitDepthLumaMinus8)
			hvcC.BitDepthChromaMinus8 = uint8(sps.BitDepthChromaMinus8)
		}
		return stripBoxHeader(hvcC.Encode())
	}
	sps, _ := bitstream.ParseH264SPS(t.sps)
	avcC := mp4box.AvcC{SPS: t.sps, PPS: t.pps}
	if sps != nil {
		avcC.ProfileIdc = sps.ProfileIdc
		avcC.ProfileCompat = sps.ProfileCompat
		avcC.LevelIdc = sps.LevelIdc
	}
	return stripBoxHeader(avcC.Encode())
}

func stripBoxHeader(b []byte) []byte {
	if len(b) < 8 {
		return nil
	}
	return b[8:]
}

func absorbExtra(t *flvTrack, extra [][]byte) {
	for _, nalu := range extra {
		if len(nalu) == 0 {
			continue
		}
		if t.mime == media.MimeH265 {
			switch (nalu[0] >> 1) & 0x3F {
			case 32:
				t.vps = nalu
			case 33:
				t.sps = nalu
			case 34:
				t.pps = nalu
			}
			continue
		}
		switch nalu[0] & 0x1F {
		case 7:
			t.sps = nalu
		case 8:
			t.pps = nalu
		}
	}
}

func (m *Muxer) writeVideoTag(t *flvTrack, f *media.Frame, timestampMs int32, packetType uint8, payload []byte) error {
	frameType := frameTypeInter
	if f.IsKey {
		frameType = frameTypeKey
	}
	codecID := codecAVC
	if t.mime == media.MimeH265 {
		codecID = codecHEVC
	}
	ctsMs := int32((f.PTSUs - f.DTSUs) / 1000)
	body := []byte{
		frameType<<4 | codecID,
		packetType,
		byte(ctsMs >> 16), byte(ctsMs >> 8), byte(ctsMs),
	}
	if packetType == avcPacketTypeNALU {
		body = append(body, bitstream.MarshalAVCC(bitstream.SplitAnnexB(payload))...)
	} else {
		body = append(body, payload...)
	}
	return m.writeBytes(media.PacketVideo, f.PTSUs, buildTag(tagTypeVideo, timestampMs, body))
}

func (m *Muxer) writeAudioTag(t *flvTrack, packetType uint8, payload []byte, timestampMs int32, ptsUs int64) error {
	rateIdx := aacSampleRateFLVIndex(t.audio.SampleRate)
	channels := byte(0)
	if t.audio.ChannelConfig >= 2 {
		channels = 1
	}
	header := byte(audioFormatAAC<<4) | rateIdx<<2 | 0x02 /*16-bit*/ | channels
	body := append([]byte{header, packetType}, payload...)
	return m.writeBytes(media.PacketAudio, ptsUs, buildTag(tagTypeAudio, timestampMs, body))
}

// aacSampleRateFLVIndex maps to FLV's coarse 2-bit sound-rate field; AAC
// always carries its real rate in the AudioSpecificConfig, so this field is
// informational only (spec.md §4.4 does not otherwise constrain it).
func aacSampleRateFLVIndex(rate int) byte {
	switch {
	case rate >= 44100:
		return 3
	case rate >= 22050:
		return 2
	case rate >= 11025:
		return 1
	default:
		return 0
	}
}

func (m *Muxer) writeBytes(kind media.PacketKind, tsUs int64, b []byte) error {
	if err := m.out.WriteTag(kind, tsUs, b); err != nil {
		return errs.New(errs.TransientIO, "flv.Muxer.writeBytes", err)
	}
	return nil
}

// Stop is a no-op: FLV has no trailer beyond the last tag's prior_tag_size.
func (m *Muxer) Stop() error {
	m.started = false
	return nil
}
