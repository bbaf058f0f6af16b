package pipeline

import (
	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// splitInlineCodecConfig detects SPS/PPS/VPS NAL units an encoder delivered
// inline (concatenated ahead of a keyframe's slice data, rather than as a
// separate is_codec_config frame or pre-populated Extra) and moves them into
// f.Extra, leaving only the non-parameter-set NAL units in f.Payload
// (spec.md §4.1 "keep VPS/SPS/PPS in extra, forward the rest"). Muxers
// assume Payload never carries parameter sets, so this must run before a
// frame reaches the endpoint.
func splitInlineCodecConfig(f *media.Frame) {
	if f.IsCodecConfig || !f.Mime.IsVideo() {
		return
	}
	nalus := bitstream.SplitAnnexB(f.Payload)
	if len(nalus) == 0 {
		return
	}
	var extra, rest [][]byte
	for _, n := range nalus {
		if isParameterSet(f.Mime, n) {
			extra = append(extra, append([]byte(nil), n...))
		} else {
			rest = append(rest, n)
		}
	}
	if len(extra) == 0 {
		return
	}
	f.Extra = append(f.Extra, extra...)
	f.Payload = bitstream.EncodeAnnexB(rest)
}

// isParameterSet reports whether nalu is an H.264 SPS/PPS or H.265
// VPS/SPS/PPS unit.
func isParameterSet(mime media.Mime, nalu []byte) bool {
	if len(nalu) == 0 {
		return false
	}
	switch mime {
	case media.MimeH264:
		switch nalu[0] & 0x1F {
		case 7, 8: // SPS, PPS
			return true
		}
	case media.MimeH265:
		switch (nalu[0] >> 1) & 0x3F {
		case 32, 33, 34: // VPS, SPS, PPS
			return true
		}
	}
	return false
}
