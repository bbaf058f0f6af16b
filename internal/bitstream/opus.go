package bitstream

import (
	"encoding/binary"
	"fmt"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// OpusHead is the identification header extracted from an encoder's Opus
// codec-config bytes (spec.md §4.5).
type OpusHead struct {
	ChannelCount       uint8
	PreSkip            uint16
	InputSampleRate    uint32
	OutputGain         int16
	ChannelMappingFam  uint8
}

// opus CSD marker magics, as emitted by encoders that bundle identification,
// pre-skip ("delay"), and preroll data into one configuration blob.
var (
	magicHeader = []byte("AOPUSHDR")
	magicDelay  = []byte("AOPUSDLY")
	magicPreroll = []byte("AOPUSPRL")
)

// ParseOpusCSD scans csd for an AOPUSHDR-prefixed OpusHead identification
// header and decodes it.
func ParseOpusCSD(csd []byte) (*OpusHead, error) {
	idx := indexOf(csd, magicHeader)
	if idx < 0 {
		// No marker: assume csd already *is* a bare "OpusHead" identification
		// header, the form most encoders emit directly.
		return parseOpusHead(csd)
	}
	rest := csd[idx+len(magicHeader):]
	if len(rest) < 2 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseOpusCSD", fmt.Errorf("truncated AOPUSHDR"))
	}
	// AOPUSHDR is followed by a 2-byte little-endian length then the
	// OpusHead bytes themselves.
	length := binary.LittleEndian.Uint16(rest[:2])
	if len(rest) < 2+int(length) {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseOpusCSD", fmt.Errorf("truncated OpusHead"))
	}
	return parseOpusHead(rest[2 : 2+int(length)])
}

func parseOpusHead(buf []byte) (*OpusHead, error) {
	if len(buf) >= 8 && string(buf[:8]) == "OpusHead" {
		buf = buf[8:]
	}
	if len(buf) < 11 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseOpusCSD", fmt.Errorf("OpusHead too short"))
	}
	// version := buf[0]
	return &OpusHead{
		ChannelCount:      buf[1],
		PreSkip:           binary.LittleEndian.Uint16(buf[2:4]),
		InputSampleRate:   binary.LittleEndian.Uint32(buf[4:8]),
		OutputGain:        int16(binary.LittleEndian.Uint16(buf[8:10])),
		ChannelMappingFam: buf[10],
	}, nil
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// hasDelayOrPreroll reports whether csd carries AOPUSDLY/AOPUSPRL sections,
// which this parser recognizes but does not need to decode further (they
// affect only decoder-side pre-roll discard, out of scope for a muxer).
func hasDelayOrPreroll(csd []byte) bool {
	return indexOf(csd, magicDelay) >= 0 || indexOf(csd, magicPreroll) >= 0
}
