package bitstream

import (
	"encoding/binary"
	"fmt"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// MaxNALUSize bounds a single NAL unit's AVCC length field, guarding
// against corrupt streams claiming an absurd size.
const MaxNALUSize = 20 << 20 // 20 MiB

// UnmarshalAVCC parses a 4-byte-length-prefixed NALU sequence (the format
// MP4 samples use) into individual NAL units.
func UnmarshalAVCC(buf []byte) ([][]byte, error) {
	var nalus [][]byte
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, errs.New(errs.MuxerInternal, "bitstream.UnmarshalAVCC",
				fmt.Errorf("truncated length prefix"))
		}
		size := binary.BigEndian.Uint32(buf[:4])
		if size > MaxNALUSize {
			return nil, errs.New(errs.MuxerInternal, "bitstream.UnmarshalAVCC",
				fmt.Errorf("NALU size %d exceeds max %d", size, MaxNALUSize))
		}
		buf = buf[4:]
		if uint32(len(buf)) < size {
			return nil, errs.New(errs.MuxerInternal, "bitstream.UnmarshalAVCC",
				fmt.Errorf("NALU size %d exceeds remaining buffer %d", size, len(buf)))
		}
		nalus = append(nalus, buf[:size])
		buf = buf[size:]
	}
	return nalus, nil
}

// MarshalAVCC encodes nalus as 4-byte-big-endian-length-prefixed units.
func MarshalAVCC(nalus [][]byte) []byte {
	size := 0
	for _, n := range nalus {
		size += 4 + len(n)
	}
	out := make([]byte, size)
	pos := 0
	for _, n := range nalus {
		binary.BigEndian.PutUint32(out[pos:], uint32(len(n)))
		pos += 4
		pos += copy(out[pos:], n)
	}
	return out
}
