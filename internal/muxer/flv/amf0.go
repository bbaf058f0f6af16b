// Package flv implements the FLV muxer (spec.md §4.4): header, script tag
// (onMetaData), and audio/video tag framing with prior-tag-size trailers.
//
// No FLV code exists anywhere in the teacher pack; this package applies the
// teacher's general low-level big-endian field-writing idiom (as seen in
// mp4box, itself grounded on pkg/video/mp4muxer/muxer.go's WriteUint24-style
// helpers) to the FLV tag layout spec.md §4.4 specifies field-by-field.
package flv

import "math"

// amf0Pair is one ECMA-array key/value entry; value is an already-encoded
// AMF0 value.
type amf0Pair struct {
	Key   string
	Value []byte
}

func amf0Number(v float64) []byte {
	bits := math.Float64bits(v)
	out := make([]byte, 9)
	out[0] = 0x00
	for i := 0; i < 8; i++ {
		out[1+i] = byte(bits >> (56 - 8*i))
	}
	return out
}

func amf0Bool(v bool) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return []byte{0x01, b}
}

func amf0String(s string) []byte {
	out := make([]byte, 0, 3+len(s))
	out = append(out, 0x02)
	out = append(out, byte(len(s)>>8), byte(len(s)))
	out = append(out, s...)
	return out
}

// amf0ECMAArray encodes pairs as an AMF0 ECMA array (marker 0x08): the
// container onMetaData uses (spec.md §4.4).
func amf0ECMAArray(pairs []amf0Pair) []byte {
	out := []byte{0x08}
	count := uint32(len(pairs))
	out = append(out, byte(count>>24), byte(count>>16), byte(count>>8), byte(count))
	for _, p := range pairs {
		out = append(out, byte(len(p.Key)>>8), byte(len(p.Key)))
		out = append(out, p.Key...)
		out = append(out, p.Value...)
	}
	out = append(out, 0x00, 0x00, 0x09) // object-end marker
	return out
}
