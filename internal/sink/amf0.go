package sink

import "math"

// amf0Pair is one AMF0 object key/value entry; value is an already-encoded
// AMF0 value. A second, unexported copy of this tiny encoder lives in
// internal/muxer/flv: both packages need only a handful of AMF0 primitives,
// and the command-message subset RTMP needs (object/null) differs from the
// ECMA-array subset onMetaData needs, so they are not worth sharing across
// a package boundary for a few lines each.
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

func amf0String(s string) []byte {
	out := make([]byte, 0, 3+len(s))
	out = append(out, 0x02)
	out = append(out, byte(len(s)>>8), byte(len(s)))
	out = append(out, s...)
	return out
}

// amf0Null encodes the AMF0 null marker, used for NetConnection/NetStream
// command arguments streampack-go does not populate.
func amf0Null() []byte { return []byte{0x05} }

// amf0Object encodes pairs as an AMF0 anonymous object (marker 0x03): the
// command object connect/publish carry.
func amf0Object(pairs []amf0Pair) []byte {
	out := []byte{0x03}
	for _, p := range pairs {
		out = append(out, byte(len(p.Key)>>8), byte(len(p.Key)))
		out = append(out, p.Key...)
		out = append(out, p.Value...)
	}
	return append(out, 0x00, 0x00, 0x09) // object-end marker
}
