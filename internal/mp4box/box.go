// Package mp4box builds the ISO-BMFF box tree the fragmented MP4 muxer
// emits (spec.md §4.3, §6): ftyp/moov/moof/mdat/mfra and their children.
//
// Each box exposes Encode() []byte, returning its fully serialized
// size+FourCC+body form; parent boxes concatenate their children's encoded
// bytes as their own body. Field-level writes go through a bitio.Writer
// wrapping an in-memory buffer, the same writer type
// pkg/video/mp4muxer/muxer.go and pkg/video/hls/init.go stream box fields
// through in the teacher repo.
package mp4box

import (
	"bytes"

	"github.com/icza/bitio"
)

// Box is anything that can serialize itself to a complete ISO-BMFF box
// (size + FourCC + body).
type Box interface {
	Encode() []byte
}

// fieldWriter is the low-level helper every box body is built with.
type fieldWriter struct {
	buf *bytes.Buffer
	w   *bitio.Writer
}

func newFieldWriter() *fieldWriter {
	buf := &bytes.Buffer{}
	return &fieldWriter{buf: buf, w: bitio.NewWriter(buf)}
}

func (f *fieldWriter) u8(v uint8)   { f.w.TryWriteByte(v) }
func (f *fieldWriter) u16(v uint16) { f.w.TryWriteBits(uint64(v), 16) }
func (f *fieldWriter) u24(v uint32) { f.w.TryWriteBits(uint64(v), 24) }
func (f *fieldWriter) u32(v uint32) { f.w.TryWriteBits(uint64(v), 32) }
func (f *fieldWriter) u64(v uint64) { f.w.TryWriteBits(v, 64) }
func (f *fieldWriter) raw(b []byte) { f.w.TryWrite(b) }
func (f *fieldWriter) fourcc(s string) {
	f.w.TryWrite([]byte(s))
}
func (f *fieldWriter) err() error { return f.w.TryError }
func (f *fieldWriter) bytes() []byte { return f.buf.Bytes() }

// encodeBox wraps body with a 32-bit size + 4-byte FourCC header. Boxes in
// this muxer never exceed 32-bit size (segments are flushed well before
// that), so the 64-bit largesize variant is not needed.
func encodeBox(fourCC string, body []byte) []byte {
	size := uint32(8 + len(body))
	out := make([]byte, 0, size)
	fw := newFieldWriter()
	fw.u32(size)
	fw.fourcc(fourCC)
	out = append(out, fw.bytes()...)
	out = append(out, body...)
	return out
}

// concatBoxes concatenates the Encode() of each child, in order.
func concatBoxes(boxes ...Box) []byte {
	var out []byte
	for _, b := range boxes {
		out = append(out, b.Encode()...)
	}
	return out
}

// fullBoxHeader returns the 4-byte version+flags header every "full box"
// (stsd, mvhd, tkhd, mdhd, stts, stsc, stsz, co64, stss, ctts, mfhd, tfhd,
// tfdt, trun, tfra, ...) begins its body with.
func fullBoxHeader(version uint8, flags uint32) []byte {
	fw := newFieldWriter()
	fw.u8(version)
	fw.u24(flags)
	return fw.bytes()
}

// Raw wraps an already-encoded box (e.g. a box type this package does not
// model) so it can be placed among concatBoxes inputs.
type Raw []byte

// Encode returns r unchanged: it is assumed to already be length-prefixed.
func (r Raw) Encode() []byte { return r }
