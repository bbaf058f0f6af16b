// Package bitstream implements the encoded-payload helpers spec.md §4.5
// requires: start-code scanning, AVCC/Annex-B conversion, H.264/H.265 SPS
// parsing, ADTS header encode/decode, and Opus CSD parsing.
package bitstream

import "bytes"

// StartCodeSize returns 3 for a "00 00 01" start code, 4 for "00 00 00 01",
// or 0 if buf does not begin with either.
func StartCodeSize(buf []byte) int {
	if len(buf) >= 4 && buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 1 {
		return 4
	}
	if len(buf) >= 3 && buf[0] == 0 && buf[1] == 0 && buf[2] == 1 {
		return 3
	}
	return 0
}

// RemoveStartCode returns buf past its leading start code, or buf unchanged
// if it has none.
func RemoveStartCode(buf []byte) []byte {
	if n := StartCodeSize(buf); n > 0 {
		return buf[n:]
	}
	return buf
}

// AddStartCode prepends the 4-byte Annex-B start code to buf.
func AddStartCode(buf []byte) []byte {
	out := make([]byte, 0, len(buf)+4)
	out = append(out, 0, 0, 0, 1)
	return append(out, buf...)
}

// Slices splits buf on every occurrence of sep, discarding empty pieces,
// the way Annex-B parameter sets are split at start codes.
func Slices(buf []byte, sep []byte) [][]byte {
	var out [][]byte
	for _, part := range bytes.Split(buf, sep) {
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// SplitAnnexB splits a byte-stream-format buffer into individual NAL units,
// recognizing both 3- and 4-byte start codes.
func SplitAnnexB(buf []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i < len(buf) {
		n := StartCodeSize(buf[i:])
		if n > 0 {
			if start >= 0 && i > start {
				nalus = append(nalus, buf[start:i])
			}
			i += n
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(buf) {
		nalus = append(nalus, buf[start:])
	}
	return nalus
}

// EncodeAnnexB concatenates nalus, each prefixed with a 4-byte start code.
func EncodeAnnexB(nalus [][]byte) []byte {
	size := 0
	for _, n := range nalus {
		size += 4 + len(n)
	}
	out := make([]byte, 0, size)
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}
