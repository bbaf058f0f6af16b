package ts

// writeTimestamp encodes a 33-bit 90 kHz timestamp into the standard 5-byte
// MPEG-2 PES field, with the given 4-bit prefix ('0010' PTS-only, '0011'
// PTS-of-both, '0001' DTS-of-both — spec.md §4.2).
func writeTimestamp(prefix byte, ts uint64) [5]byte {
	ts &= 0x1FFFFFFFF
	var b [5]byte
	b[0] = (prefix << 4) | (byte((ts>>30)&0x07) << 1) | 1
	b[1] = byte((ts >> 22) & 0xFF)
	b[2] = (byte((ts>>15)&0x7F) << 1) | 1
	b[3] = byte((ts >> 7) & 0xFF)
	b[4] = (byte(ts&0x7F) << 1) | 1
	return b
}

// buildPESHeader builds the PES packet: start code + stream_id +
// packet_length + optional header (flags, PTS/DTS) + payload.
func buildPESHeader(streamID uint8, ptsTicks uint64, dtsTicks uint64, hasDTS bool, payloadLen int) []byte {
	var optional []byte
	flags2 := byte(0x80) // PTS present
	if hasDTS {
		flags2 = 0xC0 // PTS and DTS present
		pts := writeTimestamp(0x3, ptsTicks)
		dts := writeTimestamp(0x1, dtsTicks)
		optional = append(optional, pts[:]...)
		optional = append(optional, dts[:]...)
	} else {
		pts := writeTimestamp(0x2, ptsTicks)
		optional = append(optional, pts[:]...)
	}

	header := []byte{
		0x00, 0x00, 0x01, // packet_start_code_prefix
		streamID,
		0, 0, // PES_packet_length, filled below
		0x80,             // marker bits '10', rest 0
		flags2,
		byte(len(optional)), // PES_header_data_length
	}
	header = append(header, optional...)

	packetLength := len(header) - 6 + payloadLen
	if packetLength > 0xFFFF {
		packetLength = 0 // video streams may declare length 0 (unbounded)
	}
	header[4] = byte(packetLength >> 8)
	header[5] = byte(packetLength)
	return header
}

// encodePCR packs a 27 MHz PCR value into the 6-byte adaptation-field PCR
// field: 33-bit base (90 kHz-equivalent) * 300 + 9-bit extension.
func encodePCR(pcr27MHz uint64) [6]byte {
	base := (pcr27MHz / 300) & 0x1FFFFFFFF
	ext := pcr27MHz % 300
	var b [6]byte
	b[0] = byte(base >> 25)
	b[1] = byte(base >> 17)
	b[2] = byte(base >> 9)
	b[3] = byte(base >> 1)
	b[4] = byte(base<<7) | 0x7E | byte(ext>>8)
	b[5] = byte(ext)
	return b
}
