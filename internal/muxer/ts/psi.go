// Package ts implements the MPEG-TS muxer (spec.md §4.2): PAT/PMT/SDT table
// emission, PES packetization with PTS/DTS/PCR timestamps, and 188-byte
// packet framing with adaptation fields and per-PID continuity counters.
//
// Grounded on pkg/video/hls/muxer_ts_segment.go's call-site shape
// (MuxerData/PESHeader/PESOptionalHeader/PacketAdaptationField/
// ClockReference) for the PES/PCR/adaptation-field API this muxer mirrors;
// the nvr/pkg/video/mpegts package itself is not present in the teacher pack,
// so PAT/PMT/SDT/CRC32 and the 188-byte packetizer are built field-by-field
// from spec.md §4.2 directly.
package ts

// Well-known PIDs (spec.md §4.2).
const (
	PIDPAT uint16 = 0x0000
	PIDSDT uint16 = 0x0011
	// PIDPMTBase is the first PMT PID; additional services get PIDPMTBase+1, ...
	PIDPMTBase uint16 = 0x1000
	// PIDStreamBase is the first elementary-stream PID.
	PIDStreamBase uint16 = 0x0100
)

// Stream types carried in the PMT (spec.md §4.2 "AVC/HEVC... AAC...").
const (
	StreamTypeH264 uint8 = 0x1B
	StreamTypeH265 uint8 = 0x24
	StreamTypeAAC  uint8 = 0x0F
	StreamTypeOpus uint8 = 0x06 // private data, with a registration descriptor
)

// crc32MPEG2 computes the MPEG-2 section CRC32: polynomial 0x04C11DB7, no
// reflection, init 0xFFFFFFFF, no final xor.
func crc32MPEG2(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func appendCRC(section []byte) []byte {
	crc := crc32MPEG2(section)
	return append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// StreamEntry describes one elementary stream for PMT construction.
type StreamEntry struct {
	PID        uint16
	StreamType uint8
}

// buildPAT builds one PAT section: a single program pointing at pmtPID.
func buildPAT(transportStreamID uint16, version uint8, pmtPID uint16) []byte {
	body := []byte{
		byte(transportStreamID >> 8), byte(transportStreamID),
		0xC0 | (version << 1) | 0x01, // reserved(2)=11, version(5), current_next=1
		0x00, // section_number
		0x00, // last_section_number
		0x00, 0x01, // program_number = 1
		0xE0 | byte(pmtPID>>8), byte(pmtPID), // reserved(3)=111, program_map_PID
	}
	sectionLength := len(body) + 4 // + CRC
	header := []byte{0x00, 0xB0 | byte(sectionLength>>8), byte(sectionLength)}
	section := append(header, body...)
	return appendCRC(section)
}

// buildPMT builds one PMT section listing streams, with PCR riding on
// pcrPID (spec.md §4.2 "PCR rides on the first video PID... or the first
// audio PID if audio-only").
func buildPMT(programNumber uint16, version uint8, pcrPID uint16, streams []StreamEntry) []byte {
	body := []byte{
		byte(programNumber >> 8), byte(programNumber),
		0xC0 | (version << 1) | 0x01,
		0x00, // section_number
		0x00, // last_section_number
		0xE0 | byte(pcrPID>>8), byte(pcrPID),
		0xF0, 0x00, // reserved(4)=1111, program_info_length=0
	}
	for _, s := range streams {
		body = append(body,
			s.StreamType,
			0xE0|byte(s.PID>>8), byte(s.PID),
			0xF0, 0x00, // ES_info_length = 0
		)
	}
	sectionLength := len(body) + 4
	header := []byte{0x02, 0xB0 | byte(sectionLength>>8), byte(sectionLength)}
	section := append(header, body...)
	return appendCRC(section)
}

// buildSDT builds a minimal, single-service SDT section (spec.md §4.2 names
// SDT but leaves its content otherwise unspecified). This skips the
// reserved_future_use and per-service EIT-flags bytes full DVB-SI carries;
// the one field a player actually needs, the service-descriptor name, is
// present.
func buildSDT(transportStreamID uint16, version uint8, serviceName string) []byte {
	nameBytes := []byte(serviceName)
	descriptor := []byte{
		0x48,                     // descriptor_tag: service_descriptor
		byte(3 + len(nameBytes)), // descriptor_length
		0x01,                     // service_type: digital television service
		0x00,                     // service_provider_name_length
		byte(len(nameBytes)),
	}
	descriptor = append(descriptor, nameBytes...)

	// descriptors_loop_length(12) packed with reserved(4)+EIT flags(2)+
	// running_status(3)+free_CA_mode(1) in the preceding byte.
	loopLength := len(descriptor)
	body := []byte{
		byte(transportStreamID >> 8), byte(transportStreamID),
		0xC0 | (version << 1) | 0x01,
		0x00, 0x00, // section_number, last_section_number
		0x00, 0x00, // original_network_id (single-network deployment)
		0x00, 0x01, // service_id = 1
		0xFC | byte(loopLength>>8&0x0F), byte(loopLength),
	}
	body = append(body, descriptor...)
	sectionLength := len(body) + 4
	header := []byte{0x42, 0xB0 | byte(sectionLength>>8), byte(sectionLength)}
	section := append(header, body...)
	return appendCRC(section)
}
