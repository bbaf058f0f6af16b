package flv

const (
	tagTypeAudio  uint8 = 8
	tagTypeVideo  uint8 = 9
	tagTypeScript uint8 = 18
)

// buildFLVHeader returns the 9-byte FLV header plus the trailing 4-byte
// prior-tag-size=0 that always follows it (spec.md §4.4).
func buildFLVHeader(hasAudio, hasVideo bool) []byte {
	flags := byte(0)
	if hasAudio {
		flags |= 0x04
	}
	if hasVideo {
		flags |= 0x01
	}
	header := []byte{'F', 'L', 'V', 0x01, flags, 0, 0, 0, 9}
	return append(header, 0, 0, 0, 0)
}

// buildTag frames one FLV tag: type + 24-bit data_size + 24-bit timestamp +
// 8-bit extended timestamp + 24-bit stream_id=0 + body, followed by its
// trailing prior_tag_size (spec.md §4.4).
func buildTag(tagType uint8, timestampMs int32, body []byte) []byte {
	ts := uint32(timestampMs)
	header := []byte{
		tagType,
		byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body)),
		byte(ts >> 16), byte(ts >> 8), byte(ts),
		byte(ts >> 24), // extended timestamp (ms high byte)
		0, 0, 0,        // stream_id
	}
	tag := append(header, body...)
	tagSize := uint32(len(tag))
	priorSize := []byte{byte(tagSize >> 24), byte(tagSize >> 16), byte(tagSize >> 8), byte(tagSize)}
	return append(tag, priorSize...)
}
