package bitstream

import (
	"fmt"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// ADTSSampleRates is indexed by the ADTS sample-rate-index field.
var ADTSSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

func adtsSampleRateIndex(rate int) (int, error) {
	for i, r := range ADTSSampleRates {
		if r == rate {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unsupported AAC sample rate: %d", rate)
}

// ADTSHeader is the 7-byte fixed+variable ADTS header preceding one AAC
// access unit on MPEG-TS (spec.md §4.2) and FLV does not use it (FLV AAC
// carries raw AudioSpecificConfig-framed data instead, per spec.md §4.4).
type ADTSHeader struct {
	ProfileObjectType int // AAC-LC = 1 (object type minus 1, per ADTS convention)
	SampleRate        int
	ChannelConfig     int
	PayloadLength     int
}

// BuildADTS returns the 7-byte ADTS header for payload of the given length.
func BuildADTS(h ADTSHeader) ([]byte, error) {
	if h.PayloadLength <= 0 {
		return nil, errs.New(errs.BadParameter, "bitstream.BuildADTS", fmt.Errorf("zero-length payload"))
	}
	sampleRateIdx, err := adtsSampleRateIndex(h.SampleRate)
	if err != nil {
		return nil, errs.New(errs.BadParameter, "bitstream.BuildADTS", err)
	}

	frameLength := h.PayloadLength + 7
	buf := make([]byte, 7)

	buf[0] = 0xFF
	buf[1] = 0xF1 // syncword low bits, MPEG-4, layer=0, protection_absent=1

	profile := h.ProfileObjectType
	buf[2] = byte(profile<<6) | byte(sampleRateIdx<<2) | byte((h.ChannelConfig>>2)&0x1)
	buf[3] = byte((h.ChannelConfig&0x3)<<6) | byte((frameLength>>11)&0x3)
	buf[4] = byte((frameLength >> 3) & 0xFF)
	buf[5] = byte((frameLength&0x7)<<5) | 0x1F // buffer fullness high bits (0x7FF like ffmpeg does)
	buf[6] = 0xFC                              // buffer fullness low bits + number_of_raw_data_blocks=0

	return buf, nil
}

// ParseADTS decodes one ADTS header, returning it and the payload length it
// declares.
func ParseADTS(buf []byte) (*ADTSHeader, error) {
	if len(buf) < 7 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseADTS", fmt.Errorf("buffer too short"))
	}
	if buf[0] != 0xFF || buf[1]&0xF0 != 0xF0 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseADTS", fmt.Errorf("bad syncword"))
	}
	protectionAbsent := buf[1] & 0x1
	if protectionAbsent != 1 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseADTS",
			fmt.Errorf("CRC-protected ADTS not supported"))
	}

	profile := int(buf[2] >> 6)
	sampleRateIdx := int((buf[2] >> 2) & 0xF)
	if sampleRateIdx >= len(ADTSSampleRates) {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseADTS",
			fmt.Errorf("sample rate index out of range: %d", sampleRateIdx))
	}
	channelConfig := int((buf[2]&0x1)<<2) | int(buf[3]>>6)
	frameLength := (int(buf[3]&0x3) << 11) | (int(buf[4]) << 3) | int(buf[5]>>5)

	if frameLength < 7 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseADTS",
			fmt.Errorf("frame length %d shorter than header", frameLength))
	}

	return &ADTSHeader{
		ProfileObjectType: profile,
		SampleRate:        ADTSSampleRates[sampleRateIdx],
		ChannelConfig:     channelConfig,
		PayloadLength:     frameLength - 7,
	}, nil
}
