package bitstream

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// H265SPS carries the fields needed to fill an HEVCDecoderConfigurationRecord
// (spec.md §4.3).
type H265SPS struct {
	GeneralProfileSpace      uint8
	GeneralTierFlag          bool
	GeneralProfileIdc        uint8
	GeneralProfileCompat     uint32
	GeneralConstraintFlags   uint64 // 48 bits
	GeneralLevelIdc          uint8
	ChromaFormatIdc          uint32
	Width                    uint32
	Height                   uint32
	BitDepthLumaMinus8       uint32
	BitDepthChromaMinus8     uint32
	raw                      []byte
}

// Raw returns the SPS payload (without start code) as originally parsed.
func (s *H265SPS) Raw() []byte { return s.raw }

// ParseH265SPS decodes an HEVC SPS NAL unit (2-byte NAL header, then RBSP)
// far enough to fill the profile/tier/level and chroma/bit-depth fields an
// HEVCDecoderConfigurationRecord needs.
func ParseH265SPS(nalu []byte) (*H265SPS, error) {
	buf := RemoveStartCode(nalu)
	if len(buf) < 2 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", fmt.Errorf("sps too short"))
	}
	nalType := (buf[0] >> 1) & 0x3F
	if nalType != 33 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS",
			fmt.Errorf("not an SPS nal unit (type %d)", nalType))
	}

	sps := &H265SPS{raw: append([]byte(nil), buf...)}
	r := bitio.NewReader(bytes.NewReader(buf[2:]))

	if _, err := r.ReadBits(4); err != nil { // sps_video_parameter_set_id
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	maxSubLayersMinus1, err := r.ReadBits(3)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	if _, err := r.ReadBool(); err != nil { // sps_temporal_id_nesting_flag
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}

	// profile_tier_level(1, max_sub_layers_minus1)
	genProfileSpace, err := r.ReadBits(2)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralProfileSpace = uint8(genProfileSpace)
	tierFlag, err := r.ReadBool()
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralTierFlag = tierFlag
	profileIdc, err := r.ReadBits(5)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralProfileIdc = uint8(profileIdc)
	profileCompat, err := r.ReadBits(32)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralProfileCompat = uint32(profileCompat)
	constraintFlags, err := r.ReadBits(48)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralConstraintFlags = constraintFlags
	levelIdc, err := r.ReadBits(8)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.GeneralLevelIdc = uint8(levelIdc)

	// sub-layer profile/level presence flags, skipped bit-exactly.
	subLayerProfilePresent := make([]bool, maxSubLayersMinus1)
	subLayerLevelPresent := make([]bool, maxSubLayersMinus1)
	for i := range subLayerProfilePresent {
		p, err := r.ReadBool()
		if err != nil {
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
		}
		l, err := r.ReadBool()
		if err != nil {
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
		}
		subLayerProfilePresent[i] = p
		subLayerLevelPresent[i] = l
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			if _, err := r.ReadBits(2); err != nil { // reserved
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
			}
		}
	}
	for i := uint64(0); i < maxSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			if _, err := r.ReadBits(88); err != nil {
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
			}
		}
		if subLayerLevelPresent[i] {
			if _, err := r.ReadBits(8); err != nil {
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
			}
		}
	}

	if _, err := readUE(r); err != nil { // sps_seq_parameter_set_id
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	chromaFormatIdc, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.ChromaFormatIdc = chromaFormatIdc
	if chromaFormatIdc == 3 {
		if _, err := r.ReadBool(); err != nil { // separate_colour_plane_flag
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
		}
	}
	width, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	height, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.Width = width
	sps.Height = height

	conformanceWindow, err := r.ReadBool()
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	if conformanceWindow {
		for i := 0; i < 4; i++ {
			if _, err := readUE(r); err != nil {
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
			}
		}
	}

	bitDepthLuma, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	bitDepthChroma, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH265SPS", err)
	}
	sps.BitDepthLumaMinus8 = bitDepthLuma
	sps.BitDepthChromaMinus8 = bitDepthChroma

	return sps, nil
}
