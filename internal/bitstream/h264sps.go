package bitstream

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// H264SPS carries the fields needed to fill an AVCDecoderConfigurationRecord
// (spec.md §4.3) and derive display geometry.
type H264SPS struct {
	ProfileIdc         uint8
	ProfileCompat      uint8
	LevelIdc           uint8
	SeqParameterSetID  uint32
	ChromaFormatIdc    uint32
	Width              uint32
	Height             uint32
	FrameMbsOnly       bool
	raw                []byte
}

// Raw returns the SPS payload (without start code) as originally parsed.
func (s *H264SPS) Raw() []byte { return s.raw }

// ParseH264SPS decodes an Annex-B or raw (start-code-stripped) H.264 SPS NAL
// unit, enough to build a decoder configuration record.
func ParseH264SPS(nalu []byte) (*H264SPS, error) {
	buf := RemoveStartCode(nalu)
	if len(buf) < 4 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS",
			fmt.Errorf("sps too short"))
	}
	nalType := buf[0] & 0x1F
	if nalType != 7 {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS",
			fmt.Errorf("not an SPS nal unit (type %d)", nalType))
	}

	sps := &H264SPS{raw: append([]byte(nil), buf...)}
	sps.ProfileIdc = buf[1]
	sps.ProfileCompat = buf[2]
	sps.LevelIdc = buf[3]

	r := bitio.NewReader(bytes.NewReader(buf[4:]))

	var err error
	sps.SeqParameterSetID, err = readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}

	sps.ChromaFormatIdc = 1
	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		sps.ChromaFormatIdc, err = readUE(r)
		if err != nil {
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
		}
		if sps.ChromaFormatIdc == 3 {
			if _, err := r.ReadBool(); err != nil { // separate_colour_plane_flag
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
			}
		}
		for _, n := range []string{"bit_depth_luma", "bit_depth_chroma"} {
			_ = n
			if _, err := readUE(r); err != nil {
				return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
			}
		}
		if _, err := r.ReadBool(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
		}
		scalingMatrixPresent, err := r.ReadBool()
		if err != nil {
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
		}
		if scalingMatrixPresent {
			// Scaling lists are not needed for the decoder config record;
			// bail out gracefully rather than parse them bit-exactly.
			return sps, nil
		}
	}

	if _, err := readUE(r); err != nil { // log2_max_frame_num_minus4
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	picOrderCntType, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	if picOrderCntType == 0 {
		if _, err := readUE(r); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
		}
	} else if picOrderCntType == 1 {
		// Deliberately not parsed further: the offset-for-ref-frame list is
		// irrelevant to the decoder config record and variable length.
		return sps, nil
	}

	if _, err := readUE(r); err != nil { // max_num_ref_frames
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	if _, err := r.ReadBool(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}

	picWidthInMbsMinus1, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	picHeightInMapUnitsMinus1, err := readUE(r)
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	frameMbsOnly, err := r.ReadBool()
	if err != nil {
		return nil, errs.New(errs.MuxerInternal, "bitstream.ParseH264SPS", err)
	}
	sps.FrameMbsOnly = frameMbsOnly

	sps.Width = (picWidthInMbsMinus1 + 1) * 16
	heightMul := uint32(1)
	if !frameMbsOnly {
		heightMul = 2
	}
	sps.Height = (picHeightInMapUnitsMinus1+1)*16*heightMul

	return sps, nil
}

func readUE(r *bitio.Reader) (uint32, error) {
	leadingZeros := 0
	for {
		b, err := r.ReadBool()
		if err != nil {
			return 0, err
		}
		if b {
			break
		}
		leadingZeros++
		if leadingZeros > 32 {
			return 0, fmt.Errorf("ue(v): too many leading zero bits")
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	bits, err := r.ReadBits(uint8(leadingZeros))
	if err != nil {
		return 0, err
	}
	return (1 << uint(leadingZeros)) - 1 + uint32(bits), nil
}
