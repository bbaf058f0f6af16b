package mp4box

// AvcC is the AVCDecoderConfigurationRecord (spec.md §4.3).
type AvcC struct {
	ProfileIdc   uint8
	ProfileCompat uint8
	LevelIdc     uint8
	SPS          []byte
	PPS          []byte
}

// Encode implements Box.
func (b AvcC) Encode() []byte {
	fw := newFieldWriter()
	fw.u8(1) // configurationVersion
	fw.u8(b.ProfileIdc)
	fw.u8(b.ProfileCompat)
	fw.u8(b.LevelIdc)
	fw.u8(0xFC | 3) // reserved(6)=111111, lengthSizeMinusOne=3
	fw.u8(0xE0 | 1) // reserved(3)=111, numOfSequenceParameterSets=1
	fw.u16(uint16(len(b.SPS)))
	fw.raw(b.SPS)
	fw.u8(1) // numOfPictureParameterSets
	fw.u16(uint16(len(b.PPS)))
	fw.raw(b.PPS)
	return encodeBox("avcC", fw.bytes())
}

// HvcC is a simplified HEVCDecoderConfigurationRecord carrying exactly one
// VPS, one SPS, and one PPS array (spec.md §4.3). Real encoders may emit
// more arrays (prefix/suffix SEI); this muxer does not receive those from
// the pipeline so they are not modeled.
type HvcC struct {
	GeneralProfileSpace    uint8
	GeneralTierFlag        bool
	GeneralProfileIdc      uint8
	GeneralProfileCompat   uint32
	GeneralConstraintFlags uint64
	GeneralLevelIdc        uint8
	ChromaFormatIdc        uint8
	BitDepthLumaMinus8     uint8
	BitDepthChromaMinus8   uint8
	VPS, SPS, PPS          []byte
}

// Encode implements Box.
func (b HvcC) Encode() []byte {
	fw := newFieldWriter()
	fw.u8(1) // configurationVersion
	profileByte := (b.GeneralProfileSpace << 6) | (b2u8(b.GeneralTierFlag) << 5) | (b.GeneralProfileIdc & 0x1F)
	fw.u8(profileByte)
	fw.u32(b.GeneralProfileCompat)
	// 48-bit constraint flags
	fw.u32(uint32(b.GeneralConstraintFlags >> 16))
	fw.u16(uint16(b.GeneralConstraintFlags))
	fw.u8(b.GeneralLevelIdc)
	fw.u16(0xF000) // reserved(4)=1111, min_spatial_segmentation_idc=0
	fw.u8(0xFC)    // reserved(6)=111111, parallelismType=0
	fw.u8(0xFC | b.ChromaFormatIdc&0x3)
	fw.u8(0xF8 | b.BitDepthLumaMinus8&0x7)
	fw.u8(0xF8 | b.BitDepthChromaMinus8&0x7)
	fw.u16(0) // avgFrameRate
	fw.u8(0x0F) // constantFrameRate(2)=0, numTemporalLayers(3)=1, temporalIdNested(1)=1, lengthSizeMinusOne(2)=3
	fw.u8(3)    // numOfArrays
	writeNALUArray := func(nalType uint8, nalu []byte) {
		fw.u8(0x80 | nalType) // array_completeness=1, nal_unit_type
		fw.u16(1)             // numNalus
		fw.u16(uint16(len(nalu)))
		fw.raw(nalu)
	}
	writeNALUArray(32, b.VPS) // VPS_NUT
	writeNALUArray(33, b.SPS) // SPS_NUT
	writeNALUArray(34, b.PPS) // PPS_NUT
	return encodeBox("hvcC", fw.bytes())
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Esds wraps an AudioSpecificConfig in the ES_ID/DecoderConfigDescr/
// DecSpecificInfo/SLConfigDescr descriptor chain AAC-in-MP4 needs (spec.md
// §4.3).
type Esds struct {
	AudioSpecificConfig []byte
	AvgBitrate          uint32
	MaxBitrate          uint32
}

const (
	esdsTagESDescr               = 0x03
	esdsTagDecoderConfigDescr    = 0x04
	esdsTagDecSpecificInfoDescr  = 0x05
	esdsTagSLConfigDescr         = 0x06
)

func writeDescrLen(fw *fieldWriter, n int) {
	// 1-4 byte variable-length-encoded size, MSB=continuation, as used by
	// every MPEG-4 descriptor.
	for {
		b := byte(n & 0x7F)
		n >>= 7
		if n > 0 {
			fw.u8(b | 0x80)
		} else {
			fw.u8(b)
			return
		}
	}
}

// Encode implements Box.
func (b Esds) Encode() []byte {
	ascFw := newFieldWriter()
	ascFw.u8(esdsTagDecSpecificInfoDescr)
	writeDescrLen(ascFw, len(b.AudioSpecificConfig))
	ascFw.raw(b.AudioSpecificConfig)
	decSpecific := ascFw.bytes()

	decConfigFw := newFieldWriter()
	decConfigFw.u8(0x40) // objectTypeIndication = Audio ISO/IEC 14496-3
	decConfigFw.u8(0x15) // streamType(6)=5 (audio), upStream=0, reserved=1
	decConfigFw.u24(0)   // bufferSizeDB
	decConfigFw.u32(b.MaxBitrate)
	decConfigFw.u32(b.AvgBitrate)
	decConfigBody := append(decConfigFw.bytes(), decSpecific...)

	decConfigHdrFw := newFieldWriter()
	decConfigHdrFw.u8(esdsTagDecoderConfigDescr)
	writeDescrLen(decConfigHdrFw, len(decConfigBody))
	decConfig := append(decConfigHdrFw.bytes(), decConfigBody...)

	slConfig := []byte{esdsTagSLConfigDescr, 1, 0x02}

	esBodyFw := newFieldWriter()
	esBodyFw.u16(0) // ES_ID
	esBodyFw.u8(0)  // flags/streamPriority
	esBody := append(esBodyFw.bytes(), decConfig...)
	esBody = append(esBody, slConfig...)

	esHdrFw := newFieldWriter()
	esHdrFw.u8(esdsTagESDescr)
	writeDescrLen(esHdrFw, len(esBody))
	es := append(esHdrFw.bytes(), esBody...)

	return encodeBox("esds", append(fullBoxHeader(0, 0), es...))
}

// Avc1 is the AVC visual sample entry.
type Avc1 struct {
	Width, Height uint16
	AvcC          AvcC
}

// Encode implements Box.
func (b Avc1) Encode() []byte {
	return encodeBox("avc1", visualSampleEntryBody(b.Width, b.Height, b.AvcC))
}

// Hvc1 is the HEVC visual sample entry.
type Hvc1 struct {
	Width, Height uint16
	HvcC          HvcC
}

// Encode implements Box.
func (b Hvc1) Encode() []byte {
	return encodeBox("hvc1", visualSampleEntryBody(b.Width, b.Height, b.HvcC))
}

func visualSampleEntryBody(width, height uint16, config Box) []byte {
	fw := newFieldWriter()
	for i := 0; i < 6; i++ {
		fw.u8(0) // reserved
	}
	fw.u16(1) // data_reference_index
	fw.u16(0) // pre_defined
	fw.u16(0) // reserved
	for i := 0; i < 3; i++ {
		fw.u32(0) // pre_defined
	}
	fw.u16(width)
	fw.u16(height)
	fw.u32(0x00480000) // horizresolution 72 dpi
	fw.u32(0x00480000) // vertresolution 72 dpi
	fw.u32(0)          // reserved
	fw.u16(1)          // frame_count
	for i := 0; i < 32; i++ {
		fw.u8(0) // compressorname
	}
	fw.u16(0x0018) // depth = 24
	fw.u16(0xFFFF) // pre_defined = -1
	return append(fw.bytes(), config.Encode()...)
}

// Mp4a is the AAC audio sample entry.
type Mp4a struct {
	ChannelCount uint16
	SampleRate   uint32 // integer Hz; stored as 16.16 fixed point per spec
	Esds         Esds
}

// Encode implements Box.
func (b Mp4a) Encode() []byte {
	fw := newFieldWriter()
	for i := 0; i < 6; i++ {
		fw.u8(0) // reserved
	}
	fw.u16(1) // data_reference_index
	fw.u32(0) // reserved
	fw.u32(0) // reserved
	fw.u16(b.ChannelCount)
	fw.u16(16) // samplesize
	fw.u16(0)  // pre_defined
	fw.u16(0)  // reserved
	fw.u32(b.SampleRate << 16)
	body := append(fw.bytes(), b.Esds.Encode()...)
	return encodeBox("mp4a", body)
}
