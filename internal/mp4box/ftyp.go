package mp4box

// Ftyp is the file-type box, first in the stream.
type Ftyp struct {
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

// Encode implements Box.
func (b Ftyp) Encode() []byte {
	fw := newFieldWriter()
	fw.fourcc(padBrand(b.MajorBrand))
	fw.u32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		fw.fourcc(padBrand(brand))
	}
	return encodeBox("ftyp", fw.bytes())
}

func padBrand(s string) string {
	for len(s) < 4 {
		s += " "
	}
	return s[:4]
}

// DefaultFtyp returns the conventional fragmented-MP4 brand set.
func DefaultFtyp() Ftyp {
	return Ftyp{
		MajorBrand:       "isom",
		MinorVersion:     512,
		CompatibleBrands: []string{"isom", "iso2", "avc1", "mp41", "dash"},
	}
}

// Mvhd is the movie header box.
type Mvhd struct {
	CreationTime     uint32
	ModificationTime uint32
	Timescale        uint32
	DurationTicks    uint32 // 0 for fragmented streams: duration lives in each track fragment
	NextTrackID      uint32
}

// Encode implements Box.
func (b Mvhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(b.CreationTime)
	fw.u32(b.ModificationTime)
	fw.u32(b.Timescale)
	fw.u32(b.DurationTicks)
	fw.u32(0x00010000) // rate, 1.0 fixed-point
	fw.u16(0x0100)     // volume, 1.0 fixed-point
	fw.u16(0)          // reserved
	fw.u32(0)          // reserved
	fw.u32(0)          // reserved
	// unity 3x3 transformation matrix
	matrix := []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}
	for _, m := range matrix {
		fw.u32(m)
	}
	for i := 0; i < 6; i++ {
		fw.u32(0) // pre_defined
	}
	fw.u32(b.NextTrackID)
	return encodeBox("mvhd", fw.bytes())
}
