package mp4box

// Stsd is the sample description box; this muxer ever carries exactly one
// entry per track (spec.md §4.3 "stsd carries one sample entry").
type Stsd struct {
	Entry Box
}

// Encode implements Box.
func (b Stsd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(1) // entry_count
	body := append(fw.bytes(), b.Entry.Encode()...)
	return encodeBox("stsd", body)
}

// SttsEntry is one run of samples sharing the same decode-time delta.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the decoding-time-to-sample box: spec.md §4.3 "compresses
// consecutive equal sample deltas into runs".
type Stts struct {
	Entries []SttsEntry
}

// Encode implements Box.
func (b Stts) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		fw.u32(e.SampleCount)
		fw.u32(e.SampleDelta)
	}
	return encodeBox("stts", fw.bytes())
}

// CttsEntry is one run of samples sharing the same composition-time offset.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// Ctts is the composition-time-to-sample box, needed only when dts != pts.
type Ctts struct {
	Entries []CttsEntry
}

// Encode implements Box.
func (b Ctts) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(1, 0)) // version 1: signed offsets
	fw.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		fw.u32(e.SampleCount)
		fw.u32(uint32(e.SampleOffset))
	}
	return encodeBox("ctts", fw.bytes())
}

// StscEntry describes one run of chunks sharing the same samples-per-chunk.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the sample-to-chunk box.
type Stsc struct {
	Entries []StscEntry
}

// Encode implements Box.
func (b Stsc) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		fw.u32(e.FirstChunk)
		fw.u32(e.SamplesPerChunk)
		fw.u32(e.SampleDescriptionIndex)
	}
	return encodeBox("stsc", fw.bytes())
}

// Stsz is the sample-size box.
type Stsz struct {
	EntrySizes []uint32
}

// Encode implements Box.
func (b Stsz) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(0) // sample_size = 0 means sizes are in the entry table
	fw.u32(uint32(len(b.EntrySizes)))
	for _, s := range b.EntrySizes {
		fw.u32(s)
	}
	return encodeBox("stsz", fw.bytes())
}

// Co64 is the 64-bit chunk-offset box (spec.md §6 lists co64, not stco).
type Co64 struct {
	ChunkOffsets []uint64
}

// Encode implements Box.
func (b Co64) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(uint32(len(b.ChunkOffsets)))
	for _, o := range b.ChunkOffsets {
		fw.u64(o)
	}
	return encodeBox("co64", fw.bytes())
}

// Stss is the sync-sample box; omitted entirely when every sample is a sync
// sample (spec.md §4.3).
type Stss struct {
	SampleNumbers []uint32 // 1-based
}

// Encode implements Box.
func (b Stss) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(uint32(len(b.SampleNumbers)))
	for _, n := range b.SampleNumbers {
		fw.u32(n)
	}
	return encodeBox("stss", fw.bytes())
}

// Stbl is the sample-table box.
type Stbl struct {
	Stsd Stsd
	Stts Stts
	Ctts *Ctts // nil when dts == pts for every sample
	Stss *Stss // nil when every sample is a sync sample
	Stsc Stsc
	Stsz Stsz
	Co64 Co64
}

// Encode implements Box.
func (b Stbl) Encode() []byte {
	boxes := []Box{b.Stsd, b.Stts}
	if b.Ctts != nil {
		boxes = append(boxes, *b.Ctts)
	}
	if b.Stss != nil {
		boxes = append(boxes, *b.Stss)
	}
	boxes = append(boxes, b.Stsc, b.Stsz, b.Co64)
	return encodeBox("stbl", concatBoxes(boxes...))
}
