package mp4box

// TfraEntry is one random-access point: a segment's start time and the
// byte offset of its moof (spec.md §4.3 "mfra").
type TfraEntry struct {
	Time       uint64
	MoofOffset uint64
}

// Tfra is the track-fragment random-access box, one per track.
type Tfra struct {
	TrackID uint32
	Entries []TfraEntry
}

// Encode implements Box.
func (b Tfra) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(1, 0)) // version 1: 64-bit time/offset fields
	fw.u32(b.TrackID)
	fw.u32(0x3F) // reserved(26)=0, length_size_of_traf_num/trun_num/sample_num = 3 each (4-byte fields)
	fw.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		fw.u64(e.Time)
		fw.u64(e.MoofOffset)
		fw.u32(1) // traf_number
		fw.u32(1) // trun_number
		fw.u32(1) // sample_number
	}
	return encodeBox("tfra", fw.bytes())
}

// Mfra is the movie-fragment random-access box, emitted once on
// stop_stream (spec.md §4.3).
type Mfra struct {
	Tfras []Tfra
}

// Encode implements Box.
func (b Mfra) Encode() []byte {
	boxes := make([]Box, len(b.Tfras))
	for i, t := range b.Tfras {
		boxes[i] = t
	}
	body := concatBoxes(boxes...)
	// mfro: size of the enclosing mfra, appended last so a reader can seek
	// to end-of-file and walk backward to find mfra.
	mfraSize := uint32(8 + len(body) + 16)
	mfroFw := newFieldWriter()
	mfroFw.raw(fullBoxHeader(0, 0))
	mfroFw.u32(mfraSize)
	mfro := encodeBox("mfro", mfroFw.bytes())
	return encodeBox("mfra", append(body, mfro...))
}
