package mp4box

// Trex is the track-extends box (one per track, inside mvex), carrying the
// per-fragment sample defaults.
type Trex struct {
	TrackID uint32
}

// Encode implements Box.
func (b Trex) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(b.TrackID)
	fw.u32(1) // default_sample_description_index
	fw.u32(0) // default_sample_duration
	fw.u32(0) // default_sample_size
	fw.u32(0) // default_sample_flags
	return encodeBox("trex", fw.bytes())
}

// Mvex is the movie-extends box declaring the stream is fragmented.
type Mvex struct {
	Trexs []Trex
}

// Encode implements Box.
func (b Mvex) Encode() []byte {
	boxes := make([]Box, len(b.Trexs))
	for i, t := range b.Trexs {
		boxes[i] = t
	}
	return encodeBox("mvex", concatBoxes(boxes...))
}

// Moov is the movie box: emitted once, at the start of the stream, as the
// init segment (spec.md §4.3).
type Moov struct {
	Mvhd  Mvhd
	Traks []Trak
	Mvex  Mvex
}

// Encode implements Box.
func (b Moov) Encode() []byte {
	boxes := []Box{b.Mvhd}
	for _, t := range b.Traks {
		boxes = append(boxes, t)
	}
	boxes = append(boxes, b.Mvex)
	return encodeBox("moov", concatBoxes(boxes...))
}
