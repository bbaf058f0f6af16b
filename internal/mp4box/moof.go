package mp4box

// Mfhd is the movie-fragment header box.
type Mfhd struct {
	SequenceNumber uint32
}

// Encode implements Box.
func (b Mfhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(b.SequenceNumber)
	return encodeBox("mfhd", fw.bytes())
}

// Tfhd flags understood by this muxer (spec.md §4.3 "tfhd with
// base-data-offset").
const (
	TfhdBaseDataOffsetPresent        uint32 = 0x000001
	TfhdDefaultSampleDurationPresent uint32 = 0x000008
	TfhdDefaultSampleSizePresent     uint32 = 0x000010
	TfhdDefaultSampleFlagsPresent    uint32 = 0x000020
)

// Tfhd is the track-fragment header box.
type Tfhd struct {
	TrackID        uint32
	BaseDataOffset uint64
}

// Encode implements Box.
func (b Tfhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, TfhdBaseDataOffsetPresent))
	fw.u32(b.TrackID)
	fw.u64(b.BaseDataOffset)
	return encodeBox("tfhd", fw.bytes())
}

// Tfdt is the track-fragment decode-time box.
type Tfdt struct {
	BaseMediaDecodeTime uint64
}

// Encode implements Box.
func (b Tfdt) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(1, 0)) // version 1: 64-bit time
	fw.u64(b.BaseMediaDecodeTime)
	return encodeBox("tfdt", fw.bytes())
}

// Trun flags this muxer always sets (spec.md §4.3): trun entries carry
// per-sample duration, size and flags; sampleFlags marks the first sample
// sync and each later NonSync entry is_non_sync.
const (
	TrunDataOffsetPresent      uint32 = 0x000001
	TrunSampleDurationPresent  uint32 = 0x000100
	TrunSampleSizePresent      uint32 = 0x000200
	TrunSampleFlagsPresent     uint32 = 0x000400
	TrunSampleCompTimeOffset   uint32 = 0x000800
)

// TrunEntry is one sample's fragment-run record.
type TrunEntry struct {
	SampleDuration uint32
	SampleSize     uint32
	NonSync        bool
	CompTimeOffset int32
}

// Trun is the track-fragment run box.
type Trun struct {
	HasCompTimeOffset bool
	DataOffset        int32
	Entries           []TrunEntry
}

// Encode implements Box.
func (b Trun) Encode() []byte {
	flags := TrunDataOffsetPresent | TrunSampleDurationPresent |
		TrunSampleSizePresent | TrunSampleFlagsPresent
	if b.HasCompTimeOffset {
		flags |= TrunSampleCompTimeOffset
	}
	fw := newFieldWriter()
	version := uint8(0)
	if b.HasCompTimeOffset {
		version = 1 // signed composition offsets
	}
	fw.raw(fullBoxHeader(version, flags))
	fw.u32(uint32(len(b.Entries)))
	fw.u32(uint32(b.DataOffset))
	for i, e := range b.Entries {
		fw.u32(e.SampleDuration)
		fw.u32(e.SampleSize)
		flags := sampleFlags(i == 0, e.NonSync)
		fw.u32(flags)
		if b.HasCompTimeOffset {
			fw.u32(uint32(e.CompTimeOffset))
		}
	}
	return encodeBox("trun", fw.bytes())
}

// sampleFlags builds the 32-bit MP4 sample_flags field: the first sample of
// a run is always a sync sample; a later sample is marked non-sync when its
// entry's NonSync is set (spec.md §4.3).
func sampleFlags(isFirst, nonSync bool) uint32 {
	var sampleIsNonSync uint32
	if nonSync && !isFirst {
		sampleIsNonSync = 1
	}
	// is_leading(2)=0, sample_depends_on(2)=0, sample_is_depended_on(2)=0,
	// sample_has_redundancy(2)=0, sample_padding_value(3)=0,
	// sample_is_non_sync_sample(1), sample_degradation_priority(16)=0.
	return sampleIsNonSync << 16
}

// Traf is one track's fragment.
type Traf struct {
	Tfhd Tfhd
	Tfdt Tfdt
	Trun Trun
}

// Encode implements Box.
func (b Traf) Encode() []byte {
	return encodeBox("traf", concatBoxes(b.Tfhd, b.Tfdt, b.Trun))
}

// Moof is the movie-fragment box.
type Moof struct {
	Mfhd  Mfhd
	Trafs []Traf
}

// Encode implements Box.
func (b Moof) Encode() []byte {
	boxes := []Box{b.Mfhd}
	for _, t := range b.Trafs {
		boxes = append(boxes, t)
	}
	return encodeBox("moof", concatBoxes(boxes...))
}

// Mdat is the media-data box: the concatenated sample payloads for one
// segment, in trun order (spec.md §4.3).
type Mdat struct {
	Data []byte
}

// Encode implements Box.
func (b Mdat) Encode() []byte {
	return encodeBox("mdat", b.Data)
}
