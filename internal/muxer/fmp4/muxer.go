// Package fmp4 implements the fragmented MP4 muxer (spec.md §4.3): ftyp,
// an init moov, then repeated moof+mdat segments, and a trailing mfra.
//
// Grounded on pkg/video/mp4muxer/muxer.go's per-track stts/stsc/stsz/stco
// run-length accumulation and mdat-offset fix-up, and pkg/video/hls/init.go's
// ftyp+moov+mvex/trex init-segment construction (absent from muxer.go, which
// only ever builds one non-fragmented moov+mdat for a whole clip); the
// keyframe+duration segmentation policy is grounded on
// pkg/video/hls/segmenter.go's writeH264Entry boundary check.
package fmp4

import (
	"fmt"
	"io"

	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
	"github.com/thibaultbee/streampack-go/internal/mp4box"
)

// DefaultSegmentTargetUs is the 1 s minimum spec.md §9's Open Question
// resolves on (configurable by the embedder).
const DefaultSegmentTargetUs = 1_000_000

const videoTimescale uint32 = 90_000

type pendingSample struct {
	dtsTicks int64
	ptsTicks int64
	payload  []byte
	isKey    bool
}

type finalizedSample struct {
	durationTicks uint32
	payload       []byte
	nonSync       bool
	ctsOffset     int32
}

type trackState struct {
	track media.Track

	avcCfg  *media.VideoConfig
	sps     []byte
	pps     []byte
	vps     []byte
	hvcSPS  []byte
	audioASC []byte

	avcC *mp4box.AvcC
	hvcC *mp4box.HvcC
	esds *mp4box.Esds

	pending   *pendingSample
	lastDelta uint32
	segment   []finalizedSample
	tfra      []mp4box.TfraEntry
}

// Muxer is the fragmented MP4 muxer.
type Muxer struct {
	segmentTargetUs int64

	tracks      map[int]*trackState
	order       []int // track id insertion order, stable trun/traf ordering
	nextTrackID int

	out           io.Writer
	writePos      int64
	sequenceNum   uint32
	started       bool
	segmentStartUs int64
	segmentHasData bool
}

// New creates a Muxer with the given segment target in milliseconds (0
// selects the spec-mandated default).
func New(segmentTargetMs int) *Muxer {
	target := int64(segmentTargetMs) * 1000
	if target <= 0 {
		target = DefaultSegmentTargetUs
	}
	return &Muxer{
		segmentTargetUs: target,
		tracks:          map[int]*trackState{},
		nextTrackID:     1,
	}
}

// AddStreamVideo registers a video track. Must be called before Start.
func (m *Muxer) AddStreamVideo(cfg media.VideoConfig) (int, error) {
	if m.started {
		return 0, errs.New(errs.InvalidState, "fmp4.Muxer.AddStreamVideo", fmt.Errorf("streams already started"))
	}
	id := m.nextTrackID
	m.nextTrackID++
	m.tracks[id] = &trackState{
		track: media.Track{ID: id, Kind: media.TrackVideo, Video: cfg, Timescale: videoTimescale},
	}
	m.order = append(m.order, id)
	return id, nil
}

// AddStreamAudio registers an audio track. Must be called before Start.
func (m *Muxer) AddStreamAudio(cfg media.AudioConfig) (int, error) {
	if m.started {
		return 0, errs.New(errs.InvalidState, "fmp4.Muxer.AddStreamAudio", fmt.Errorf("streams already started"))
	}
	id := m.nextTrackID
	m.nextTrackID++
	m.tracks[id] = &trackState{
		track: media.Track{ID: id, Kind: media.TrackAudio, Audio: cfg, Timescale: uint32(cfg.SampleRate)},
	}
	m.order = append(m.order, id)
	return id, nil
}

// Start writes ftyp + the init moov (spec.md §4.1 "emits ... MP4 ftyp+init
// segment"). Must be called after all AddStream* calls.
func (m *Muxer) Start(out io.Writer) error {
	if len(m.tracks) == 0 {
		return errs.New(errs.Unconfigured, "fmp4.Muxer.Start", fmt.Errorf("no streams added"))
	}
	m.out = out
	m.started = true

	ftyp := mp4box.DefaultFtyp()
	traks := make([]mp4box.Trak, 0, len(m.order))
	trexs := make([]mp4box.Trex, 0, len(m.order))

	for _, id := range m.order {
		t := m.tracks[id]
		isAudio := t.track.Kind == media.TrackAudio
		var width, height uint16
		if !isAudio {
			width, height = uint16(t.track.Video.Width), uint16(t.track.Video.Height)
		}
		tkhd := mp4box.Tkhd{TrackID: uint32(id), Width: uint32(width) << 16, Height: uint32(height) << 16, IsAudio: isAudio}
		mdhd := mp4box.Mdhd{Timescale: t.track.Timescale, Language: "und"}
		stbl := mp4box.Stbl{
			Stsd: mp4box.Stsd{Entry: placeholderSampleEntry(t)},
			Stts: mp4box.Stts{},
			Stsc: mp4box.Stsc{},
			Stsz: mp4box.Stsz{},
			Co64: mp4box.Co64{},
		}
		mdia := mp4box.Mdia{Mdhd: mdhd, IsAudio: isAudio, Stbl: stbl}
		traks = append(traks, mp4box.Trak{Tkhd: tkhd, Mdia: mdia})
		trexs = append(trexs, mp4box.Trex{TrackID: uint32(id)})
	}

	moov := mp4box.Moov{
		Mvhd: mp4box.Mvhd{Timescale: 1000, NextTrackID: uint32(m.nextTrackID)},
		Traks: traks,
		Mvex:  mp4box.Mvex{Trexs: trexs},
	}

	ftypBytes := ftyp.Encode()
	moovBytes := moov.Encode()
	if _, err := m.out.Write(ftypBytes); err != nil {
		return errs.New(errs.TransientIO, "fmp4.Muxer.Start", err)
	}
	if _, err := m.out.Write(moovBytes); err != nil {
		return errs.New(errs.TransientIO, "fmp4.Muxer.Start", err)
	}
	m.writePos = int64(len(ftypBytes) + len(moovBytes))
	return nil
}

// placeholderSampleEntry builds the init moov's sample entry from the track
// config alone: channel count and sample rate for audio, width and height
// for video. Its decoder config record (avcC/hvcC/esds) keeps zero values,
// with no parameter sets or AudioSpecificConfig. Codec config that Write
// absorbs later is not written into any box: the moov is already out, and
// moof fragments carry no sample entry.
func placeholderSampleEntry(t *trackState) mp4box.Box {
	if t.track.Kind == media.TrackAudio {
		return mp4box.Mp4a{ChannelCount: uint16(t.track.Audio.ChannelConfig), SampleRate: uint32(t.track.Audio.SampleRate)}
	}
	if t.track.Video.Mime == media.MimeH265 {
		return mp4box.Hvc1{Width: uint16(t.track.Video.Width), Height: uint16(t.track.Video.Height)}
	}
	return mp4box.Avc1{Width: uint16(t.track.Video.Width), Height: uint16(t.track.Video.Height)}
}

// Write routes one Frame into its track, absorbing codec config and
// triggering segment flushes per the keyframe+duration policy.
func (m *Muxer) Write(f *media.Frame) error {
	if !m.started {
		return errs.New(errs.InvalidState, "fmp4.Muxer.Write", fmt.Errorf("start_stream not called"))
	}
	if len(f.Payload) == 0 && !f.IsCodecConfig {
		return errs.New(errs.BadParameter, "fmp4.Muxer.Write", fmt.Errorf("zero-length payload"))
	}
	t, ok := m.tracks[f.StreamID]
	if !ok {
		return errs.New(errs.BadParameter, "fmp4.Muxer.Write", fmt.Errorf("unknown stream id %d", f.StreamID))
	}

	if f.IsCodecConfig {
		m.absorbCodecConfig(t, f)
		return nil
	}
	if len(f.Extra) > 0 && t.track.Kind == media.TrackVideo && (t.sps == nil || t.vps == nil && t.track.Video.Mime == media.MimeH265) {
		m.absorbExtra(t, f.Extra)
	}

	isVideo := t.track.Kind == media.TrackVideo
	if isVideo && t.pending == nil && len(t.segment) == 0 && len(t.tfra) == 0 && !f.IsKey {
		return errs.New(errs.MuxerInternal, "fmp4.Muxer.Write", fmt.Errorf("first video frame must be a keyframe"))
	}

	ptsTicks := int64(t.track.Timescale) * f.PTSUs / 1_000_000
	dtsTicks := int64(t.track.Timescale) * f.DTSUs / 1_000_000

	if isVideo && f.IsKey && m.segmentHasData && (f.PTSUs-m.segmentStartUs) >= m.segmentTargetUs {
		if err := m.flushSegment(false); err != nil {
			return err
		}
	}
	if !m.segmentHasData {
		m.segmentStartUs = f.PTSUs
	}
	m.segmentHasData = true

	if t.pending != nil {
		delta := uint32(dtsTicks - t.pending.dtsTicks)
		t.lastDelta = delta
		t.segment = append(t.segment, finalizedSample{
			durationTicks: delta,
			payload:       t.pending.payload,
			nonSync:       !t.pending.isKey,
			ctsOffset:     int32(t.pending.ptsTicks - t.pending.dtsTicks),
		})
	}
	payload := f.Payload
	if isVideo {
		payload = bitstream.MarshalAVCC(bitstream.SplitAnnexB(f.Payload))
	}
	t.pending = &pendingSample{dtsTicks: dtsTicks, ptsTicks: ptsTicks, payload: payload, isKey: f.IsKey}

	return nil
}

func (m *Muxer) absorbCodecConfig(t *trackState, f *media.Frame) {
	if t.track.Kind == media.TrackAudio {
		if len(f.Payload) > 0 {
			t.audioASC = f.Payload
		}
		return
	}
	m.absorbExtra(t, bitstream.SplitAnnexB(f.Payload))
}

func (m *Muxer) absorbExtra(t *trackState, extra [][]byte) {
	for _, nalu := range extra {
		if len(nalu) == 0 {
			continue
		}
		if t.track.Video.Mime == media.MimeH265 {
			nalType := (nalu[0] >> 1) & 0x3F
			switch nalType {
			case 32:
				t.vps = nalu
			case 33:
				t.hvcSPS = nalu
			case 34:
				t.pps = nalu
			}
			continue
		}
		nalType := nalu[0] & 0x1F
		switch nalType {
		case 7:
			t.sps = nalu
		case 8:
			t.pps = nalu
		}
	}
}

// flushSegment builds and writes one moof+mdat pair for every track with
// pending data, finalizing each track's last pending sample. A mid-stream
// flush (final false) gives it the track's most recently observed delta,
// the same best-effort duration estimate pkg/video/hls/segmenter.go's
// lookahead queue falls back to when no further sample has arrived yet;
// the end-of-stream flush (final true) gives it a delta of 0.
func (m *Muxer) flushSegment(final bool) error {
	type trackLayout struct {
		id      int
		samples []finalizedSample
	}
	var layouts []trackLayout
	for _, id := range m.order {
		t := m.tracks[id]
		if t.pending != nil {
			duration := t.lastDelta
			if final {
				duration = 0
			}
			t.segment = append(t.segment, finalizedSample{
				durationTicks: duration,
				payload:       t.pending.payload,
				nonSync:       !t.pending.isKey,
				ctsOffset:     int32(t.pending.ptsTicks - t.pending.dtsTicks),
			})
			t.pending = nil
		}
		if len(t.segment) == 0 {
			continue
		}
		layouts = append(layouts, trackLayout{id: id, samples: t.segment})
	}
	if len(layouts) == 0 {
		m.segmentHasData = false
		return nil
	}

	moofStart := m.writePos
	trafs := make([]mp4box.Traf, 0, len(layouts))
	for _, l := range layouts {
		t := m.tracks[l.id]
		entries := make([]mp4box.TrunEntry, len(l.samples))
		hasCTS := false
		for i, s := range l.samples {
			entries[i] = mp4box.TrunEntry{
				SampleDuration: s.durationTicks,
				SampleSize:     uint32(len(s.payload)),
				NonSync:        s.nonSync,
				CompTimeOffset: s.ctsOffset,
			}
			if s.ctsOffset != 0 {
				hasCTS = true
			}
		}
		baseDTS := uint64(int64(t.track.Timescale) * m.segmentStartUs / 1_000_000)
		trafs = append(trafs, mp4box.Traf{
			Tfhd: mp4box.Tfhd{TrackID: uint32(l.id), BaseDataOffset: uint64(moofStart)},
			Tfdt: mp4box.Tfdt{BaseMediaDecodeTime: baseDTS},
			Trun: mp4box.Trun{HasCompTimeOffset: hasCTS, DataOffset: 0, Entries: entries},
		})
	}

	moof := mp4box.Moof{Mfhd: mp4box.Mfhd{SequenceNumber: m.sequenceNum + 1}, Trafs: trafs}
	moofBytes := moof.Encode()
	moofSize := int64(len(moofBytes))

	var priorBytes int64
	mdatBody := make([]byte, 0)
	for i, l := range layouts {
		trafs[i].Trun.DataOffset = int32(moofSize + 8 + priorBytes)
		for _, s := range l.samples {
			mdatBody = append(mdatBody, s.payload...)
			priorBytes += int64(len(s.payload))
		}
	}
	moof = mp4box.Moof{Mfhd: mp4box.Mfhd{SequenceNumber: m.sequenceNum + 1}, Trafs: trafs}
	moofBytes = moof.Encode()
	mdatBytes := mp4box.Mdat{Data: mdatBody}.Encode()

	if _, err := m.out.Write(moofBytes); err != nil {
		return errs.New(errs.TransientIO, "fmp4.Muxer.flushSegment", err)
	}
	if _, err := m.out.Write(mdatBytes); err != nil {
		return errs.New(errs.TransientIO, "fmp4.Muxer.flushSegment", err)
	}

	m.sequenceNum++
	for _, l := range layouts {
		t := m.tracks[l.id]
		t.tfra = append(t.tfra, mp4box.TfraEntry{
			Time:       uint64(int64(t.track.Timescale) * m.segmentStartUs / 1_000_000),
			MoofOffset: uint64(moofStart),
		})
		t.segment = nil
	}
	m.writePos = moofStart + int64(len(moofBytes)) + int64(len(mdatBytes))
	m.segmentHasData = false
	return nil
}

// Stop flushes the current segment regardless of keyframe alignment, then
// writes the trailing mfra (spec.md §4.3, §4.1 "stop_stream").
func (m *Muxer) Stop() error {
	if !m.started {
		return nil
	}
	if err := m.flushSegment(true); err != nil {
		return err
	}
	var tfras []mp4box.Tfra
	for _, id := range m.order {
		t := m.tracks[id]
		if len(t.tfra) == 0 {
			continue
		}
		tfras = append(tfras, mp4box.Tfra{TrackID: uint32(id), Entries: t.tfra})
	}
	if len(tfras) > 0 {
		if _, err := m.out.Write(mp4box.Mfra{Tfras: tfras}.Encode()); err != nil {
			return errs.New(errs.TransientIO, "fmp4.Muxer.Stop", err)
		}
	}
	m.started = false
	return nil
}
