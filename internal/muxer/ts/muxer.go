package ts

import (
	"fmt"
	"io"

	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/clock"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// DefaultPSICadenceUs and DefaultPCRMaxIntervalUs are spec.md §4.2's
// defaults (500 ms PSI cadence, 100 ms max PCR interval).
const (
	DefaultPSICadenceUs      = 500_000
	DefaultPCRMaxIntervalUs  = 100_000
)

type tsTrack struct {
	streamID int
	pid      uint16
	mime     media.Mime
	cc       uint8

	// video codec config, absorbed from Extra/config frames.
	vps, sps, pps []byte
	// audio config, for ADTS header construction.
	sampleRate    int
	channelConfig int
}

// Muxer is the MPEG-TS muxer.
type Muxer struct {
	psiCadenceUs     int64
	pcrMaxIntervalUs int64

	tracks   map[int]*tsTrack
	order    []int
	pcrTrack int // stream id carrying PCR, 0 until the first video (or audio) track is added

	patCC, pmtCC, sdtCC uint8
	version             uint8

	out             io.Writer
	started         bool
	lastPSIWriteUs  int64
	lastPCRWriteUs  int64
	haveWrittenAny  bool
	startWallUs     int64
}

// New creates a Muxer; psiCadenceMs/pcrMaxIntervalMs of 0 select the
// spec-mandated defaults.
func New(psiCadenceMs, pcrMaxIntervalMs int) *Muxer {
	m := &Muxer{
		psiCadenceUs:     int64(psiCadenceMs) * 1000,
		pcrMaxIntervalUs: int64(pcrMaxIntervalMs) * 1000,
		tracks:           map[int]*tsTrack{},
	}
	if m.psiCadenceUs <= 0 {
		m.psiCadenceUs = DefaultPSICadenceUs
	}
	if m.pcrMaxIntervalUs <= 0 {
		m.pcrMaxIntervalUs = DefaultPCRMaxIntervalUs
	}
	return m
}

// AddStreamVideo registers a video elementary stream.
func (m *Muxer) AddStreamVideo(streamID int, mime media.Mime) error {
	return m.addStream(streamID, mime, 0, 0)
}

// AddStreamAudio registers an AAC elementary stream (ADTS-framed on the wire).
func (m *Muxer) AddStreamAudio(streamID int, mime media.Mime, sampleRate, channelConfig int) error {
	return m.addStream(streamID, mime, sampleRate, channelConfig)
}

func (m *Muxer) addStream(streamID int, mime media.Mime, sampleRate, channelConfig int) error {
	if m.started {
		return errs.New(errs.InvalidState, "ts.Muxer.AddStream", fmt.Errorf("streams already started"))
	}
	pid := PIDStreamBase + uint16(len(m.order))
	t := &tsTrack{streamID: streamID, pid: pid, mime: mime, sampleRate: sampleRate, channelConfig: channelConfig}
	m.tracks[streamID] = t
	m.order = append(m.order, streamID)
	if m.pcrTrack == 0 && mime.IsVideo() {
		m.pcrTrack = streamID
	}
	return nil
}

// Start emits the first PAT/PMT/SDT and marks the muxer ready for Write.
func (m *Muxer) Start(out io.Writer) error {
	if len(m.tracks) == 0 {
		return errs.New(errs.Unconfigured, "ts.Muxer.Start", fmt.Errorf("no streams added"))
	}
	if m.pcrTrack == 0 {
		// audio-only program: PCR rides on the first audio PID (spec.md §4.2).
		m.pcrTrack = m.order[0]
	}
	m.out = out
	m.started = true
	return m.writePSI(0)
}

func (m *Muxer) writePSI(nowUs int64) error {
	pmtPID := PIDPMTBase
	var entries []StreamEntry
	for _, id := range m.order {
		t := m.tracks[id]
		entries = append(entries, StreamEntry{PID: t.pid, StreamType: streamTypeFor(t.mime)})
	}

	pat := buildPAT(1, m.version, pmtPID)
	pmt := buildPMT(1, m.version, m.tracks[m.pcrTrack].pid, entries)
	sdt := buildSDT(1, m.version, "streampack")

	if err := m.writeBytes(packetizePSI(PIDPAT, pat, &m.patCC)); err != nil {
		return err
	}
	if err := m.writeBytes(packetizePSI(pmtPID, pmt, &m.pmtCC)); err != nil {
		return err
	}
	if err := m.writeBytes(packetizePSI(PIDSDT, sdt, &m.sdtCC)); err != nil {
		return err
	}
	m.lastPSIWriteUs = nowUs
	return nil
}

func streamTypeFor(mime media.Mime) uint8 {
	switch mime {
	case media.MimeH264:
		return StreamTypeH264
	case media.MimeH265:
		return StreamTypeH265
	case media.MimeAAC:
		return StreamTypeAAC
	case media.MimeOpus:
		return StreamTypeOpus
	}
	return StreamTypeH264
}

// Write encodes one access unit as a PES packet, re-emitting PSI per the
// configured cadence and PCR per the configured max interval and on every
// keyframe (spec.md §4.2).
func (m *Muxer) Write(f *media.Frame) error {
	if !m.started {
		return errs.New(errs.InvalidState, "ts.Muxer.Write", fmt.Errorf("start_stream not called"))
	}
	t, ok := m.tracks[f.StreamID]
	if !ok {
		return errs.New(errs.BadParameter, "ts.Muxer.Write", fmt.Errorf("unknown stream id %d", f.StreamID))
	}
	if f.IsCodecConfig {
		m.absorbCodecConfig(t, f)
		return nil
	}
	if len(f.Payload) == 0 {
		return errs.New(errs.BadParameter, "ts.Muxer.Write", fmt.Errorf("zero-length payload"))
	}
	if len(f.Extra) > 0 {
		m.absorbExtra(t, f.Extra)
	}

	if !m.haveWrittenAny {
		m.startWallUs = f.PTSUs
		m.haveWrittenAny = true
	}
	if f.PTSUs-m.lastPSIWriteUs >= m.psiCadenceUs {
		if err := m.writePSI(f.PTSUs); err != nil {
			return err
		}
	}

	payload, err := m.normalizePayload(t, f)
	if err != nil {
		return err
	}

	ptsTicks := clock.Wrap33(clock.TimescaleTS90kHz.FromMicros(f.PTSUs))
	dtsTicks := clock.Wrap33(clock.TimescaleTS90kHz.FromMicros(f.DTSUs))
	hasDTS := f.DTSUs != f.PTSUs
	streamID := uint8(0xC0)
	if t.mime.IsVideo() {
		streamID = 0xE0
	}
	pes := buildPESHeader(streamID, ptsTicks, dtsTicks, hasDTS, len(payload))
	pes = append(pes, payload...)

	var af *adaptation
	needPCR := t.streamID == m.pcrTrack && (f.IsKey || f.PTSUs-m.lastPCRWriteUs >= m.pcrMaxIntervalUs)
	if f.IsKey || needPCR {
		af = &adaptation{randomAccess: f.IsKey}
		if needPCR {
			pcrTicks := uint64(clock.TimescalePCR27MHz.FromMicros(f.PTSUs))
			af.pcr27MHz = &pcrTicks
			m.lastPCRWriteUs = f.PTSUs
		}
	}

	return m.writeBytes(packetizePayload(t.pid, pes, true, af, &t.cc))
}

func (m *Muxer) normalizePayload(t *tsTrack, f *media.Frame) ([]byte, error) {
	switch t.mime {
	case media.MimeH264, media.MimeH265:
		nalus := bitstream.SplitAnnexB(f.Payload)
		if len(nalus) == 0 {
			nalus = [][]byte{bitstream.RemoveStartCode(f.Payload)}
		}
		var full [][]byte
		if f.IsKey {
			if t.mime == media.MimeH265 && t.vps != nil {
				full = append(full, t.vps)
			}
			if t.sps != nil {
				full = append(full, t.sps)
			}
			if t.pps != nil {
				full = append(full, t.pps)
			}
		}
		full = append(full, nalus...)
		return bitstream.EncodeAnnexB(full), nil
	case media.MimeAAC:
		hdr, err := bitstream.BuildADTS(bitstream.ADTSHeader{
			ProfileObjectType: 1, // AAC LC
			SampleRate:        t.sampleRate,
			ChannelConfig:     t.channelConfig,
			PayloadLength:     len(f.Payload),
		})
		if err != nil {
			return nil, errs.New(errs.MuxerInternal, "ts.Muxer.normalizePayload", err)
		}
		return append(hdr, f.Payload...), nil
	default:
		return f.Payload, nil
	}
}

func (m *Muxer) absorbCodecConfig(t *tsTrack, f *media.Frame) {
	if t.mime.IsAudio() {
		if len(f.Payload) >= 2 {
			t.sampleRate, t.channelConfig = sampleRateAndChannelsFromASC(f.Payload)
		}
		return
	}
	m.absorbExtra(t, bitstream.SplitAnnexB(f.Payload))
}

func (m *Muxer) absorbExtra(t *tsTrack, extra [][]byte) {
	for _, nalu := range extra {
		if len(nalu) == 0 {
			continue
		}
		if t.mime == media.MimeH265 {
			switch (nalu[0] >> 1) & 0x3F {
			case 32:
				t.vps = nalu
			case 33:
				t.sps = nalu
			case 34:
				t.pps = nalu
			}
			continue
		}
		switch nalu[0] & 0x1F {
		case 7:
			t.sps = nalu
		case 8:
			t.pps = nalu
		}
	}
}

// sampleRateAndChannelsFromASC recovers just enough of an AudioSpecificConfig
// to build ADTS headers (4-bit sampling-frequency-index, 4-bit channels);
// callers that already know these values can skip sending a codec-config
// frame entirely and rely on AddStreamAudio's explicit arguments instead.
func sampleRateAndChannelsFromASC(asc []byte) (sampleRate, channelConfig int) {
	if len(asc) < 2 {
		return 0, 0
	}
	freqIdx := ((asc[0] & 0x07) << 1) | (asc[1] >> 7)
	channels := (asc[1] >> 3) & 0x0F
	if int(freqIdx) < len(bitstream.ADTSSampleRates) {
		sampleRate = bitstream.ADTSSampleRates[freqIdx]
	}
	channelConfig = int(channels)
	return sampleRate, channelConfig
}

func (m *Muxer) writeBytes(b []byte) error {
	if _, err := m.out.Write(b); err != nil {
		return errs.New(errs.TransientIO, "ts.Muxer.writeBytes", err)
	}
	return nil
}

// Stop marks the muxer as no longer accepting writes; the continuous TS
// stream needs no trailer (spec.md §4.2).
func (m *Muxer) Stop() error {
	m.started = false
	return nil
}
