package sink

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
)

var rtmpSchemes = map[string]bool{
	"rtmp": true, "rtmps": true, "rtmpe": true,
	"rtmpt": true, "rtmpte": true, "rtmpts": true, "rtmfp": true,
}

const (
	rtmpHandshakeSize    = 1536
	rtmpVersion          = 0x03
	rtmpHandshakeTimeout = 5 * time.Second

	rtmpMsgTypeAudio    = 8
	rtmpMsgTypeVideo    = 9
	rtmpMsgTypeAMF0Data = 18
	rtmpMsgTypeCommand  = 20

	rtmpChunkStreamIDCommand = 3
	rtmpChunkStreamIDAudio   = 4
	rtmpChunkStreamIDVideo   = 6
)

// RTMP is an RTMP publish sink: simple (version 3) handshake, NetConnection
// connect, NetStream createStream/publish, then audio/video/data message
// delivery. Because the server must see audio and video interleaved by
// timestamp, RTMP buffers audio packets and releases them just ahead of the
// next video packet whose timestamp has caught up (spec.md §4.6, §8
// invariant 5). The wire-level handshake and chunking are grounded
// structurally (not copied) on the pack's dedicated RTMP example repo; no
// third-party RTMP library appears anywhere in the pack, so this sink is a
// deliberate, justified exception to "never fall back to the standard
// library" (net, crypto/rand only).
//
// This sink does not parse _result/onStatus command responses: it writes
// connect/createStream/publish and proceeds optimistically, trusting the
// server to accept a well-formed publish request. A production
// implementation would await and branch on those replies.
type RTMP struct {
	onEvent EventFunc

	conn net.Conn
	app  string
	key  string

	streamID       uint32
	state          State
	iv             interleaver
	lostEventFired bool
}

// NewRTMP returns an RTMP sink ready to Open.
func NewRTMP(onEvent EventFunc) *RTMP { return &RTMP{onEvent: onEvent} }

// Open dials desc.URI, performs the RTMP handshake, and issues
// connect/createStream/publish.
func (s *RTMP) Open(desc config.SinkDescriptor) error {
	scheme, host, app, key, err := parseRTMPURL(desc.URI)
	if err != nil {
		return errs.New(errs.BadParameter, "sink.RTMP.Open", err)
	}
	if !rtmpSchemes[scheme] {
		return errs.New(errs.BadParameter, "sink.RTMP.Open", fmt.Errorf("unsupported rtmp scheme %q", scheme))
	}

	conn, err := net.DialTimeout("tcp", host, rtmpHandshakeTimeout)
	if err != nil {
		return errs.New(errs.TransientIO, "sink.RTMP.Open", err)
	}
	if err := rtmpHandshake(conn); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.app = app
	s.key = key
	s.state = StateOpen
	s.lostEventFired = false
	s.iv = interleaver{}

	if err := s.connectAndPublish(); err != nil {
		conn.Close()
		s.state = StateClosed
		return err
	}
	return nil
}

func rtmpHandshake(conn net.Conn) error {
	if err := conn.SetDeadline(time.Now().Add(rtmpHandshakeTimeout)); err != nil {
		return errs.New(errs.TransientIO, "sink.RTMP.handshake", err)
	}
	defer conn.SetDeadline(time.Time{})

	c1 := make([]byte, rtmpHandshakeSize)
	if _, err := rand.Read(c1[8:]); err != nil {
		return errs.New(errs.TransientIO, "sink.RTMP.handshake", err)
	}
	if _, err := conn.Write(append([]byte{rtmpVersion}, c1...)); err != nil {
		return errs.New(errs.TransientIO, "sink.RTMP.handshake", err)
	}

	s0s1s2 := make([]byte, 1+2*rtmpHandshakeSize)
	if _, err := io.ReadFull(conn, s0s1s2); err != nil {
		return errs.New(errs.ConnectionLost, "sink.RTMP.handshake", err)
	}
	if s0s1s2[0] != rtmpVersion {
		return errs.New(errs.BadParameter, "sink.RTMP.handshake", fmt.Errorf("unsupported server rtmp version 0x%02x", s0s1s2[0]))
	}
	s1 := s0s1s2[1 : 1+rtmpHandshakeSize]

	if _, err := conn.Write(s1); err != nil { // C2 echoes S1, the simple handshake
		return errs.New(errs.TransientIO, "sink.RTMP.handshake", err)
	}
	return nil
}

func (s *RTMP) connectAndPublish() error {
	connectCmd := amf0String("connect")
	connectCmd = append(connectCmd, amf0Number(1)...)
	connectCmd = append(connectCmd, amf0Object([]amf0Pair{
		{"app", amf0String(s.app)},
		{"flashVer", amf0String("streampack-go")},
		{"type", amf0String("nonprivate")},
	})...)
	if err := s.writeChunk(rtmpChunkStreamIDCommand, rtmpMsgTypeCommand, 0, 0, connectCmd); err != nil {
		return err
	}

	createStreamCmd := amf0String("createStream")
	createStreamCmd = append(createStreamCmd, amf0Number(2)...)
	createStreamCmd = append(createStreamCmd, amf0Null()...)
	if err := s.writeChunk(rtmpChunkStreamIDCommand, rtmpMsgTypeCommand, 0, 0, createStreamCmd); err != nil {
		return err
	}

	s.streamID = 1 // optimistic: assumes the server grants stream id 1

	publishCmd := amf0String("publish")
	publishCmd = append(publishCmd, amf0Number(3)...)
	publishCmd = append(publishCmd, amf0Null()...)
	publishCmd = append(publishCmd, amf0String(s.key)...)
	publishCmd = append(publishCmd, amf0String("live")...)
	return s.writeChunk(rtmpChunkStreamIDCommand, rtmpMsgTypeCommand, 0, s.streamID, publishCmd)
}

// StartStream moves the sink from Open to Streaming.
func (s *RTMP) StartStream() error {
	if s.state != StateOpen {
		return errs.New(errs.InvalidState, "sink.RTMP.StartStream", fmt.Errorf("not open"))
	}
	s.state = StateStreaming
	return nil
}

// Write queues or writes pkt depending on its kind: video releases any
// not-yet-written audio with ts <= pkt.TSUs before writing pkt itself
// (spec.md §8 invariant 5); audio is buffered; other kinds (e.g. onMetaData)
// pass straight through as an AMF0 data message.
func (s *RTMP) Write(pkt *media.Packet) (int, error) {
	if s.state != StateStreaming {
		return 0, errs.New(errs.Closed, "sink.RTMP.Write", fmt.Errorf("sink not streaming"))
	}

	switch pkt.Kind {
	case media.PacketAudio:
		s.iv.pushAudio(pkt)
		return len(pkt.Payload), nil
	case media.PacketVideo:
		n := 0
		for _, p := range s.iv.pushVideo(pkt) {
			written, err := s.writeMediaPacket(p)
			n += written
			if err != nil {
				return n, err
			}
		}
		return n, nil
	default:
		// onMetaData and any other non-audio/video tag (spec.md §4.4's
		// script tag). A full AMF0 data message would prefix this with
		// "@setDataFrame"; omitted here as a known simplification.
		return s.writeRaw(rtmpChunkStreamIDCommand, rtmpMsgTypeAMF0Data, uint32(pkt.TSUs/1000), FLVTagBody(pkt.Payload))
	}
}

func (s *RTMP) writeMediaPacket(pkt *media.Packet) (int, error) {
	csID, msgType := rtmpChunkStreamIDVideo, uint8(rtmpMsgTypeVideo)
	if pkt.Kind == media.PacketAudio {
		csID, msgType = rtmpChunkStreamIDAudio, uint8(rtmpMsgTypeAudio)
	}
	return s.writeRaw(csID, msgType, uint32(pkt.TSUs/1000), FLVTagBody(pkt.Payload))
}

// FLVTagBody strips an FLV tag's 11-byte header and 4-byte PreviousTagSize
// trailer, returning just the body (frame_type/codec_id/AVCPacketType/CTS
// plus NALU, or AAC format byte plus raw_data_block). The FLV muxer always
// hands a sink a complete tag so file/content sinks can reproduce a valid
// .flv byte stream; an RTMP chunk stream supplies its own message framing,
// so it needs only the body as its payload. b shorter than a minimal empty
// tag (15 bytes) is returned unchanged, since it cannot be a real tag.
func FLVTagBody(b []byte) []byte {
	const headerSize, trailerSize = 11, 4
	if len(b) < headerSize+trailerSize {
		return b
	}
	return b[headerSize : len(b)-trailerSize]
}

func (s *RTMP) writeRaw(csID int, msgType uint8, timestampMs uint32, payload []byte) (int, error) {
	if err := s.writeChunk(csID, msgType, timestampMs, s.streamID, payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

func (s *RTMP) writeChunk(csID int, msgType uint8, timestampMs uint32, msgStreamID uint32, payload []byte) error {
	header := make([]byte, 12)
	header[0] = byte(csID & 0x3F) // fmt=0 (full header), 6-bit chunk stream id
	header[1], header[2], header[3] = byte(timestampMs>>16), byte(timestampMs>>8), byte(timestampMs)
	length := uint32(len(payload))
	header[4], header[5], header[6] = byte(length>>16), byte(length>>8), byte(length)
	header[7] = msgType
	header[8] = byte(msgStreamID)
	header[9] = byte(msgStreamID >> 8)
	header[10] = byte(msgStreamID >> 16)
	header[11] = byte(msgStreamID >> 24)

	if _, err := s.conn.Write(append(header, payload...)); err != nil {
		s.state = StateClosed
		if !s.lostEventFired {
			s.lostEventFired = true
			fire(s.onEvent, EventConnectionLost, "rtmp connection lost")
		}
		return errs.New(errs.Closed, "sink.RTMP.writeChunk", err)
	}
	return nil
}

// StopStream flushes any audio still queued (spec.md §7 "best-effort").
func (s *RTMP) StopStream() error {
	for _, p := range s.iv.flush() {
		if _, err := s.writeMediaPacket(p); err != nil {
			fire(s.onEvent, EventWarning, fmt.Sprintf("sink.RTMP.StopStream: flush failed: %v", err))
			break
		}
	}
	if s.state == StateStreaming {
		s.state = StateOpen
	}
	return nil
}

// Close closes the TCP connection.
func (s *RTMP) Close() error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = StateClosed
	return nil
}

// State returns the sink's current lifecycle state.
func (s *RTMP) State() State { return s.state }

// parseRTMPURL splits an rtmp(s|e|t|te|ts)/rtmfp URL into its scheme,
// host:port, application name, and stream key (spec.md §6 "URI with scheme
// in {...}"): rtmp://host[:port]/app/streamKey.
func parseRTMPURL(uri string) (scheme, host, app, key string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", "", "", fmt.Errorf("not a scheme:// uri: %q", uri)
	}
	scheme = uri[:i]
	rest := uri[i+3:]

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", "", "", fmt.Errorf("rtmp uri missing app/key path: %q", uri)
	}
	host = rest[:slash]
	if !strings.Contains(host, ":") {
		host += ":1935"
	}
	path := rest[slash+1:]

	parts := strings.SplitN(path, "/", 2)
	app = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	if app == "" {
		return "", "", "", "", fmt.Errorf("rtmp uri missing app name: %q", uri)
	}
	return scheme, host, app, key, nil
}
