package sink

import "github.com/thibaultbee/streampack-go/internal/media"

// interleaver enforces spec.md §8 invariant 5: between any two consecutive
// video packets written to the RTMP sink, every queued audio packet with a
// timestamp no greater than the video packet's is written, in non-decreasing
// timestamp order, before the video packet itself.
type interleaver struct {
	audioQueue []*media.Packet
}

// pushAudio queues an audio packet; it is released by a later pushVideo or
// by flush.
func (iv *interleaver) pushAudio(pkt *media.Packet) {
	iv.audioQueue = append(iv.audioQueue, pkt)
}

// pushVideo returns, in write order, every queued audio packet whose
// timestamp is <= pkt's, followed by pkt.
func (iv *interleaver) pushVideo(pkt *media.Packet) []*media.Packet {
	i := 0
	for i < len(iv.audioQueue) && iv.audioQueue[i].TSUs <= pkt.TSUs {
		i++
	}
	out := make([]*media.Packet, 0, i+1)
	out = append(out, iv.audioQueue[:i]...)
	iv.audioQueue = iv.audioQueue[i:]
	out = append(out, pkt)
	return out
}

// flush drains any audio still queued, e.g. on stop_stream.
func (iv *interleaver) flush() []*media.Packet {
	out := iv.audioQueue
	iv.audioQueue = nil
	return out
}
