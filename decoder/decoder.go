// Package decoder adapts a FrameDecoder into a sink.Sink, the way the
// teacher's renderer adapters sit between a Broadcaster and whatever
// actually consumes media. It owns no decoding logic itself — real pixel
// decode is out of scope here — but it is the thing the Stream pushes
// packets into, and the thing downstream rendering takes frames out of via
// its Video Buffer.
package decoder

import (
	"fmt"

	"github.com/kestrelcast/mirror/packet"
	"github.com/kestrelcast/mirror/sink"
	"github.com/kestrelcast/mirror/videobuffer"
)

// Frame is one decoded picture. Data holds whatever pixel or opaque
// handle format the underlying FrameDecoder produces; this package never
// interprets it.
type Frame struct {
	PTS  int64
	Data []byte
}

// FrameDecoder is the codec decode backend a Decoder drives. Implementations
// receive Annex-B access units and produce Frames on their own schedule —
// SendPacket and ReceiveFrame are not required to be 1:1, matching how a
// real decoder can buffer B-frames before it starts emitting output.
type FrameDecoder interface {
	Open(extradata []byte) error
	SendPacket(pkt *packet.Packet) error
	ReceiveFrame() (*Frame, bool, error)
	Close() error
}

// Decoder adapts a FrameDecoder into a sink.Sink. Every decoded frame is
// offered to a videobuffer.Buffer, so a slow or absent consumer never backs
// up the Stream: frames are dropped, never queued.
type Decoder struct {
	backend FrameDecoder
	buf     *videobuffer.Buffer[*Frame]
}

// New returns a Decoder driving backend, publishing decoded frames through
// buf. buf's consumer callbacks must already be set by the caller.
func New(backend FrameDecoder, buf *videobuffer.Buffer[*Frame]) *Decoder {
	return &Decoder{backend: backend, buf: buf}
}

// Open implements sink.Sink. It is a no-op beyond satisfying the interface:
// the backend is opened lazily on the first config packet, once extradata
// is known.
func (d *Decoder) Open(sink.CodecDescriptor) error {
	return nil
}

// Push implements sink.Sink. Config packets (SPS/PPS) open the backend;
// frame packets are sent to it and any resulting frames are drained into
// the video buffer.
func (d *Decoder) Push(pkt *packet.Packet) error {
	if pkt.IsConfig() {
		if err := d.backend.Open(pkt.Data); err != nil {
			return fmt.Errorf("decoder: open backend: %w", err)
		}
		return nil
	}

	if err := d.backend.SendPacket(pkt); err != nil {
		return fmt.Errorf("decoder: send packet: %w", err)
	}

	for {
		frame, ok, err := d.backend.ReceiveFrame()
		if err != nil {
			return fmt.Errorf("decoder: receive frame: %w", err)
		}
		if !ok {
			return nil
		}
		d.buf.Offer(frame)
	}
}

// Close implements sink.Sink.
func (d *Decoder) Close() error {
	return d.backend.Close()
}

// Interrupt implements sink.Interrupter and is what Stream.Stop calls on
// the Decoder. It does nothing: Buffer never blocks, so there is no parked
// consumer to wake.
func (d *Decoder) Interrupt() {}
