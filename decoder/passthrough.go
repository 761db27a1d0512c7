package decoder

import "github.com/kestrelcast/mirror/packet"

// Passthrough is a FrameDecoder that performs no codec decode: it hands
// back each access unit's Annex-B payload as if it were a Frame, one in for
// one out. It exists so cmd/mirror has a concrete FrameDecoder to wire the
// pipeline against without pulling in a real H.264 decode library, since
// turning compressed frames into pixels is out of scope for this service.
type Passthrough struct {
	pending []*Frame
}

// NewPassthrough returns a ready-to-use Passthrough.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Open implements FrameDecoder. Passthrough ignores extradata; there is no
// codec context to configure.
func (p *Passthrough) Open(extradata []byte) error {
	return nil
}

// SendPacket implements FrameDecoder, queuing pkt's payload as the next
// frame to return from ReceiveFrame.
func (p *Passthrough) SendPacket(pkt *packet.Packet) error {
	p.pending = append(p.pending, &Frame{PTS: pkt.PTS, Data: pkt.Data})
	return nil
}

// ReceiveFrame implements FrameDecoder, draining packets queued by
// SendPacket in order.
func (p *Passthrough) ReceiveFrame() (*Frame, bool, error) {
	if len(p.pending) == 0 {
		return nil, false, nil
	}
	f := p.pending[0]
	p.pending = p.pending[1:]
	return f, true, nil
}

// Close implements FrameDecoder.
func (p *Passthrough) Close() error {
	return nil
}
