// Package packet defines the Packet type that flows from the Stream parser
// into the Decoder and Recorder sinks.
package packet

// NoPTS marks a packet that carries no presentation timestamp, i.e. a config
// packet holding codec extradata (SPS/PPS) rather than frame payload. On the
// wire this is signalled by a header PTS field of all-ones; decoded as an
// int64 that value is -1.
const NoPTS int64 = -1

// Packet is one H.264 access unit (or, if PTS is NoPTS, one config blob)
// received from the Stream. Ownership: the Stream constructs a Packet and
// passes it to each sink's Push in turn; a sink that wants to retain the
// payload past its Push call must copy Data, since the Stream reuses
// nothing but also makes no guarantee the backing array survives.
type Packet struct {
	PTS      int64
	DTS      int64
	Data     []byte
	KeyFrame bool
	Duration int64 // microseconds; filled in by the Recorder's duration inference
}

// IsConfig reports whether this packet carries codec extradata rather than
// a decodable access unit.
func (p *Packet) IsConfig() bool {
	return p.PTS == NoPTS
}

// Clone returns a deep copy of p, safe to retain independently of the
// original's backing array. Sinks that queue packets for processing on
// another goroutine (the Recorder) must clone before returning from Push.
func (p *Packet) Clone() *Packet {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return &Packet{
		PTS:      p.PTS,
		DTS:      p.DTS,
		Data:     data,
		KeyFrame: p.KeyFrame,
		Duration: p.Duration,
	}
}
