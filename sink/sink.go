// Package sink defines the capability interface shared by the Stream's two
// packet consumers (Decoder, Recorder). Modeling sink polymorphism as a
// small interface, rather than a shared base type, lets the Stream hold a
// plain slice of Sink and iterate it without knowing which concrete sinks
// it's driving.
package sink

import "github.com/kestrelcast/mirror/packet"

// CodecDescriptor is the minimal codec identity a sink's Open needs: enough
// to configure a muxer stream or a decoder context without the Stream
// having to know what either of those do with it.
type CodecDescriptor struct {
	Name string // "h264"
}

// Sink is the contract a packet consumer implements: open with a codec
// descriptor, accept a sequence of pushed packets, and close. Push borrows
// its Packet argument; a Sink that wants to retain the payload beyond the
// call must copy it before returning.
type Sink interface {
	Open(codec CodecDescriptor) error
	Push(pkt *packet.Packet) error
	Close() error
}

// Interrupter is implemented by sinks whose downstream consumer may be
// blocked waiting for work (the Decoder, via its Video Buffer consumer).
// Stream.Stop calls through this via a type assertion, matching the design
// note that the Decoder sink is the one with an interrupt capability.
type Interrupter interface {
	Interrupt()
}
