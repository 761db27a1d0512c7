package stream

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/kestrelcast/mirror/events"
	"github.com/kestrelcast/mirror/packet"
	"github.com/kestrelcast/mirror/sink"
)

type fakeSink struct {
	pushed      []*packet.Packet
	failAt      int
	interrupted bool
}

func (f *fakeSink) Open(sink.CodecDescriptor) error { return nil }

func (f *fakeSink) Push(pkt *packet.Packet) error {
	f.pushed = append(f.pushed, pkt)
	if f.failAt != 0 && len(f.pushed) == f.failAt {
		return fmt.Errorf("fake sink: injected failure")
	}
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) Interrupt() { f.interrupted = true }

func annexBIDR() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x01, 0x65}, bytes.Repeat([]byte{0x00}, 4)...)
}

func TestStreamFansOutToEverySink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := packet.WriteChunk(&buf, 1000, annexBIDR()); err != nil {
		t.Fatalf("WriteChunk() error = %v", err)
	}

	decoderSink := &fakeSink{}
	recorderSink := &fakeSink{}
	bus := events.New()
	stopped := make(chan events.Event, 1)
	bus.Subscribe(func(ev events.Event) { stopped <- ev })

	s := New("session-1", []sink.Sink{decoderSink, recorderSink}, bus, nil)
	s.Start(&buf)
	s.Join()

	select {
	case ev := <-stopped:
		if ev.Type != events.StreamStopped {
			t.Errorf("event type = %v, want StreamStopped", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("STREAM_STOPPED event was not posted")
	}

	if len(decoderSink.pushed) != 1 {
		t.Fatalf("decoder got %d pushes, want 1", len(decoderSink.pushed))
	}
	if len(recorderSink.pushed) != 1 {
		t.Fatalf("recorder got %d pushes, want 1", len(recorderSink.pushed))
	}
	if !decoderSink.pushed[0].KeyFrame {
		t.Error("expected KeyFrame = true for an IDR access unit")
	}
}

func TestStreamTerminatesOnSinkFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	packet.WriteChunk(&buf, 1000, annexBIDR())
	packet.WriteChunk(&buf, 2000, annexBIDR())

	failing := &fakeSink{failAt: 1}
	s := New("session-2", []sink.Sink{failing}, nil, nil)
	s.Start(&buf)
	s.Join()

	if len(failing.pushed) != 1 {
		t.Fatalf("sink got %d pushes, want exactly 1 before termination", len(failing.pushed))
	}
}

func TestStreamStopInterruptsDecoderSink(t *testing.T) {
	t.Parallel()

	decoderSink := &fakeSink{}
	s := New("session-3", []sink.Sink{decoderSink}, nil, nil)
	s.Stop()

	if !decoderSink.interrupted {
		t.Error("Stop() did not call Interrupt() on the decoder sink")
	}
}
