package recorder

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kestrelcast/mirror/packet"
)

type muxedSample struct {
	pts, duration int64
	data          []byte
	keyframe      bool
}

// fakeMuxer records every call it receives and can be configured to fail
// writeSample at a chosen call count, standing in for a real container
// library in these tests.
type fakeMuxer struct {
	mu sync.Mutex

	extradata []byte
	width     int
	height    int

	samples []muxedSample
	calls   int
	failAt  int

	trailerWritten bool
	closed         bool
}

func (m *fakeMuxer) writeHeader(extradata []byte, width, height int) error {
	m.extradata = append([]byte{}, extradata...)
	m.width, m.height = width, height
	return nil
}

func (m *fakeMuxer) writeSample(pts, duration int64, data []byte, keyframe bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAt != 0 && m.calls == m.failAt {
		return fmt.Errorf("fake muxer: injected write failure")
	}
	m.samples = append(m.samples, muxedSample{pts, duration, append([]byte{}, data...), keyframe})
	return nil
}

func (m *fakeMuxer) writeTrailer() error {
	m.trailerWritten = true
	return nil
}

func (m *fakeMuxer) close() error {
	m.closed = true
	return nil
}

// openWithFake starts r's writer against fake directly, bypassing Open
// (which would otherwise create a real file and a real mediacommon/ebml-go
// muxer).
func openWithFake(r *Recorder, fake *fakeMuxer) {
	go r.run(fake)
}

func newTestRecorder() *Recorder {
	return New("unused.mp4", FormatMP4, 1080, 1920, "Recorded by mirror test", nil)
}

func TestRecorderCleanTwoFrameRecord(t *testing.T) {
	t.Parallel()

	r := newTestRecorder()
	fake := &fakeMuxer{}
	openWithFake(r, fake)

	mustPush(t, r, &packet.Packet{PTS: packet.NoPTS, Data: []byte{0x01, 0x02, 0x03, 0x04}})
	mustPush(t, r, &packet.Packet{PTS: 1000, Data: []byte{0xAA}, KeyFrame: true})
	mustPush(t, r, &packet.Packet{PTS: 4000, Data: []byte{0xBB}})

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if string(fake.extradata) != "\x01\x02\x03\x04" {
		t.Errorf("extradata = %x, want 01020304", fake.extradata)
	}
	if len(fake.samples) != 2 {
		t.Fatalf("got %d muxed samples, want 2", len(fake.samples))
	}
	if fake.samples[0].duration != 3000 {
		t.Errorf("sample[0].duration = %d, want 3000", fake.samples[0].duration)
	}
	if fake.samples[1].duration != fallbackDurationUs {
		t.Errorf("sample[1].duration = %d, want %d", fake.samples[1].duration, fallbackDurationUs)
	}
	if !fake.trailerWritten {
		t.Error("trailer was not written")
	}
}

func TestRecorderBadFirstPacket(t *testing.T) {
	t.Parallel()

	r := newTestRecorder()
	fake := &fakeMuxer{}
	openWithFake(r, fake)

	mustPush(t, r, &packet.Packet{PTS: 500, Data: []byte{0xAA}})

	if err := r.Close(); err == nil {
		t.Fatal("Close() error = nil, want failure")
	}
	if fake.trailerWritten {
		t.Error("trailer should not be written after a protocol failure")
	}
}

func TestRecorderShutdownWhileQueueNonEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRecorder()
	fake := &fakeMuxer{}
	openWithFake(r, fake)

	mustPush(t, r, &packet.Packet{PTS: packet.NoPTS, Data: []byte{0x01}})
	const n = 50
	for i := 0; i < n; i++ {
		mustPush(t, r, &packet.Packet{PTS: int64(1000 * (i + 1)), Data: []byte{byte(i)}})
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(fake.samples) != n {
		t.Errorf("got %d muxed samples, want %d", len(fake.samples), n)
	}
	if !fake.trailerWritten {
		t.Error("trailer was not written")
	}
}

func TestRecorderMuxerWriteFailureMidStream(t *testing.T) {
	t.Parallel()

	r := newTestRecorder()
	fake := &fakeMuxer{failAt: 2}
	openWithFake(r, fake)

	mustPush(t, r, &packet.Packet{PTS: packet.NoPTS, Data: []byte{0x01}})
	mustPush(t, r, &packet.Packet{PTS: 1000, Data: []byte{0xAA}})
	mustPush(t, r, &packet.Packet{PTS: 2000, Data: []byte{0xBB}})
	mustPush(t, r, &packet.Packet{PTS: 3000, Data: []byte{0xCC}})

	if err := r.Close(); err == nil {
		t.Fatal("Close() error = nil, want failure")
	}
	if fake.trailerWritten {
		t.Error("trailer should not be written after a muxer write failure")
	}

	// Give the writer goroutine's fail() a moment to land before asserting
	// on the recorder's failed state via a subsequent Push.
	time.Sleep(10 * time.Millisecond)
	if err := r.Push(&packet.Packet{PTS: 4000, Data: []byte{0xDD}}); err == nil {
		t.Error("Push() after failure should return an error")
	}
}

func mustPush(t *testing.T, r *Recorder, pkt *packet.Packet) {
	t.Helper()
	if err := r.Push(pkt); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
}
