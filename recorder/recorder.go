// Package recorder durably writes a packet sequence into a container file.
// It owns an asynchronous writer goroutine so that Push, called from the
// Stream worker, never blocks on disk I/O: pushed packets are cloned onto a
// FIFO queue and a condition variable wakes the writer.
package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kestrelcast/mirror/packet"
	"github.com/kestrelcast/mirror/sink"
)

// Format selects the container a Recorder writes.
type Format int

const (
	FormatMP4 Format = iota
	FormatMatroska
)

// fallbackDurationUs is the duration, in microseconds, assigned to the final
// packet at shutdown, when there is no successor to derive it from.
const fallbackDurationUs = 100_000

// Recorder asynchronously muxes pushed packets into filename. All exported
// methods are safe to call from any goroutine; the container is written
// from a single internal writer goroutine.
type Recorder struct {
	log *slog.Logger

	filename string
	format   Format
	width    int
	height   int
	comment  string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*packet.Packet
	stopped bool
	failed  bool

	done chan struct{}
}

// New returns a Recorder configured to write filename in format, with the
// caller-declared frame dimensions width x height. comment is embedded in
// the container as application metadata where the format supports it (see
// mkvMuxer). It performs no I/O; the writer goroutine and the underlying
// file are created by Open.
func New(filename string, format Format, width, height int, comment string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		log:      log.With("component", "recorder", "filename", filename),
		filename: filename,
		format:   format,
		width:    width,
		height:   height,
		comment:  comment,
		done:     make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Open implements sink.Sink, starting the writer goroutine. The container
// header is not written here: it is written lazily by the writer once the
// first (config) packet arrives, since only then is the codec extradata
// known.
func (r *Recorder) Open(sink.CodecDescriptor) error {
	f, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("recorder: create %s: %w", r.filename, err)
	}

	var m muxer
	switch r.format {
	case FormatMatroska:
		m = newMKVMuxer(f, r.comment, r.fail)
	default:
		m = newMP4Muxer(f, r.comment)
	}

	go r.run(m)
	return nil
}

// Push implements sink.Sink. It clones pkt (the caller retains ownership
// of the original), enqueues the clone, and wakes the writer. It returns
// an error once the recorder has entered the failed state, including after
// Close; calling it after Close on a recorder that has not failed panics.
func (r *Recorder) Push(pkt *packet.Packet) error {
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		return fmt.Errorf("recorder: push after failure")
	}
	if r.stopped {
		r.mu.Unlock()
		panic("recorder: Push called after Close")
	}
	r.queue = append(r.queue, pkt.Clone())
	r.mu.Unlock()
	r.cond.Signal()
	return nil
}

// Close implements sink.Sink. It signals the writer to drain the queue,
// write the trailer, and exit, then waits for it to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cond.Signal()

	<-r.done

	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	if failed {
		return fmt.Errorf("recorder: recording failed before close")
	}
	return nil
}

// fail puts the Recorder into its failed state: subsequent Push calls are
// rejected and Close reports a non-nil error. It is safe to call from the
// writer goroutine or asynchronously from a muxer's own fatal-error
// callback (see mkvMuxer.onFatal).
func (r *Recorder) fail(err error) {
	r.log.Error("recorder failed", "error", err)
	r.mu.Lock()
	r.failed = true
	r.queue = nil
	r.mu.Unlock()
}

// run is the writer goroutine's loop: wait for work, dequeue one packet,
// apply duration inference against the previously dequeued packet, and
// write it, until stopped and the queue is empty.
func (r *Recorder) run(m muxer) {
	defer close(r.done)
	defer func() {
		if err := m.close(); err != nil {
			r.log.Warn("muxer close failed", "error", err)
		}
	}()

	var headerWritten bool
	var extradata []byte
	var prev *packet.Packet

	flushPrev := func() {
		if prev == nil {
			return
		}
		prev.Duration = fallbackDurationUs
		if err := m.writeSample(prev.PTS, prev.Duration, prev.Data, prev.KeyFrame); err != nil {
			r.log.Warn("final packet write failed", "error", err)
		}
		prev = nil
	}

	fail := r.fail

	for {
		r.mu.Lock()
		for !r.stopped && len(r.queue) == 0 {
			r.cond.Wait()
		}
		if r.stopped && len(r.queue) == 0 {
			r.mu.Unlock()
			flushPrev()
			if headerWritten {
				if err := m.writeTrailer(); err != nil {
					fail(fmt.Errorf("write trailer: %w", err))
				}
			}
			return
		}
		curr := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if !headerWritten {
			if !curr.IsConfig() {
				fail(fmt.Errorf("first packet is not a config packet"))
				return
			}
			extradata = curr.Data
			if err := m.writeHeader(extradata, r.width, r.height); err != nil {
				fail(fmt.Errorf("write header: %w", err))
				return
			}
			headerWritten = true
			continue
		}

		if curr.IsConfig() {
			continue
		}

		if prev != nil {
			prev.Duration = curr.PTS - prev.PTS
			if err := m.writeSample(prev.PTS, prev.Duration, prev.Data, prev.KeyFrame); err != nil {
				fail(fmt.Errorf("write sample: %w", err))
				return
			}
		}
		prev = curr
	}
}
