// Package stream reads framed chunks off a socket, reassembles them into
// H.264 access units, and fans the resulting packets out to a fixed set of
// sinks.
package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kestrelcast/mirror/events"
	"github.com/kestrelcast/mirror/h264"
	"github.com/kestrelcast/mirror/packet"
	"github.com/kestrelcast/mirror/sink"
)

// Stream reads one mirrored device's chunk stream and drives a fixed set
// of sinks. A Stream is single-use: Start spawns exactly one worker, which
// Stop and Join act on.
type Stream struct {
	log        *slog.Logger
	sessionKey string
	bus        *events.Bus

	sinks  []sink.Sink
	parser *h264.Parser

	done chan struct{}
}

// New returns a Stream that will push to sinks in the given order when
// started. bus, if non-nil, receives a STREAM_STOPPED event when the
// worker exits.
func New(sessionKey string, sinks []sink.Sink, bus *events.Bus, log *slog.Logger) *Stream {
	if log == nil {
		log = slog.Default()
	}
	return &Stream{
		log:        log.With("component", "stream", "session", sessionKey),
		sessionKey: sessionKey,
		bus:        bus,
		sinks:      sinks,
		parser:     h264.NewParser(),
		done:       make(chan struct{}),
	}
}

// Start spawns the worker reading from r. It returns immediately; the
// worker's outcome is observed via Join or the event bus.
func (s *Stream) Start(r io.Reader) {
	go s.run(r)
}

// Stop requests termination. It is idempotent and safe to call from any
// goroutine: it interrupts any sink that exposes sink.Interrupter (the
// Decoder). It does not end the worker's read: the worker exits only once
// its reader reports EOF or an error, so closing the socket is the
// caller's responsibility.
func (s *Stream) Stop() {
	for _, sk := range s.sinks {
		if in, ok := sk.(sink.Interrupter); ok {
			in.Interrupt()
		}
	}
}

// Join blocks until the worker has exited.
func (s *Stream) Join() {
	<-s.done
}

func (s *Stream) run(r io.Reader) {
	// Posting to the bus can synchronously trigger a subscriber that calls
	// Join (e.g. the session manager tearing down on STREAM_STOPPED), so
	// done must already be closed by the time Post runs. Defers unwind
	// LIFO, so close(s.done) is registered second to run first.
	defer func() {
		if s.bus != nil {
			s.bus.Post(events.Event{Type: events.StreamStopped, SessionKey: s.sessionKey})
		}
	}()
	defer close(s.done)

	for {
		chunk, err := packet.ReadChunk(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Info("stream ended", "error", err)
			} else {
				s.log.Info("stream ended", "reason", "eof")
			}
			return
		}

		aus, err := s.parser.Parse(chunk.Data)
		if err != nil {
			s.log.Error("parse failure", "error", err)
			return
		}

		for _, au := range aus {
			pkt := &packet.Packet{
				PTS:      chunk.PTS,
				DTS:      chunk.PTS,
				Data:     au.Data,
				KeyFrame: au.KeyFrame,
			}
			if err := s.pushToSinks(pkt); err != nil {
				s.log.Error("sink push failed", "error", err)
				return
			}
		}
	}
}

// pushToSinks pushes pkt to every sink in declared order (decoder first,
// recorder second, per the caller's ordering of New's sinks argument),
// stopping at the first failure.
func (s *Stream) pushToSinks(pkt *packet.Packet) error {
	for i, sk := range s.sinks {
		if err := sk.Push(pkt); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
