// Package sessions owns one end-to-end pipeline — Stream, Decoder,
// optional Recorder, Video Buffer — per mirrored device, the way the
// teacher's stream.Manager tracks one active stream per key, generalized
// here to a whole pipeline rather than a single timestamp.
package sessions

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kestrelcast/mirror/decoder"
	"github.com/kestrelcast/mirror/events"
	"github.com/kestrelcast/mirror/recorder"
	"github.com/kestrelcast/mirror/sink"
	"github.com/kestrelcast/mirror/stream"
	"github.com/kestrelcast/mirror/videobuffer"
)

// Options configures a Session at creation time.
type Options struct {
	// Record, if true, attaches a Recorder sink alongside the Decoder.
	Record bool
	// RecordDir is the directory recordings are written into when Record
	// is true.
	RecordDir string
	// RecordFormat selects the container for recordings.
	RecordFormat recorder.Format
	// Width and Height are the caller-declared frame dimensions, used to
	// configure the Recorder's muxer.
	Width, Height int
	// RecordComment is embedded as application metadata in recordings, on
	// formats that support it. Typically "Recorded by <app> <version>".
	RecordComment string
}

// Session is one mirrored device's pipeline: a Stream reading framed
// chunks, fanning out to a Decoder sink (always present) and an optional
// Recorder sink.
type Session struct {
	Key string

	log      *slog.Logger
	stream   *stream.Stream
	decoder  *decoder.Decoder
	recorder *recorder.Recorder
	buf      *videobuffer.Buffer[*decoder.Frame]

	pipeW *io.PipeWriter
}

// newSession builds a Session's sinks and Stream and starts the Stream
// worker reading from an io.Pipe; the ingest layer feeds that pipe through
// Session.Write.
func newSession(key string, opts Options, bus *events.Bus, log *slog.Logger) (*Session, error) {
	buf := videobuffer.New[*decoder.Frame]()
	buf.SetConsumerCallbacks(videobuffer.Callbacks[*decoder.Frame]{
		OnFrameAvailable: func(*decoder.Frame) {},
	})

	dec := decoder.New(decoder.NewPassthrough(), buf)
	if err := dec.Open(sink.CodecDescriptor{Name: "h264"}); err != nil {
		return nil, fmt.Errorf("sessions: open decoder: %w", err)
	}

	sinks := []sink.Sink{dec}

	var rec *recorder.Recorder
	if opts.Record {
		filename := filepath.Join(opts.RecordDir, fmt.Sprintf("%s-%d.mp4", key, timeNowUnix()))
		if opts.RecordFormat == recorder.FormatMatroska {
			filename = filepath.Join(opts.RecordDir, fmt.Sprintf("%s-%d.mkv", key, timeNowUnix()))
		}
		rec = recorder.New(filename, opts.RecordFormat, opts.Width, opts.Height, opts.RecordComment, log)
		if err := rec.Open(sink.CodecDescriptor{Name: "h264"}); err != nil {
			return nil, fmt.Errorf("sessions: open recorder: %w", err)
		}
		sinks = append(sinks, rec)
	}

	pr, pw := io.Pipe()
	s := stream.New(key, sinks, bus, log)
	s.Start(pr)

	return &Session{
		Key:      key,
		log:      log.With("component", "session", "key", key),
		stream:   s,
		decoder:  dec,
		recorder: rec,
		buf:      buf,
		pipeW:    pw,
	}, nil
}

// Write implements io.Writer, letting the ingest layer feed raw chunk
// bytes (e.g. read off an SRT connection) directly into the session's
// Stream worker.
func (s *Session) Write(p []byte) (int, error) {
	return s.pipeW.Write(p)
}

// VideoBuffer returns the session's decoded-frame hand-off, for a renderer
// to take frames from.
func (s *Session) VideoBuffer() *videobuffer.Buffer[*decoder.Frame] {
	return s.buf
}

// Stop tears the session down in the order the pipeline requires: stop the
// stream (interrupting the decoder sink), close the ingest pipe so the
// worker's read unblocks, join the worker, then close the recorder so its
// writer drains and the trailer is written, then close the decoder. The
// decoder closes last, after both the stream and the recorder have
// stopped pushing, completing the open->push*->close lifecycle every sink
// must go through.
func (s *Session) Stop() {
	s.stream.Stop()
	s.pipeW.CloseWithError(io.EOF)
	s.stream.Join()
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.log.Warn("recorder close failed", "error", err)
		}
	}
	if err := s.decoder.Close(); err != nil {
		s.log.Warn("decoder close failed", "error", err)
	}
}

// timeNowUnix isolates the one wall-clock read a Session needs (a unique
// recording filename) behind a var so tests can override it.
var timeNowUnix = func() int64 { return time.Now().Unix() }
