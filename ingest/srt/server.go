// Package srt accepts SRT publish connections from mirrored devices and
// feeds each one's raw chunk stream into its own session.
package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/kestrelcast/mirror/sessions"
)

// srtReadBufferSize is the read buffer for SRT socket reads. It is sized
// generously above the wire chunk header (12 bytes) plus a single H.264
// access unit; a short read simply means the next Read call picks up the
// remainder, since the Stream worker's ReadChunk reassembles across reads.
const srtReadBufferSize = 64 * 1024

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// Server accepts incoming SRT publish connections — one per mirrored
// device — and creates a session per connection, keyed by the device's
// StreamID.
type Server struct {
	log      *slog.Logger
	addr     string
	sessions *sessions.Manager
	opts     sessions.Options
}

// NewServer returns an SRT server listening on addr. Every accepted
// connection is registered with mgr under a key derived from its
// StreamID, with opts applied to every session it creates.
func NewServer(addr string, mgr *sessions.Manager, opts sessions.Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log.With("component", "srt-server"),
		addr:     addr,
		sessions: mgr,
		opts:     opts,
	}
}

// Start begins accepting SRT publish connections. It blocks until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if req.StreamID == "" {
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		key := extractSessionKey(conn.StreamID())
		s.log.Info("publish", "session_key", key, "remote", conn.RemoteAddr())

		go s.handleConnection(ctx, conn, key)
	}
}

// ingestStats tracks the byte/read counters the Ingest component is
// required to record per connection, mirroring the teacher's
// registry-tracked IngestStats now that there is no registry to hold it.
type ingestStats struct {
	connectedAt   time.Time
	bytesReceived int64
	readCount     int64
}

func (st *ingestStats) recordRead(n int) {
	st.bytesReceived += int64(n)
	st.readCount++
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, key string) {
	defer conn.Close()

	session, err := s.sessions.Create(key, s.opts)
	if err != nil {
		s.log.Warn("session creation failed", "session_key", key, "error", err)
		return
	}
	defer s.sessions.Remove(key)

	stats := &ingestStats{connectedAt: time.Now()}
	defer func() {
		s.log.Info("connection closed", "session_key", key,
			"bytes", stats.bytesReceived, "reads", stats.readCount,
			"uptime_ms", time.Since(stats.connectedAt).Milliseconds())
	}()

	buf := make([]byte, srtReadBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read error", "session_key", key, "error", err)
			}
			return
		}
		stats.recordRead(n)
		if _, err := session.Write(buf[:n]); err != nil {
			s.log.Debug("session write error", "session_key", key, "error", err)
			return
		}
	}
}

func extractSessionKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
