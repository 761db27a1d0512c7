package sessions

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kestrelcast/mirror/events"
)

// Manager tracks active sessions by key, the way the teacher's
// stream.Manager tracks active streams, generalized to own a whole
// Stream/Decoder/Recorder/VideoBuffer pipeline per entry instead of a
// timestamp.
type Manager struct {
	log *slog.Logger
	bus *events.Bus

	mu       sync.Mutex
	sessions map[string]*Session
}

// New returns an empty Manager. bus, if non-nil, is wired into every
// Session's Stream so session termination is observable externally, and
// the Manager itself subscribes to STREAM_STOPPED to tear the session
// down: a Stream worker can terminate on its own (a sink push failure, a
// parse failure) with the ingest connection still open, and without this
// the session would stay registered forever with nothing left reading
// its ingest pipe.
func New(bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		log:      log.With("component", "session-manager"),
		bus:      bus,
		sessions: make(map[string]*Session),
	}
	if bus != nil {
		bus.Subscribe(func(ev events.Event) {
			if ev.Type == events.StreamStopped {
				m.Remove(ev.SessionKey)
			}
		})
	}
	return m
}

// Create starts a new session under key and registers it. It returns an
// error if key is already in use.
func (m *Manager) Create(key string, opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[key]; exists {
		return nil, fmt.Errorf("sessions: key %q already active", key)
	}

	s, err := newSession(key, opts, m.bus, m.log)
	if err != nil {
		return nil, err
	}

	m.sessions[key] = s
	m.log.Info("session created", "key", key)
	return s, nil
}

// Get returns the session registered under key, if any.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Remove stops and unregisters the session under key. It is a no-op if no
// session is registered under key.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Stop()
	m.log.Info("session removed", "key", key)
}

// List returns the keys of every currently active session.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}
