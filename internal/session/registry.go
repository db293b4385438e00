package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/obslog"
)

// Registry maps session ids to running session actors. It is the only
// structure shared across components: matchmaking inserts, the
// transport layer looks up. Once a handle is obtained all interaction
// is serialized through that session's actor.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaults Config
	sinks    []FinishedSink

	retain   time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	onEvict func(sessionID string)
}

type RegistryOption func(*Registry)

// WithSessionDefaults sets the config applied when Create receives a
// zero-value field.
func WithSessionDefaults(cfg Config) RegistryOption {
	return func(r *Registry) { r.defaults = cfg }
}

// WithFinishedSinks attaches sinks notified once per terminated session.
func WithFinishedSinks(sinks ...FinishedSink) RegistryOption {
	return func(r *Registry) { r.sinks = append(r.sinks, sinks...) }
}

// WithRetention sets how long a FINISHED session stays resolvable
// before the janitor evicts it.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.retain = d
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		retain:   10 * time.Minute,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.janitor()
	return r
}

// Create is the interface matchmaking consumes: pair two players under
// a clock config and get back a running session.
func (r *Registry) Create(white, black PlayerInfo, cfg Config) *Session {
	if cfg.Clock.Initial <= 0 {
		cfg.Clock = r.defaults.Clock
	}
	if cfg.DisconnectMode == "" {
		cfg.DisconnectMode = r.defaults.DisconnectMode
	}
	if cfg.AbandonGrace <= 0 {
		cfg.AbandonGrace = r.defaults.AbandonGrace
	}

	s := newSession(uuid.NewString(), white, black, cfg, r.sinks)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	obslog.L().Info("session_create",
		zap.String("session_id", s.ID()),
		zap.String("white_id", white.ID),
		zap.String("black_id", black.ID),
	)
	return s
}

// OnEvict registers a callback invoked whenever a session leaves the
// registry, by janitor sweep or explicit Evict. The transport layer
// uses it to release per-session state such as join tokens.
func (r *Registry) OnEvict(fn func(sessionID string)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// Evict removes one session immediately, stopping its actor.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		s.Close()
		delete(r.sessions, id)
	}
	fn := r.onEvict
	r.mu.Unlock()
	if !ok {
		return false
	}
	if fn != nil {
		fn(id)
	}
	obslog.L().Info("session_evict", zap.String("session_id", id))
	return true
}

// Get resolves a session id to its actor handle.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the janitor and every session actor.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
}

// janitor evicts terminated sessions once their retention window has
// passed, so finished games stay resolvable briefly for late resumes.
func (r *Registry) janitor() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	var evicted []string
	r.mu.Lock()
	for id, s := range r.sessions {
		snap, err := s.Snapshot()
		if err != nil {
			delete(r.sessions, id)
			evicted = append(evicted, id)
			continue
		}
		if snap.Status != StatusFinished {
			continue
		}
		if now.Sub(snap.EndedAt) < r.retain {
			continue
		}
		s.Close()
		delete(r.sessions, id)
		evicted = append(evicted, id)
	}
	fn := r.onEvict
	r.mu.Unlock()

	for _, id := range evicted {
		if fn != nil {
			fn(id)
		}
		obslog.L().Info("session_evict", zap.String("session_id", id))
	}
}
