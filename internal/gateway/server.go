// Package gateway exposes the session engine over HTTP: POST /sessions
// for matchmaking to pair players, GET /ws for player and spectator
// websockets. It owns join tokens and per-seat connection tracking;
// all game state lives in the session actors.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/clock"
	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/rules"
	"github.com/castlebay/arena/internal/session"
	"github.com/castlebay/arena/pkg/wire"
)

type Server struct {
	reg    *session.Registry
	tokens *tokenStore

	maxSessions int

	mu    sync.Mutex
	seats map[string]map[rules.Color]*conn
}

type ServerOption func(*Server)

// WithMaxSessions caps concurrent sessions accepted by POST /sessions.
func WithMaxSessions(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

func NewServer(reg *session.Registry, opts ...ServerOption) *Server {
	s := &Server{
		reg:         reg,
		tokens:      newTokenStore(),
		maxSessions: 200,
		seats:       make(map[string]map[rules.Color]*conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	// tokens and seat tracking live exactly as long as the session
	reg.OnEvict(s.dropSession)
	return s
}

func (s *Server) dropSession(id string) {
	s.tokens.DropSession(id)
	s.mu.Lock()
	delete(s.seats, id)
	s.mu.Unlock()
}

// Routes returns the HTTP handler for the gateway.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "malformed body")
		return
	}
	if req.White.ID == "" || req.Black.ID == "" {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "both players required")
		return
	}
	if req.White.ID == req.Black.ID {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "players must differ")
		return
	}
	if s.reg.Len() >= s.maxSessions {
		writeError(w, http.StatusServiceUnavailable, wire.CodeBadRequest, "session capacity reached")
		return
	}

	var cfg session.Config
	if req.ClockInitialMS > 0 {
		cfg.Clock = clock.Config{
			Initial:   time.Duration(req.ClockInitialMS) * time.Millisecond,
			Increment: time.Duration(req.ClockIncMS) * time.Millisecond,
		}
	}
	sess := s.reg.Create(
		session.PlayerInfo{ID: req.White.ID, Name: req.White.Name},
		session.PlayerInfo{ID: req.Black.ID, Name: req.Black.Name},
		cfg,
	)
	wt, bt, st := s.tokens.Issue(sess.ID())

	writeJSON(w, http.StatusCreated, wire.CreateSessionResponse{
		SessionID:      sess.ID(),
		WhiteToken:     wt,
		BlackToken:     bt,
		SpectatorToken: st,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, wire.CodeNotFound, "unknown session")
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		writeError(w, http.StatusGone, wire.CodeSessionClosed, "session closed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	g, ok := s.tokens.Resolve(r.URL.Query().Get("token"))
	if !ok {
		writeError(w, http.StatusForbidden, wire.CodeForbidden, "unknown token")
		return
	}
	sess, err := s.reg.Get(g.sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, wire.CodeNotFound, "session gone")
		return
	}
	s.serveWS(w, r, sess, g)
}

// claimSeat registers c as the live connection for a seat and returns
// the connection it displaced, if any.
func (s *Server) claimSeat(sessionID string, seat rules.Color, c *conn) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.seats[sessionID]
	if m == nil {
		m = make(map[rules.Color]*conn)
		s.seats[sessionID] = m
	}
	prev := m[seat]
	m[seat] = c
	return prev
}

// releaseSeat clears the seat if c still owns it; it reports whether
// the seat became empty (so the session should see a disconnect).
func (s *Server) releaseSeat(sessionID string, seat rules.Color, c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.seats[sessionID]
	if m == nil || m[seat] != c {
		return false
	}
	delete(m, seat)
	if len(m) == 0 {
		delete(s.seats, sessionID)
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("http_write", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, wire.Error{Code: code, Message: msg})
}
