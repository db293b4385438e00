package session

import (
	"errors"
	"time"

	"github.com/castlebay/arena/internal/clock"
	"github.com/castlebay/arena/internal/rules"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusFinished Status = "FINISHED"
)

// FinishReason explains a terminal transition.
type FinishReason string

const (
	ReasonCheckmate        FinishReason = "checkmate"
	ReasonStalemate        FinishReason = "stalemate"
	ReasonDrawAgreement    FinishReason = "draw_agreement"
	ReasonDrawFiftyMove    FinishReason = "draw_fifty_move"
	ReasonDrawThreefold    FinishReason = "draw_threefold_repetition"
	ReasonDrawInsufficient FinishReason = "draw_insufficient_material"
	ReasonResignation      FinishReason = "resignation"
	ReasonTimeout          FinishReason = "timeout"
	ReasonAbandonment      FinishReason = "abandonment"
)

// Draw reports whether the reason ends the game without a winner by
// definition. Abandonment with neither side connected also produces no
// winner but is not a draw.
func (r FinishReason) Draw() bool {
	switch r {
	case ReasonStalemate, ReasonDrawAgreement, ReasonDrawFiftyMove,
		ReasonDrawThreefold, ReasonDrawInsufficient:
		return true
	}
	return false
}

func reasonForRuleStatus(s rules.Status) FinishReason {
	switch s {
	case rules.StatusCheckmate:
		return ReasonCheckmate
	case rules.StatusStalemate:
		return ReasonStalemate
	case rules.StatusFiftyMove:
		return ReasonDrawFiftyMove
	case rules.StatusThreefold:
		return ReasonDrawThreefold
	case rules.StatusInsufficient:
		return ReasonDrawInsufficient
	}
	return ""
}

// PausePolicy decides what happens to the clock when a player drops.
type PausePolicy string

const (
	// PolicyPause freezes both clocks while a seat is empty.
	PolicyPause PausePolicy = "pause"
	// PolicyRun keeps the active side's clock running through the
	// disconnect, punishing the absent player.
	PolicyRun PausePolicy = "run"
)

// PlayerInfo is opaque identity plus display metadata; the engine never
// interprets it.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config carries per-session policy.
type Config struct {
	Clock          clock.Config
	DisconnectMode PausePolicy
	// AbandonGrace bounds how long a session may stay PAUSED before it
	// is forfeited to the connected side.
	AbandonGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock.Initial <= 0 {
		c.Clock.Initial = 10 * time.Minute
	}
	if c.DisconnectMode == "" {
		c.DisconnectMode = PolicyPause
	}
	if c.AbandonGrace <= 0 {
		c.AbandonGrace = 2 * time.Minute
	}
	return c
}

// ClockView is the wire-friendly clock projection in milliseconds.
type ClockView struct {
	WhiteMillis int64  `json:"white_ms"`
	BlackMillis int64  `json:"black_ms"`
	Running     string `json:"running,omitempty"`
}

// Snapshot is the full authoritative projection of a session, used for
// first-attach delivery and for resume when a client is too far behind.
type Snapshot struct {
	SessionID string       `json:"session_id"`
	Seq       uint64       `json:"seq"`
	Status    Status       `json:"status"`
	White     PlayerInfo   `json:"white"`
	Black     PlayerInfo   `json:"black"`
	FEN       string       `json:"fen"`
	Turn      string       `json:"turn"`
	MovesUCI  []string     `json:"moves_uci"`
	MovesSAN  []string     `json:"moves_san"`
	Clocks    ClockView    `json:"clocks"`
	DrawOffer string       `json:"draw_offer,omitempty"`
	Reason    FinishReason `json:"reason,omitempty"`
	Winner    string       `json:"winner,omitempty"`
	EndedAt   time.Time    `json:"ended_at,omitzero"`
}

// Record is the payload handed to finished-game sinks (archive,
// history, rating); it mirrors the final StatusChanged event.
type Record struct {
	SessionID string       `json:"session_id"`
	White     PlayerInfo   `json:"white"`
	Black     PlayerInfo   `json:"black"`
	MovesUCI  []string     `json:"moves_uci"`
	MovesSAN  []string     `json:"moves_san"`
	FinalFEN  string       `json:"final_fen"`
	Reason    FinishReason `json:"reason"`
	Winner    string       `json:"winner,omitempty"`
	Clocks    ClockView    `json:"clocks"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// EventType enumerates the canonical delta events.
type EventType string

const (
	EventMoveApplied   EventType = "move_applied"
	EventDrawOffered   EventType = "draw_offered"
	EventDrawResolved  EventType = "draw_resolved"
	EventStatusChanged EventType = "status_changed"
)

// Event is one accepted state transition, identified by Seq. Events for
// a session are totally ordered; clients apply them in order and ignore
// repeats. A game-ending move is two transitions and therefore two
// events: the move_applied delta, then the status_changed into
// FINISHED carrying the terminal reason.
type Event struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`

	// move_applied
	MoveUCI string `json:"move_uci,omitempty"`
	MoveSAN string `json:"move_san,omitempty"`
	FEN     string `json:"fen,omitempty"`
	Turn    string `json:"turn,omitempty"`

	// draw_offered / draw_resolved
	By       string `json:"by,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`

	// status_changed (also set on a game-ending move_applied)
	Status Status       `json:"status,omitempty"`
	Reason FinishReason `json:"reason,omitempty"`
	Winner string       `json:"winner,omitempty"`

	Clocks *ClockView `json:"clocks,omitempty"`
}

// Rejection errors. Illegal moves additionally wrap the rules reason.
var (
	ErrIllegalCommand  = errors.New("illegal command")
	ErrStaleConnection = errors.New("stale connection")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)
