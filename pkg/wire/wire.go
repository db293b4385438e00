// Package wire defines the JSON envelopes spoken over the websocket:
// client commands in, server frames out. Every server frame that
// mutates state carries the session sequence number so clients can
// resume deterministically.
package wire

import "github.com/castlebay/arena/internal/session"

type CommandType string

const (
	CmdMove        CommandType = "move"
	CmdOfferDraw   CommandType = "offer_draw"
	CmdRespondDraw CommandType = "respond_draw"
	CmdResign      CommandType = "resign"
	CmdResume      CommandType = "resume"
	CmdPing        CommandType = "ping"
)

// Command is the client-to-server envelope. ID is an optional client
// correlation token echoed back on the ack or error.
type Command struct {
	Type   CommandType `json:"type"`
	ID     string      `json:"id,omitempty"`
	Move   string      `json:"move,omitempty"` // UCI, e.g. "e2e4" or "e7e8q"
	Accept bool        `json:"accept,omitempty"`

	// resume: deliver events after this sequence number
	SinceSeq uint64 `json:"since_seq,omitempty"`
}

type FrameType string

const (
	FrameSnapshot FrameType = "snapshot"
	FrameEvent    FrameType = "event"
	FrameAck      FrameType = "ack"
	FrameError    FrameType = "error"
	FramePong     FrameType = "pong"
)

// Frame is the server-to-client envelope. Exactly one payload field is
// set, matching Type.
type Frame struct {
	Type     FrameType         `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Event    *session.Event    `json:"event,omitempty"`
	Ack      *Ack              `json:"ack,omitempty"`
	Error    *Error            `json:"error,omitempty"`
}

// Ack confirms an accepted command and reports the sequence number it
// produced (zero when the command changed nothing, e.g. ping).
type Ack struct {
	ID  string `json:"id,omitempty"`
	Seq uint64 `json:"seq,omitempty"`
}

// Reject codes. CodeIllegalMove additionally carries the rules reason.
const (
	CodeBadRequest      = "bad_request"
	CodeIllegalMove     = "illegal_move"
	CodeIllegalCommand  = "illegal_command"
	CodeStaleConnection = "stale_connection"
	CodeSessionClosed   = "session_closed"
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
)

type Error struct {
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"` // machine reason for illegal moves
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// CreateSessionRequest is the body for POST /sessions, the boundary a
// matchmaking service calls to pair two players.
type CreateSessionRequest struct {
	White          Player `json:"white"`
	Black          Player `json:"black"`
	ClockInitialMS int64  `json:"clock_initial_ms,omitempty"`
	ClockIncMS     int64  `json:"clock_increment_ms,omitempty"`
}

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CreateSessionResponse carries the session id plus one join token per
// seat and the spectator token.
type CreateSessionResponse struct {
	SessionID      string `json:"session_id"`
	WhiteToken     string `json:"white_token"`
	BlackToken     string `json:"black_token"`
	SpectatorToken string `json:"spectator_token"`
}
