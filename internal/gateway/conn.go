package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/rules"
	"github.com/castlebay/arena/internal/session"
	"github.com/castlebay/arena/pkg/wire"
)

const (
	writeTimeout = 5 * time.Second
	outboundSize = 64
)

// conn is one websocket attachment to a session, player or spectator.
// A writer goroutine owns all outbound frames so event fanout and
// command replies never interleave a wsjson.Write.
type conn struct {
	ws   *websocket.Conn
	sess *session.Session
	g    grant

	out    chan wire.Frame
	closed chan struct{}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, sess *session.Session, g grant) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept", zap.Error(err))
		return
	}

	c := &conn{
		ws:     ws,
		sess:   sess,
		g:      g,
		out:    make(chan wire.Frame, outboundSize),
		closed: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan session.Event, outboundSize)
	unsubscribe := sess.Subscribe(events)
	defer unsubscribe()

	if !g.spectator {
		// a newer socket for the same seat displaces this one
		if prev := s.claimSeat(g.sessionID, g.seat, c); prev != nil {
			prev.reject(wire.Error{Code: wire.CodeStaleConnection, Message: "superseded by a newer connection"})
		}
		defer func() {
			if s.releaseSeat(g.sessionID, g.seat, c) {
				_ = sess.Disconnect(g.seat)
			}
		}()
		if err := sess.Connect(g.seat); err != nil {
			c.writeFrame(ctx, errorFrame("", err))
			ws.Close(websocket.StatusPolicyViolation, "connect rejected")
			return
		}
	}

	go c.writer(ctx, cancel)

	// authoritative state first; clients drop events at or below its
	// seq, so the pump must not enqueue anything before the snapshot
	snap, err := sess.Snapshot()
	if err != nil {
		c.send(errorFrame("", err))
		ws.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	c.send(wire.Frame{Type: wire.FrameSnapshot, Snapshot: snap})
	go c.pump(ctx, events)

	c.readLoop(ctx)
	ws.Close(websocket.StatusNormalClosure, "")
}

// pump forwards session events into the outbound queue.
func (c *conn) pump(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e := ev
			c.send(wire.Frame{Type: wire.FrameEvent, Event: &e})
		}
	}
}

func (c *conn) writer(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.out:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, f)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

// send enqueues a frame; a slow consumer that fills the queue is cut
// off rather than allowed to block the session fanout.
func (c *conn) send(f wire.Frame) {
	select {
	case c.out <- f:
	case <-c.closed:
	default:
		c.close(websocket.StatusPolicyViolation, "outbound queue overflow")
	}
}

func (c *conn) reject(e wire.Error) {
	ee := e
	c.send(wire.Frame{Type: wire.FrameError, Error: &ee})
	c.close(websocket.StatusPolicyViolation, e.Code)
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	_ = c.ws.Close(code, reason)
}

func (c *conn) writeFrame(ctx context.Context, f wire.Frame) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = wsjson.Write(wctx, c.ws, f)
}

func (c *conn) readLoop(ctx context.Context) {
	for {
		var cmd wire.Command
		if err := wsjson.Read(ctx, c.ws, &cmd); err != nil {
			return
		}
		c.dispatch(cmd)
	}
}

func (c *conn) dispatch(cmd wire.Command) {
	if c.g.spectator && cmd.Type != wire.CmdResume && cmd.Type != wire.CmdPing {
		c.send(wire.Frame{Type: wire.FrameError, Error: &wire.Error{
			ID: cmd.ID, Code: wire.CodeForbidden, Message: "spectators cannot play",
		}})
		return
	}

	switch cmd.Type {
	case wire.CmdPing:
		c.send(wire.Frame{Type: wire.FramePong})

	case wire.CmdResume:
		evs, err := c.sess.EventsSince(cmd.SinceSeq)
		if err != nil {
			c.send(errorFrame(cmd.ID, err))
			return
		}
		for i := range evs {
			c.send(wire.Frame{Type: wire.FrameEvent, Event: &evs[i]})
		}
		c.ack(cmd.ID)

	case wire.CmdMove:
		m, err := rules.ParseUCI(cmd.Move)
		if err != nil {
			c.send(wire.Frame{Type: wire.FrameError, Error: &wire.Error{
				ID: cmd.ID, Code: wire.CodeBadRequest, Message: err.Error(),
			}})
			return
		}
		if err := c.sess.MakeMove(c.g.seat, m); err != nil {
			c.send(errorFrame(cmd.ID, err))
			return
		}
		c.ack(cmd.ID)

	case wire.CmdOfferDraw:
		if err := c.sess.OfferDraw(c.g.seat); err != nil {
			c.send(errorFrame(cmd.ID, err))
			return
		}
		c.ack(cmd.ID)

	case wire.CmdRespondDraw:
		if err := c.sess.RespondDraw(c.g.seat, cmd.Accept); err != nil {
			c.send(errorFrame(cmd.ID, err))
			return
		}
		c.ack(cmd.ID)

	case wire.CmdResign:
		if err := c.sess.Resign(c.g.seat); err != nil {
			c.send(errorFrame(cmd.ID, err))
			return
		}
		c.ack(cmd.ID)

	default:
		c.send(wire.Frame{Type: wire.FrameError, Error: &wire.Error{
			ID: cmd.ID, Code: wire.CodeBadRequest, Message: "unknown command type",
		}})
	}
}

func (c *conn) ack(id string) {
	var seq uint64
	if snap, err := c.sess.Snapshot(); err == nil {
		seq = snap.Seq
	}
	c.send(wire.Frame{Type: wire.FrameAck, Ack: &wire.Ack{ID: id, Seq: seq}})
}

// errorFrame maps session and rules errors to wire reject codes.
func errorFrame(id string, err error) wire.Frame {
	e := &wire.Error{ID: id, Code: wire.CodeBadRequest, Message: err.Error()}
	var illegal *rules.IllegalMoveError
	switch {
	case errors.As(err, &illegal):
		e.Code = wire.CodeIllegalMove
		e.Reason = string(illegal.Reason)
	case errors.Is(err, session.ErrStaleConnection):
		e.Code = wire.CodeStaleConnection
	case errors.Is(err, session.ErrSessionClosed):
		e.Code = wire.CodeSessionClosed
	case errors.Is(err, session.ErrSessionNotFound):
		e.Code = wire.CodeNotFound
	case errors.Is(err, session.ErrIllegalCommand):
		e.Code = wire.CodeIllegalCommand
	}
	return wire.Frame{Type: wire.FrameError, Error: e}
}
