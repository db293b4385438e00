package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/clock"
	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/rules"
)

// FinishedSink receives the final record of a terminated session.
// Archive, history and rating-hook adapters implement it; the engine
// never calls back into them for anything else.
type FinishedSink interface {
	GameFinished(ctx context.Context, rec Record) error
}

type cmdKind uint8

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdMove
	cmdOfferDraw
	cmdRespondDraw
	cmdResign
	cmdTimeExpired
	cmdAbandon
	cmdSnapshot
	cmdEventsSince
)

type request struct {
	kind     cmdKind
	color    rules.Color
	move     rules.Move
	accept   bool
	sinceSeq uint64
	resp     chan response
}

type response struct {
	err    error
	events []Event
	snap   *Snapshot
}

// Session owns one match's authoritative state. All commands are
// processed one at a time by a single actor goroutine; different
// sessions run fully in parallel.
type Session struct {
	id    string
	white PlayerInfo
	black PlayerInfo
	cfg   Config

	reqs      chan *request
	done      chan struct{}
	closeOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]chan<- Event
	nextSub int

	// everything below is owned by the actor goroutine
	status     Status
	pos        *rules.Position
	moveLog    []rules.Move
	movesUCI   []string
	movesSAN   []string
	sigs       []string
	clk        *clock.Clock
	drawOffer  rules.Color
	resignedBy rules.Color
	reason     FinishReason
	winner     rules.Color
	seq        uint64
	events     []Event
	connected  [2]bool
	startedAt  time.Time
	finishedAt time.Time

	expiry  *time.Timer
	abandon *time.Timer

	sinks []FinishedSink
}

func newSession(id string, white, black PlayerInfo, cfg Config, sinks []FinishedSink) *Session {
	cfg = cfg.withDefaults()
	pos := rules.StartingPosition()
	s := &Session{
		id:         id,
		white:      white,
		black:      black,
		cfg:        cfg,
		reqs:       make(chan *request, 32),
		done:       make(chan struct{}),
		subs:       make(map[int]chan<- Event),
		status:     StatusWaiting,
		pos:        pos,
		sigs:       []string{pos.Signature()},
		clk:        clock.New(cfg.Clock),
		drawOffer:  rules.NoColor,
		resignedBy: rules.NoColor,
		winner:     rules.NoColor,
	}
	go s.run()
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) White() PlayerInfo { return s.white }
func (s *Session) Black() PlayerInfo { return s.black }

// Close stops the actor. In-flight requests receive ErrSessionClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Subscribe registers an event channel and returns its cancel func.
// Delivery is non-blocking: a receiver that cannot keep up misses
// events and must resume by sequence number.
func (s *Session) Subscribe(ch chan<- Event) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Connect binds a player seat. When both seats are present the session
// activates (from WAITING) or resumes (from PAUSED).
func (s *Session) Connect(color rules.Color) error {
	return s.do(&request{kind: cmdConnect, color: color}).err
}

// Disconnect releases a player seat; an ACTIVE session pauses.
func (s *Session) Disconnect(color rules.Color) error {
	return s.do(&request{kind: cmdDisconnect, color: color}).err
}

// MakeMove applies a move for color. Rejections carry either
// ErrIllegalCommand or a *rules.IllegalMoveError and never alter state.
func (s *Session) MakeMove(color rules.Color, m rules.Move) error {
	return s.do(&request{kind: cmdMove, color: color, move: m}).err
}

// OfferDraw records a draw offer by the side to move.
func (s *Session) OfferDraw(color rules.Color) error {
	return s.do(&request{kind: cmdOfferDraw, color: color}).err
}

// RespondDraw accepts or declines the pending offer.
func (s *Session) RespondDraw(color rules.Color, accept bool) error {
	return s.do(&request{kind: cmdRespondDraw, color: color, accept: accept}).err
}

// Resign ends the game in favor of the other side.
func (s *Session) Resign(color rules.Color) error {
	return s.do(&request{kind: cmdResign, color: color}).err
}

// Snapshot returns the full authoritative projection.
func (s *Session) Snapshot() (*Snapshot, error) {
	r := s.do(&request{kind: cmdSnapshot})
	return r.snap, r.err
}

// EventsSince returns the ordered event tail after seq for resume.
// A seq ahead of the authoritative sequence yields ErrStaleConnection.
func (s *Session) EventsSince(seq uint64) ([]Event, error) {
	r := s.do(&request{kind: cmdEventsSince, sinceSeq: seq})
	return r.events, r.err
}

func (s *Session) do(r *request) response {
	r.resp = make(chan response, 1)
	select {
	case s.reqs <- r:
	case <-s.done:
		return response{err: ErrSessionClosed}
	}
	select {
	case resp := <-r.resp:
		return resp
	case <-s.done:
		return response{err: ErrSessionClosed}
	}
}

// post enqueues an internal command from a timer goroutine.
func (s *Session) post(kind cmdKind) {
	select {
	case s.reqs <- &request{kind: kind}:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer s.stopTimers()
	for {
		select {
		case <-s.done:
			return
		case r := <-s.reqs:
			resp := s.handle(r)
			if r.resp != nil {
				r.resp <- resp
			}
		}
	}
}

func (s *Session) handle(r *request) response {
	now := time.Now()
	switch r.kind {
	case cmdConnect:
		return response{err: s.handleConnect(r.color, now)}
	case cmdDisconnect:
		return response{err: s.handleDisconnect(r.color, now)}
	case cmdMove:
		return response{err: s.handleMove(r.color, r.move, now)}
	case cmdOfferDraw:
		return response{err: s.handleOfferDraw(r.color)}
	case cmdRespondDraw:
		return response{err: s.handleRespondDraw(r.color, r.accept, now)}
	case cmdResign:
		return response{err: s.handleResign(r.color, now)}
	case cmdTimeExpired:
		s.handleTimeExpired(now)
		return response{}
	case cmdAbandon:
		s.handleAbandon(now)
		return response{}
	case cmdSnapshot:
		return response{snap: s.snapshot(now)}
	case cmdEventsSince:
		evs, err := s.eventsSince(r.sinceSeq)
		return response{events: evs, err: err}
	}
	return response{err: fmt.Errorf("%w: unknown command", ErrIllegalCommand)}
}

func (s *Session) handleConnect(color rules.Color, now time.Time) error {
	if color != rules.White && color != rules.Black {
		return fmt.Errorf("%w: invalid seat", ErrIllegalCommand)
	}
	if s.status == StatusFinished {
		return nil // late viewers still get snapshots
	}
	if s.connected[color] {
		return nil
	}
	s.connected[color] = true

	switch s.status {
	case StatusWaiting:
		if s.connected[rules.White] && s.connected[rules.Black] {
			s.status = StatusActive
			s.startedAt = now
			s.clk.Start(s.pos.Turn(), now)
			s.scheduleExpiry(now)
			s.emitStatus(now)
		}
	case StatusPaused:
		if s.connected[rules.White] && s.connected[rules.Black] {
			s.status = StatusActive
			s.stopAbandon()
			s.clk.Start(s.pos.Turn(), now)
			s.scheduleExpiry(now)
			s.emitStatus(now)
		}
	}
	return nil
}

func (s *Session) handleDisconnect(color rules.Color, now time.Time) error {
	if color != rules.White && color != rules.Black {
		return nil
	}
	if s.status == StatusFinished || !s.connected[color] {
		return nil
	}
	s.connected[color] = false

	if s.status == StatusActive {
		s.status = StatusPaused
		if s.cfg.DisconnectMode == PolicyPause {
			s.clk.Stop(now)
			s.stopExpiry()
		}
		s.startAbandon()
		s.emitStatus(now)
		obslog.L().Info("session_paused",
			zap.String("session_id", s.id),
			zap.String("color", color.String()),
		)
	}
	return nil
}

func (s *Session) handleMove(color rules.Color, m rules.Move, now time.Time) error {
	if s.status != StatusActive {
		return fmt.Errorf("%w: session is %s", ErrIllegalCommand, s.status)
	}
	// expiry wins any race with an incoming move
	if side, ok := s.clk.Expired(now); ok {
		s.finish(ReasonTimeout, side.Other(), now)
		return fmt.Errorf("%w: time expired", ErrIllegalCommand)
	}
	if color != s.pos.Turn() {
		return fmt.Errorf("%w: not your turn", ErrIllegalCommand)
	}

	next, applied, err := rules.Apply(s.pos, m)
	if err != nil {
		// an illegal attempt never touches the clock
		return err
	}

	s.pos = next
	s.moveLog = append(s.moveLog, applied)
	s.movesUCI = append(s.movesUCI, applied.UCI())
	s.movesSAN = append(s.movesSAN, applied.SAN)
	s.sigs = append(s.sigs, next.Signature())
	s.drawOffer = rules.NoColor // a pending offer lapses on any move
	s.clk.OnMoveCompleted(color, now)

	s.emit(Event{
		Type:    EventMoveApplied,
		MoveUCI: applied.UCI(),
		MoveSAN: applied.SAN,
		FEN:     next.FEN(),
		Turn:    next.Turn().String(),
		Status:  s.status,
		Clocks:  s.clockView(now),
	})

	if status := rules.TerminalStatus(next, s.sigs); status.Terminal() {
		winner := rules.NoColor
		if w, ok := rules.Winner(next, status); ok {
			winner = w
		}
		s.finish(reasonForRuleStatus(status), winner, now)
		return nil
	}

	s.scheduleExpiry(now)
	return nil
}

func (s *Session) handleOfferDraw(color rules.Color) error {
	if s.status != StatusActive {
		return fmt.Errorf("%w: session is %s", ErrIllegalCommand, s.status)
	}
	if color != s.pos.Turn() {
		return fmt.Errorf("%w: only the side to move may offer a draw", ErrIllegalCommand)
	}
	if s.drawOffer != rules.NoColor {
		return fmt.Errorf("%w: draw offer already pending", ErrIllegalCommand)
	}
	s.drawOffer = color
	s.emit(Event{Type: EventDrawOffered, By: color.String()})
	return nil
}

func (s *Session) handleRespondDraw(color rules.Color, accept bool, now time.Time) error {
	if s.status != StatusActive {
		return fmt.Errorf("%w: session is %s", ErrIllegalCommand, s.status)
	}
	if s.drawOffer == rules.NoColor {
		return fmt.Errorf("%w: no pending draw offer", ErrIllegalCommand)
	}
	if s.drawOffer == color {
		return fmt.Errorf("%w: cannot respond to own draw offer", ErrIllegalCommand)
	}
	s.drawOffer = rules.NoColor
	s.emit(Event{Type: EventDrawResolved, By: color.String(), Accepted: accept})
	if accept {
		s.finish(ReasonDrawAgreement, rules.NoColor, now)
	}
	return nil
}

func (s *Session) handleResign(color rules.Color, now time.Time) error {
	if s.status != StatusActive && s.status != StatusPaused {
		return fmt.Errorf("%w: session is %s", ErrIllegalCommand, s.status)
	}
	s.resignedBy = color
	s.finish(ReasonResignation, color.Other(), now)
	return nil
}

func (s *Session) handleTimeExpired(now time.Time) {
	if s.status != StatusActive && !(s.status == StatusPaused && s.cfg.DisconnectMode == PolicyRun) {
		return
	}
	side, ok := s.clk.Expired(now)
	if !ok {
		// a move already re-based the deadline; the reschedule happened there
		return
	}
	s.finish(ReasonTimeout, side.Other(), now)
}

func (s *Session) handleAbandon(now time.Time) {
	if s.status != StatusPaused {
		return
	}
	winner := rules.NoColor
	switch {
	case s.connected[rules.White]:
		winner = rules.White
	case s.connected[rules.Black]:
		winner = rules.Black
	}
	s.finish(ReasonAbandonment, winner, now)
}

// finish performs the single transition into FINISHED and notifies the
// attached sinks; it is idempotent.
func (s *Session) finish(reason FinishReason, winner rules.Color, now time.Time) {
	if s.status == StatusFinished {
		return
	}
	s.status = StatusFinished
	s.reason = reason
	s.winner = winner
	s.finishedAt = now
	s.clk.Stop(now)
	s.stopTimers()
	s.emitStatus(now)

	obslog.L().Info("session_finished",
		zap.String("session_id", s.id),
		zap.String("reason", string(reason)),
		zap.String("winner", winner.String()),
		zap.Int("moves", len(s.movesUCI)),
	)

	if len(s.sinks) > 0 {
		rec := s.record(now)
		sinks := s.sinks
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for _, sink := range sinks {
				if err := sink.GameFinished(ctx, rec); err != nil {
					obslog.L().Error("finished_sink_error",
						zap.String("session_id", rec.SessionID),
						zap.Error(err),
					)
				}
			}
		}()
	}
}

func (s *Session) record(now time.Time) Record {
	return Record{
		SessionID: s.id,
		White:     s.white,
		Black:     s.black,
		MovesUCI:  append([]string(nil), s.movesUCI...),
		MovesSAN:  append([]string(nil), s.movesSAN...),
		FinalFEN:  s.pos.FEN(),
		Reason:    s.reason,
		Winner:    s.winner.String(),
		Clocks:    *s.clockView(now),
		StartedAt: s.startedAt,
		EndedAt:   s.finishedAt,
	}
}

func (s *Session) emitStatus(now time.Time) {
	s.emit(Event{
		Type:   EventStatusChanged,
		Status: s.status,
		Reason: s.reason,
		Winner: s.winner.String(),
		FEN:    s.pos.FEN(),
		Turn:   s.pos.Turn().String(),
		Clocks: s.clockView(now),
	})
}

// emit assigns the next sequence number, records the event for resume,
// and fans it out without blocking the actor.
func (s *Session) emit(ev Event) {
	s.seq++
	ev.Seq = s.seq
	ev.SessionID = s.id
	s.events = append(s.events, ev)

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default: // lagging receivers catch up via resume
		}
	}
	s.subMu.Unlock()
}

func (s *Session) clockView(now time.Time) *ClockView {
	s.clk.Advance(now)
	v := &ClockView{
		WhiteMillis: s.clk.Remaining(rules.White).Milliseconds(),
		BlackMillis: s.clk.Remaining(rules.Black).Milliseconds(),
	}
	if side, ok := s.clk.Running(); ok {
		v.Running = side.String()
	}
	return v
}

func (s *Session) snapshot(now time.Time) *Snapshot {
	snap := &Snapshot{
		SessionID: s.id,
		Seq:       s.seq,
		Status:    s.status,
		White:     s.white,
		Black:     s.black,
		FEN:       s.pos.FEN(),
		Turn:      s.pos.Turn().String(),
		MovesUCI:  append([]string(nil), s.movesUCI...),
		MovesSAN:  append([]string(nil), s.movesSAN...),
		Clocks:    *s.clockView(now),
		Reason:    s.reason,
		Winner:    s.winner.String(),
		EndedAt:   s.finishedAt,
	}
	if s.drawOffer != rules.NoColor {
		snap.DrawOffer = s.drawOffer.String()
	}
	return snap
}

// eventsSince relies on sequence numbers being dense: events[i] has
// Seq i+1, so the tail after seq starts at index seq.
func (s *Session) eventsSince(seq uint64) ([]Event, error) {
	if seq > s.seq {
		return nil, fmt.Errorf("%w: acked seq %d ahead of authoritative %d", ErrStaleConnection, seq, s.seq)
	}
	tail := s.events[seq:]
	return append([]Event(nil), tail...), nil
}

func (s *Session) scheduleExpiry(now time.Time) {
	s.stopExpiry()
	dl, ok := s.clk.Deadline()
	if !ok {
		return
	}
	d := dl.Sub(now)
	if d < 0 {
		d = 0
	}
	s.expiry = time.AfterFunc(d, func() { s.post(cmdTimeExpired) })
}

func (s *Session) stopExpiry() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

func (s *Session) startAbandon() {
	s.stopAbandon()
	s.abandon = time.AfterFunc(s.cfg.AbandonGrace, func() { s.post(cmdAbandon) })
}

func (s *Session) stopAbandon() {
	if s.abandon != nil {
		s.abandon.Stop()
		s.abandon = nil
	}
}

func (s *Session) stopTimers() {
	s.stopExpiry()
	s.stopAbandon()
}
