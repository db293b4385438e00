// Package clock implements a two-sided chess clock with increment on
// move. Time is tracked as an absolute deadline reconciled on Advance,
// so correctness never depends on the delivery of periodic ticks.
package clock

import (
	"time"

	"github.com/castlebay/arena/internal/rules"
)

// Config is the time control for one game.
type Config struct {
	Initial   time.Duration
	Increment time.Duration
}

// Clock tracks remaining time for both sides. At most one side runs at
// a time; the session state machine owns start/stop discipline. Clock
// is not safe for concurrent use; the session actor serializes access.
type Clock struct {
	remaining [2]time.Duration
	increment time.Duration
	running   rules.Color // rules.NoColor when stopped
	startedAt time.Time
}

func New(cfg Config) *Clock {
	return &Clock{
		remaining: [2]time.Duration{cfg.Initial, cfg.Initial},
		increment: cfg.Increment,
		running:   rules.NoColor,
	}
}

// Remaining returns the side's banked time as of the last reconcile.
// Call Advance first for a live reading.
func (c *Clock) Remaining(side rules.Color) time.Duration {
	return c.remaining[side]
}

// Running returns the side whose clock is counting down, if any.
func (c *Clock) Running() (rules.Color, bool) {
	return c.running, c.running != rules.NoColor
}

// Start begins the countdown for side. Starting an already running
// clock re-bases it on now.
func (c *Clock) Start(side rules.Color, now time.Time) {
	c.Advance(now)
	c.running = side
	c.startedAt = now
}

// Stop reconciles elapsed time and halts both sides.
func (c *Clock) Stop(now time.Time) {
	c.Advance(now)
	c.running = rules.NoColor
}

// Advance folds wall time elapsed since the last reconcile into the
// running side's balance, floored at zero.
func (c *Clock) Advance(now time.Time) {
	if c.running == rules.NoColor {
		return
	}
	elapsed := now.Sub(c.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	c.remaining[c.running] -= elapsed
	if c.remaining[c.running] < 0 {
		c.remaining[c.running] = 0
	}
	c.startedAt = now
}

// OnMoveCompleted credits the mover's increment and hands the clock to
// the other side. Only called after the rules engine accepted the move;
// an illegal attempt never touches the clock.
func (c *Clock) OnMoveCompleted(mover rules.Color, now time.Time) {
	c.Advance(now)
	if c.remaining[mover] > 0 {
		c.remaining[mover] += c.increment
	}
	c.running = mover.Other()
	c.startedAt = now
}

// Expired reports the side that ran out of time, if any.
func (c *Clock) Expired(now time.Time) (rules.Color, bool) {
	c.Advance(now)
	for _, side := range [2]rules.Color{rules.White, rules.Black} {
		if c.remaining[side] <= 0 {
			return side, true
		}
	}
	return rules.NoColor, false
}

// Deadline returns the instant at which the running side flags. Used by
// the session actor to schedule its expiry check; not meaningful while
// stopped.
func (c *Clock) Deadline() (time.Time, bool) {
	if c.running == rules.NoColor {
		return time.Time{}, false
	}
	return c.startedAt.Add(c.remaining[c.running]), true
}
