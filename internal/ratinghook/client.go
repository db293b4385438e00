// Package ratinghook notifies an external rating service when a game
// finishes. Delivery is best-effort with bounded retries; the session
// engine never blocks on it.
package ratinghook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/session"
)

type Client struct {
	url  string
	http *fasthttp.Client

	timeout  time.Duration
	retryMax int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) {
		if max > 0 {
			c.retryMax = max
		}
	}
}

func NewClient(webhookURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, errors.New("webhook url is required")
	}
	c := &Client{
		url:      strings.TrimSpace(webhookURL),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout:  10 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// payload is the webhook body; field names are part of the contract
// with the rating service.
type payload struct {
	SessionID  string    `json:"session_id"`
	WhiteID    string    `json:"white_id"`
	BlackID    string    `json:"black_id"`
	Winner     string    `json:"winner,omitempty"`
	Reason     string    `json:"reason"`
	Plies      int       `json:"plies"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// GameFinished posts the result. It is the session.FinishedSink
// implementation.
func (c *Client) GameFinished(ctx context.Context, rec session.Record) error {
	body, err := json.Marshal(payload{
		SessionID:  rec.SessionID,
		WhiteID:    rec.White.ID,
		BlackID:    rec.Black.ID,
		Winner:     rec.Winner,
		Reason:     string(rec.Reason),
		Plies:      len(rec.MovesUCI),
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.EndedAt,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.url)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	var lastErr error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		err := c.http.DoDeadline(req, resp, c.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			lastErr = fmt.Errorf("rating webhook status=%d", status)
			if !retryableStatus(status) {
				return lastErr
			}
		} else {
			lastErr = fmt.Errorf("rating webhook: %w", err)
		}

		if attempt == c.retryMax {
			break
		}
		obslog.L().Warn("ratinghook_retry",
			zap.String("session_id", rec.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func retryableStatus(status int) bool {
	return status == fasthttp.StatusTooManyRequests || status >= 500
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 3*time.Second {
		d = 3 * time.Second
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
