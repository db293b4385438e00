package ratinghook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castlebay/arena/internal/session"
)

func sampleRecord() session.Record {
	return session.Record{
		SessionID: "s-1",
		White:     session.PlayerInfo{ID: "w1"},
		Black:     session.PlayerInfo{ID: "b1"},
		MovesUCI:  []string{"e2e4", "e7e5"},
		Reason:    session.ReasonResignation,
		Winner:    "white",
		StartedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 4, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestGameFinishedPostsPayload(t *testing.T) {
	got := make(chan payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.GameFinished(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("GameFinished: %v", err)
	}

	p := <-got
	if p.SessionID != "s-1" || p.Winner != "white" || p.Plies != 2 || p.Reason != "resignation" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestGameFinishedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetry(3))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.GameFinished(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("GameFinished after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestGameFinishedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.GameFinished(context.Background(), sampleRecord()); err == nil {
		t.Fatalf("expected error on 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
