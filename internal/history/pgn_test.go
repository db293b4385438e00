package history

import (
	"strings"
	"testing"
	"time"

	"github.com/castlebay/arena/internal/session"
)

func TestResultToPGN(t *testing.T) {
	cases := []struct {
		winner string
		reason session.FinishReason
		want   string
	}{
		{"white", session.ReasonCheckmate, "1-0"},
		{"black", session.ReasonTimeout, "0-1"},
		{"", session.ReasonStalemate, "1/2-1/2"},
		{"", session.ReasonDrawAgreement, "1/2-1/2"},
		{"", session.ReasonAbandonment, "*"},
	}
	for _, tc := range cases {
		if got := resultToPGN(tc.winner, tc.reason); got != tc.want {
			t.Errorf("resultToPGN(%q, %s) = %q, want %q", tc.winner, tc.reason, got, tc.want)
		}
	}
}

func TestBuildPGN(t *testing.T) {
	rec := &session.Record{
		SessionID: "s-1",
		White:     session.PlayerInfo{ID: "w1", Name: `Alice "The Rook"`},
		Black:     session.PlayerInfo{ID: "b1", Name: "Bob"},
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		Reason:    session.ReasonCheckmate,
		Winner:    "black",
		EndedAt:   time.Date(2026, 4, 1, 12, 2, 0, 0, time.UTC),
	}
	pgn := buildPGN(rec, resultToPGN(rec.Winner, rec.Reason))

	for _, want := range []string{
		`[Date "2026.04.01"]`,
		`[White "Alice 'The Rook'"]`, // quotes sanitized
		`[Black "Bob"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Errorf("pgn missing %q:\n%s", want, pgn)
		}
	}
}

func TestBuildPGNOddPlyCount(t *testing.T) {
	rec := &session.Record{
		White:    session.PlayerInfo{Name: "Alice"},
		Black:    session.PlayerInfo{Name: "Bob"},
		MovesSAN: []string{"e4", "e5", "Nf3"},
		Winner:   "white",
		Reason:   session.ReasonResignation,
		EndedAt:  time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	pgn := buildPGN(rec, "1-0")
	if !strings.Contains(pgn, "1. e4 e5 2. Nf3 1-0") {
		t.Fatalf("pgn movetext wrong:\n%s", pgn)
	}
}
