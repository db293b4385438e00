package rules

import (
	"errors"
	"testing"
)

func mustMove(t *testing.T, uci string) Move {
	t.Helper()
	m, err := ParseUCI(uci)
	if err != nil {
		t.Fatalf("ParseUCI(%q): %v", uci, err)
	}
	return m
}

func playLine(t *testing.T, p *Position, ucis ...string) (*Position, []Move) {
	t.Helper()
	log := make([]Move, 0, len(ucis))
	for _, uci := range ucis {
		next, applied, err := Apply(p, mustMove(t, uci))
		if err != nil {
			t.Fatalf("Apply(%s) from %s: %v", uci, p.FEN(), err)
		}
		p = next
		log = append(log, applied)
	}
	return p, log
}

func TestApplyPawnDoublePush(t *testing.T) {
	p, _ := playLine(t, StartingPosition(), "e2e4")
	want := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR b KQkq e3 0 1"
	if got := p.FEN(); got != want {
		t.Fatalf("after e2e4: got %q, want %q", got, want)
	}
}

func TestApplyRejectionReasons(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		uci  string
		want MoveReason
	}{
		{"empty origin", StartingFEN, "e4e5", ReasonNoPiece},
		{"opponent piece", StartingFEN, "e7e5", ReasonWrongTurn},
		{"queen through pawn", StartingFEN, "d1d3", ReasonBlockedPath},
		{"knight straight", StartingFEN, "b1b3", ReasonBadPattern},
		{"pawn diagonal to empty", StartingFEN, "e2f3", ReasonBadPattern},
		{"pinned bishop", "4k3/8/8/8/7b/8/5B2/4K3 w - - 0 1", "f2a7", ReasonLeavesKing},
		{"king into check", "4k3/8/8/8/8/8/4r3/4K3 w - - 0 1", "e1d2", ReasonLeavesKing},
		{"promotion omitted", "4k3/P7/8/8/8/8/8/4K3 w - - 0 1", "a7a8", ReasonBadPromotion},
		{"promotion mid-board", StartingFEN, "e2e4q", ReasonBadPromotion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPosition(t, tc.fen)
			_, _, err := Apply(p, mustMove(t, tc.uci))
			var illegal *IllegalMoveError
			if !errors.As(err, &illegal) {
				t.Fatalf("expected IllegalMoveError, got %v", err)
			}
			if illegal.Reason != tc.want {
				t.Fatalf("reason = %s, want %s", illegal.Reason, tc.want)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	p := StartingPosition()
	before := p.FEN()
	if _, _, err := Apply(p, mustMove(t, "g1f3")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := p.FEN(); got != before {
		t.Fatalf("input position mutated: %q -> %q", before, got)
	}
}

func TestApplyEnPassant(t *testing.T) {
	p, log := playLine(t, StartingPosition(), "e2e4", "g8f6", "e4e5", "d7d5", "e5d6")
	last := log[len(log)-1]
	if !last.EnPassant || last.Captured != Pawn {
		t.Fatalf("expected en passant capture, got %+v", last)
	}
	if pc := p.PieceAt(mustSquare(t, "d5")); !pc.IsEmpty() {
		t.Fatalf("captured pawn still on d5")
	}
	if last.SAN != "exd6" {
		t.Fatalf("SAN = %q, want exd6", last.SAN)
	}
}

func TestApplyEnPassantExpires(t *testing.T) {
	// the ep target only survives for the immediate reply
	p, _ := playLine(t, StartingPosition(), "e2e4", "g8f6", "e4e5", "d7d5", "b1c3", "f6g8")
	_, _, err := Apply(p, mustMove(t, "e5d6"))
	if err == nil {
		t.Fatalf("stale en passant capture accepted")
	}
}

func TestApplyCastling(t *testing.T) {
	p, log := playLine(t, StartingPosition(), "e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1")
	last := log[len(log)-1]
	if !last.Castle || last.SAN != "O-O" {
		t.Fatalf("expected O-O, got %+v", last)
	}
	if pc := p.PieceAt(mustSquare(t, "f1")); pc.Kind() != Rook {
		t.Fatalf("rook not moved to f1")
	}
	if p.CastlingRights().Has(CastleWhiteKingside) || p.CastlingRights().Has(CastleWhiteQueenside) {
		t.Fatalf("white castling rights survived castling: %s", p.CastlingRights())
	}
	if !p.CastlingRights().Has(CastleBlackKingside) {
		t.Fatalf("black castling rights lost")
	}
}

func TestApplyPromotion(t *testing.T) {
	p := mustPosition(t, "4k3/P7/8/8/8/8/8/4K3 w - - 0 1")
	next, applied, err := Apply(p, mustMove(t, "a7a8q"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if pc := next.PieceAt(mustSquare(t, "a8")); pc.Kind() != Queen || pc.Color() != White {
		t.Fatalf("a8 = %v, want white queen", pc)
	}
	if applied.SAN != "a8=Q+" {
		t.Fatalf("SAN = %q, want a8=Q+", applied.SAN)
	}
}

func TestSANDisambiguation(t *testing.T) {
	// two knights can reach d2; the mover's file disambiguates
	p := mustPosition(t, "4k3/8/8/8/8/5N2/8/1N2K3 w - - 0 1")
	_, applied, err := Apply(p, mustMove(t, "b1d2"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.SAN != "Nbd2" {
		t.Fatalf("SAN = %q, want Nbd2", applied.SAN)
	}
}

// Replaying the recorded move log from the initial position must
// reproduce the final position exactly.
func TestReplayDeterminism(t *testing.T) {
	line := []string{
		"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1", "f6e4",
		"f1e1", "d7d5", "c4d5", "d8d5", "b1c3", "d5a5", "c3e4", "c8e6",
	}
	final, log := playLine(t, StartingPosition(), line...)

	replayed := StartingPosition()
	for _, m := range log {
		next, _, err := Apply(replayed, Move{From: m.From, To: m.To, Promotion: m.Promotion})
		if err != nil {
			t.Fatalf("replay %s: %v", m.UCI(), err)
		}
		replayed = next
	}
	if replayed.FEN() != final.FEN() {
		t.Fatalf("replay diverged:\n  got  %s\n  want %s", replayed.FEN(), final.FEN())
	}
}

func mustSquare(t *testing.T, s string) Square {
	t.Helper()
	sq, err := ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return sq
}
