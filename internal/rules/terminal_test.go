package rules

import "testing"

func TestFoolsMate(t *testing.T) {
	p, log := playLine(t, StartingPosition(), "f2f3", "e7e5", "g2g4", "d8h4")
	if san := log[len(log)-1].SAN; san != "Qh4#" {
		t.Fatalf("SAN = %q, want Qh4#", san)
	}
	status := TerminalStatus(p, nil)
	if status != StatusCheckmate {
		t.Fatalf("status = %s, want checkmate", status)
	}
	winner, ok := Winner(p, status)
	if !ok || winner != Black {
		t.Fatalf("winner = %v/%v, want black", winner, ok)
	}
}

func TestStalemate(t *testing.T) {
	p := mustPosition(t, "k7/8/1Q6/8/8/8/8/7K b - - 0 1")
	if status := TerminalStatus(p, nil); status != StatusStalemate {
		t.Fatalf("status = %s, want stalemate", status)
	}
	if _, ok := Winner(p, StatusStalemate); ok {
		t.Fatalf("stalemate must not have a winner")
	}
}

func TestFiftyMoveRule(t *testing.T) {
	p := mustPosition(t, "8/8/8/8/8/4k3/8/4K2R w K - 100 80")
	if status := TerminalStatus(p, nil); status != StatusFiftyMove {
		t.Fatalf("status = %s, want fifty_move", status)
	}
	q := mustPosition(t, "8/8/8/8/8/4k3/8/4K2R w K - 99 80")
	if status := TerminalStatus(q, nil); status != StatusNone {
		t.Fatalf("status = %s at 99 half-moves, want none", status)
	}
}

func TestThreefoldRepetition(t *testing.T) {
	p := StartingPosition()
	history := []string{p.Signature()}

	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	var status Status
	for cycle := 0; cycle < 2; cycle++ {
		for _, uci := range shuffle {
			next, _, err := Apply(p, mustMove(t, uci))
			if err != nil {
				t.Fatalf("Apply(%s): %v", uci, err)
			}
			p = next
			history = append(history, p.Signature())
			status = TerminalStatus(p, history)
			if cycle == 0 && status != StatusNone {
				t.Fatalf("premature terminal status %s", status)
			}
		}
	}
	if status != StatusThreefold {
		t.Fatalf("status = %s, want threefold_repetition", status)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		want Status
	}{
		{"8/8/8/8/8/4k3/8/4K3 w - - 0 1", StatusInsufficient},
		{"8/8/8/8/8/4k3/8/4KB2 w - - 0 1", StatusInsufficient},
		{"8/8/8/8/8/4k3/8/3NK3 b - - 0 1", StatusInsufficient},
		{"8/8/8/8/8/4k3/8/2B1KB2 w - - 0 1", StatusNone}, // two bishops can mate
		{"8/8/8/8/8/4k3/8/4K2R w K - 0 1", StatusNone},   // rook mates
		{"8/7p/8/8/8/4k3/8/4KB2 b - - 0 1", StatusNone},  // pawn can promote
	}
	for _, tc := range cases {
		p := mustPosition(t, tc.fen)
		if got := TerminalStatus(p, nil); got != tc.want {
			t.Errorf("%s: status = %s, want %s", tc.fen, got, tc.want)
		}
	}
}
