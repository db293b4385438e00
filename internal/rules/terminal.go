package rules

// TerminalStatus evaluates whether the position ends the game. history
// holds the signatures of every position reached so far in the game,
// including the current one; it feeds threefold-repetition detection.
//
// All draw conditions are treated as automatic rather than claimable.
func TerminalStatus(p *Position, history []string) Status {
	if !HasLegalMove(p) {
		if p.InCheck(p.turn) {
			return StatusCheckmate
		}
		return StatusStalemate
	}

	// fifty-move rule counts half-moves since the last capture or pawn move
	if p.halfmove >= 100 {
		return StatusFiftyMove
	}

	if len(history) >= 3 {
		sig := p.Signature()
		seen := 0
		for _, s := range history {
			if s == sig {
				seen++
			}
		}
		if seen >= 3 {
			return StatusThreefold
		}
	}

	if insufficientMaterial(p) {
		return StatusInsufficient
	}
	return StatusNone
}

// Winner returns the winning side for a checkmate status; for any other
// status there is no winner.
func Winner(p *Position, s Status) (Color, bool) {
	if s == StatusCheckmate {
		return p.turn.Other(), true
	}
	return NoColor, false
}

// insufficientMaterial covers king vs king and king plus a single minor
// piece vs king.
func insufficientMaterial(p *Position) bool {
	minors := 0
	for sq := Square(0); sq < 64; sq++ {
		switch p.board[sq].Kind() {
		case NoKind, King:
		case Knight, Bishop:
			minors++
			if minors > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
