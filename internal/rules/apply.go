package rules

// Apply validates m against the position and returns the resulting
// position plus the completed move record (undo metadata and SAN filled
// in). The input position is never mutated. Identical (position, move)
// inputs always produce identical results.
func Apply(p *Position, m Move) (*Position, Move, error) {
	if !m.From.Valid() || !m.To.Valid() {
		return nil, Move{}, &IllegalMoveError{Reason: ReasonBadPattern, From: m.From, To: m.To}
	}
	pc := p.board[m.From]
	if pc.IsEmpty() {
		return nil, Move{}, &IllegalMoveError{Reason: ReasonNoPiece, From: m.From, To: m.To}
	}
	if pc.Color() != p.turn {
		return nil, Move{}, &IllegalMoveError{Reason: ReasonWrongTurn, From: m.From, To: m.To}
	}

	legal := LegalMoves(p)
	for _, lm := range legal {
		if !lm.matches(m) {
			continue
		}
		lm.PrevRights = p.castling
		lm.PrevEP = p.ep
		lm.PrevHalfmove = p.halfmove
		next := p.applyUnchecked(lm)
		lm.SAN = encodeSAN(p, lm, legal, next)
		return next, lm, nil
	}

	return nil, Move{}, &IllegalMoveError{Reason: p.diagnose(m, legal), From: m.From, To: m.To}
}

// diagnose picks the most specific rejection reason for a move that is
// not in the legal set. The mover's piece and turn were already checked.
func (p *Position) diagnose(m Move, legal []Move) MoveReason {
	// same squares legal under a different promotion choice
	for _, lm := range legal {
		if lm.From == m.From && lm.To == m.To {
			return ReasonBadPromotion
		}
	}
	// promotion piece supplied where none is possible
	if m.Promotion != NoKind {
		return ReasonBadPromotion
	}
	// geometrically generated but filtered out by king safety
	for _, pm := range p.pseudoMoves() {
		if pm.From == m.From && pm.To == m.To {
			return ReasonLeavesKing
		}
	}
	return p.diagnosePath(m.From, m.To)
}

// diagnosePath distinguishes a blocked path from a movement pattern the
// piece simply does not have.
func (p *Position) diagnosePath(from, to Square) MoveReason {
	pc := p.board[from]
	df := to.File() - from.File()
	dr := to.Rank() - from.Rank()

	onRay := func(dirs [][2]int) bool {
		for _, d := range dirs {
			f, r := from.File()+d[0], from.Rank()+d[1]
			for f >= 0 && f < 8 && r >= 0 && r < 8 {
				if SquareOf(f, r) == to {
					return true
				}
				f += d[0]
				r += d[1]
			}
		}
		return false
	}

	pattern := false
	switch pc.Kind() {
	case Knight:
		pattern = abs(df)*abs(dr) == 2
	case King:
		pattern = abs(df) <= 1 && abs(dr) <= 1 && (df != 0 || dr != 0)
	case Bishop:
		pattern = onRay(bishopDirs[:])
	case Rook:
		pattern = onRay(rookDirs[:])
	case Queen:
		pattern = onRay(bishopDirs[:]) || onRay(rookDirs[:])
	case Pawn:
		dir, startRank := 1, 1
		if pc.Color() == Black {
			dir, startRank = -1, 6
		}
		switch {
		case df == 0 && dr == dir:
			pattern = true
		case df == 0 && dr == 2*dir && from.Rank() == startRank:
			pattern = true
		case abs(df) == 1 && dr == dir:
			// diagonal step with nothing to capture is a pattern
			// violation, not a blockage
			return ReasonBadPattern
		}
	}
	if !pattern {
		return ReasonBadPattern
	}
	return ReasonBlockedPath
}

// encodeSAN renders standard algebraic notation for a legal move, with
// disambiguation and check/mate marks. legal must be the legal move set
// of p and next the position after m.
func encodeSAN(p *Position, m Move, legal []Move, next *Position) string {
	var san string
	switch {
	case m.Castle && m.To.File() == 6:
		san = "O-O"
	case m.Castle:
		san = "O-O-O"
	default:
		pc := p.board[m.From]
		if pc.Kind() == Pawn {
			if m.Captured != NoKind {
				san = string(byte('a'+m.From.File())) + "x"
			}
			san += m.To.String()
			if m.Promotion != NoKind {
				san += "=" + m.Promotion.Letter()
			}
		} else {
			san = pc.Kind().Letter() + disambiguate(p, m, legal)
			if m.Captured != NoKind {
				san += "x"
			}
			san += m.To.String()
		}
	}

	if next.InCheck(next.turn) {
		if HasLegalMove(next) {
			san += "+"
		} else {
			san += "#"
		}
	}
	return san
}

func disambiguate(p *Position, m Move, legal []Move) string {
	kind := p.board[m.From].Kind()
	sameFile, sameRank, others := false, false, false
	for _, lm := range legal {
		if lm.From == m.From || lm.To != m.To || p.board[lm.From].Kind() != kind {
			continue
		}
		others = true
		if lm.From.File() == m.From.File() {
			sameFile = true
		}
		if lm.From.Rank() == m.From.Rank() {
			sameRank = true
		}
	}
	switch {
	case !others:
		return ""
	case !sameFile:
		return string(byte('a' + m.From.File()))
	case !sameRank:
		return string(byte('1' + m.From.Rank()))
	default:
		return m.From.String()
	}
}
