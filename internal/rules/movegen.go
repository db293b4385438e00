package rules

var promotionKinds = [4]PieceKind{Queen, Rook, Bishop, Knight}

// LegalMoves returns every legal move in the position. The result is
// deterministic: squares are scanned a1..h8 and promotion kinds keep a
// fixed order.
func LegalMoves(p *Position) []Move {
	pseudo := p.pseudoMoves()
	legal := make([]Move, 0, len(pseudo))
	for _, m := range pseudo {
		next := p.applyUnchecked(m)
		if !next.InCheck(p.turn) {
			legal = append(legal, m)
		}
	}
	return legal
}

// HasLegalMove is LegalMoves with early exit, for terminal checks.
func HasLegalMove(p *Position) bool {
	for _, m := range p.pseudoMoves() {
		next := p.applyUnchecked(m)
		if !next.InCheck(p.turn) {
			return true
		}
	}
	return false
}

func (p *Position) pseudoMoves() []Move {
	moves := make([]Move, 0, 48)
	for sq := Square(0); sq < 64; sq++ {
		pc := p.board[sq]
		if pc.IsEmpty() || pc.Color() != p.turn {
			continue
		}
		switch pc.Kind() {
		case Pawn:
			moves = p.pawnMoves(moves, sq)
		case Knight:
			moves = p.stepMoves(moves, sq, knightDeltas[:])
		case Bishop:
			moves = p.slideMoves(moves, sq, bishopDirs[:])
		case Rook:
			moves = p.slideMoves(moves, sq, rookDirs[:])
		case Queen:
			moves = p.slideMoves(moves, sq, bishopDirs[:])
			moves = p.slideMoves(moves, sq, rookDirs[:])
		case King:
			moves = p.stepMoves(moves, sq, kingDeltas[:])
			moves = p.castleMoves(moves, sq)
		}
	}
	return moves
}

func (p *Position) pawnMoves(moves []Move, from Square) []Move {
	f, r := from.File(), from.Rank()
	dir, startRank, promoRank := 1, 1, 7
	if p.turn == Black {
		dir, startRank, promoRank = -1, 6, 0
	}

	appendPawn := func(to Square, captured PieceKind, ep bool) []Move {
		m := Move{From: from, To: to, Captured: captured, EnPassant: ep}
		if to.Rank() == promoRank {
			for _, k := range promotionKinds {
				pm := m
				pm.Promotion = k
				moves = append(moves, pm)
			}
			return moves
		}
		return append(moves, m)
	}

	// pushes
	one := SquareOf(f, r+dir)
	if p.board[one].IsEmpty() {
		moves = appendPawn(one, NoKind, false)
		if r == startRank {
			two := SquareOf(f, r+2*dir)
			if p.board[two].IsEmpty() {
				moves = append(moves, Move{From: from, To: two})
			}
		}
	}

	// captures
	for _, df := range []int{-1, 1} {
		nf := f + df
		if nf < 0 || nf > 7 {
			continue
		}
		to := SquareOf(nf, r+dir)
		target := p.board[to]
		if !target.IsEmpty() && target.Color() == p.turn.Other() {
			moves = appendPawn(to, target.Kind(), false)
		} else if to == p.ep {
			moves = appendPawn(to, Pawn, true)
		}
	}
	return moves
}

func (p *Position) stepMoves(moves []Move, from Square, deltas [][2]int) []Move {
	f, r := from.File(), from.Rank()
	for _, d := range deltas {
		nf, nr := f+d[0], r+d[1]
		if nf < 0 || nf > 7 || nr < 0 || nr > 7 {
			continue
		}
		to := SquareOf(nf, nr)
		target := p.board[to]
		if target.IsEmpty() {
			moves = append(moves, Move{From: from, To: to})
		} else if target.Color() == p.turn.Other() {
			moves = append(moves, Move{From: from, To: to, Captured: target.Kind()})
		}
	}
	return moves
}

func (p *Position) slideMoves(moves []Move, from Square, dirs [][2]int) []Move {
	f, r := from.File(), from.Rank()
	for _, d := range dirs {
		nf, nr := f+d[0], r+d[1]
		for nf >= 0 && nf < 8 && nr >= 0 && nr < 8 {
			to := SquareOf(nf, nr)
			target := p.board[to]
			if target.IsEmpty() {
				moves = append(moves, Move{From: from, To: to})
			} else {
				if target.Color() == p.turn.Other() {
					moves = append(moves, Move{From: from, To: to, Captured: target.Kind()})
				}
				break
			}
			nf += d[0]
			nr += d[1]
		}
	}
	return moves
}

// castleMoves emits king-side/queen-side castling when the rights are
// intact, the path is clear, and neither the king's square nor the
// squares it crosses are attacked.
func (p *Position) castleMoves(moves []Move, from Square) []Move {
	var homeRank int
	var kside, qside CastleRights
	if p.turn == White {
		homeRank, kside, qside = 0, CastleWhiteKingside, CastleWhiteQueenside
	} else {
		homeRank, kside, qside = 7, CastleBlackKingside, CastleBlackQueenside
	}
	if from != SquareOf(4, homeRank) {
		return moves
	}
	enemy := p.turn.Other()
	if p.attacked(from, enemy) {
		return moves
	}

	if p.castling.Has(kside) {
		fSq, gSq := SquareOf(5, homeRank), SquareOf(6, homeRank)
		if p.board[fSq].IsEmpty() && p.board[gSq].IsEmpty() &&
			!p.attacked(fSq, enemy) && !p.attacked(gSq, enemy) {
			moves = append(moves, Move{From: from, To: gSq, Castle: true})
		}
	}
	if p.castling.Has(qside) {
		dSq, cSq, bSq := SquareOf(3, homeRank), SquareOf(2, homeRank), SquareOf(1, homeRank)
		if p.board[dSq].IsEmpty() && p.board[cSq].IsEmpty() && p.board[bSq].IsEmpty() &&
			!p.attacked(dSq, enemy) && !p.attacked(cSq, enemy) {
			moves = append(moves, Move{From: from, To: cSq, Castle: true})
		}
	}
	return moves
}

// applyUnchecked plays a pseudo-legal move without verifying king
// safety; LegalMoves and Apply own that check.
func (p *Position) applyUnchecked(m Move) *Position {
	next := p.clone()
	pc := next.board[m.From]

	next.board[m.To] = pc
	next.board[m.From] = 0

	if m.Promotion != NoKind {
		next.board[m.To] = MakePiece(p.turn, m.Promotion)
	}

	if m.EnPassant {
		// the captured pawn sits behind the target square
		capRank := m.To.Rank()
		if p.turn == White {
			capRank--
		} else {
			capRank++
		}
		next.board[SquareOf(m.To.File(), capRank)] = 0
	}

	if m.Castle {
		rank := m.From.Rank()
		if m.To.File() == 6 { // kingside: rook h->f
			next.board[SquareOf(5, rank)] = next.board[SquareOf(7, rank)]
			next.board[SquareOf(7, rank)] = 0
		} else { // queenside: rook a->d
			next.board[SquareOf(3, rank)] = next.board[SquareOf(0, rank)]
			next.board[SquareOf(0, rank)] = 0
		}
	}

	// en-passant target only survives for the immediate reply
	next.ep = NoSquare
	if pc.Kind() == Pawn && abs(int(m.To)-int(m.From)) == 16 {
		next.ep = Square((int(m.From) + int(m.To)) / 2)
	}

	next.castling = p.castling &^ rightsLostAt(m.From)
	next.castling &^= rightsLostAt(m.To)

	if pc.Kind() == Pawn || m.Captured != NoKind {
		next.halfmove = 0
	} else {
		next.halfmove = p.halfmove + 1
	}
	if p.turn == Black {
		next.fullmove = p.fullmove + 1
	}
	next.turn = p.turn.Other()
	return next
}

// rightsLostAt maps king/rook home squares to the castling rights that
// die when a piece moves from, or is captured on, that square.
func rightsLostAt(sq Square) CastleRights {
	switch sq {
	case SquareOf(4, 0):
		return CastleWhiteKingside | CastleWhiteQueenside
	case SquareOf(0, 0):
		return CastleWhiteQueenside
	case SquareOf(7, 0):
		return CastleWhiteKingside
	case SquareOf(4, 7):
		return CastleBlackKingside | CastleBlackQueenside
	case SquareOf(0, 7):
		return CastleBlackQueenside
	case SquareOf(7, 7):
		return CastleBlackKingside
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
