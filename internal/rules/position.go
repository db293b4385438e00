package rules

import "strings"

// Position is an immutable snapshot of the board and move-relevant
// rights. Apply never mutates a Position in place; it returns a copy.
type Position struct {
	board    [64]Piece
	turn     Color
	castling CastleRights
	ep       Square
	halfmove int
	fullmove int
}

// StartingPosition returns the standard initial position.
func StartingPosition() *Position {
	p, err := ParseFEN(StartingFEN)
	if err != nil {
		panic(err) // the constant is valid
	}
	return p
}

func (p *Position) Turn() Color { return p.turn }

func (p *Position) PieceAt(sq Square) Piece { return p.board[sq] }

func (p *Position) CastlingRights() CastleRights { return p.castling }

func (p *Position) EnPassant() Square { return p.ep }

func (p *Position) HalfmoveClock() int { return p.halfmove }

func (p *Position) FullmoveNumber() int { return p.fullmove }

func (p *Position) clone() *Position {
	c := *p
	return &c
}

// Signature identifies the position for repetition detection: piece
// placement, side to move and castling/en-passant rights.
func (p *Position) Signature() string {
	fields := strings.SplitN(p.FEN(), " ", 5)
	return strings.Join(fields[:4], " ")
}

func (p *Position) kingSquare(c Color) Square {
	king := MakePiece(c, King)
	for sq := Square(0); sq < 64; sq++ {
		if p.board[sq] == king {
			return sq
		}
	}
	return NoSquare
}

// InCheck reports whether the given side's king is attacked.
func (p *Position) InCheck(c Color) bool {
	k := p.kingSquare(c)
	if !k.Valid() {
		return false
	}
	return p.attacked(k, c.Other())
}

var (
	knightDeltas = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = [8][2]int{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}
	bishopDirs   = [4][2]int{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
	rookDirs     = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
)

// attacked reports whether sq is attacked by any piece of color by.
func (p *Position) attacked(sq Square, by Color) bool {
	f, r := sq.File(), sq.Rank()

	// pawns attack diagonally toward their advance direction
	dir := 1
	if by == Black {
		dir = -1
	}
	for _, df := range []int{-1, 1} {
		pf, pr := f+df, r-dir
		if pf >= 0 && pf < 8 && pr >= 0 && pr < 8 {
			if p.board[SquareOf(pf, pr)] == MakePiece(by, Pawn) {
				return true
			}
		}
	}

	for _, d := range knightDeltas {
		nf, nr := f+d[0], r+d[1]
		if nf >= 0 && nf < 8 && nr >= 0 && nr < 8 {
			if p.board[SquareOf(nf, nr)] == MakePiece(by, Knight) {
				return true
			}
		}
	}

	for _, d := range kingDeltas {
		nf, nr := f+d[0], r+d[1]
		if nf >= 0 && nf < 8 && nr >= 0 && nr < 8 {
			if p.board[SquareOf(nf, nr)] == MakePiece(by, King) {
				return true
			}
		}
	}

	if p.rayAttacked(f, r, by, bishopDirs[:], Bishop) {
		return true
	}
	return p.rayAttacked(f, r, by, rookDirs[:], Rook)
}

func (p *Position) rayAttacked(f, r int, by Color, dirs [][2]int, slider PieceKind) bool {
	for _, d := range dirs {
		nf, nr := f+d[0], r+d[1]
		for nf >= 0 && nf < 8 && nr >= 0 && nr < 8 {
			pc := p.board[SquareOf(nf, nr)]
			if !pc.IsEmpty() {
				if pc.Color() == by && (pc.Kind() == slider || pc.Kind() == Queen) {
					return true
				}
				break
			}
			nf += d[0]
			nr += d[1]
		}
	}
	return false
}
