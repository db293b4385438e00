package rules

import (
	"fmt"
	"strings"
)

// Color identifies a chess side.
type Color uint8

const (
	White Color = iota
	Black
	NoColor
)

func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

// PieceKind is the piece type independent of color.
type PieceKind uint8

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]string{"", "", "N", "B", "R", "Q", "K"}

// Letter returns the SAN letter of the kind; empty for pawns.
func (k PieceKind) Letter() string {
	if int(k) < len(kindLetters) {
		return kindLetters[k]
	}
	return ""
}

// ParsePromotion maps a promotion token ("q", "r", "b", "n") to a kind.
func ParsePromotion(s string) (PieceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q":
		return Queen, true
	case "r":
		return Rook, true
	case "b":
		return Bishop, true
	case "n":
		return Knight, true
	case "":
		return NoKind, true
	}
	return NoKind, false
}

func promotionToken(k PieceKind) string {
	switch k {
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	}
	return ""
}

// Piece packs a color and kind into one byte; the zero value is an
// empty square.
type Piece uint8

func MakePiece(c Color, k PieceKind) Piece {
	return Piece(uint8(k) | uint8(c)<<3)
}

func (p Piece) Kind() PieceKind { return PieceKind(p & 7) }

func (p Piece) Color() Color {
	if p == 0 {
		return NoColor
	}
	return Color(p >> 3)
}

func (p Piece) IsEmpty() bool { return p == 0 }

var fenPieceLetters = map[Piece]byte{
	MakePiece(White, Pawn): 'P', MakePiece(White, Knight): 'N',
	MakePiece(White, Bishop): 'B', MakePiece(White, Rook): 'R',
	MakePiece(White, Queen): 'Q', MakePiece(White, King): 'K',
	MakePiece(Black, Pawn): 'p', MakePiece(Black, Knight): 'n',
	MakePiece(Black, Bishop): 'b', MakePiece(Black, Rook): 'r',
	MakePiece(Black, Queen): 'q', MakePiece(Black, King): 'k',
}

// Square indexes the board from a1=0 to h8=63.
type Square int8

const NoSquare Square = -1

func SquareOf(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) Valid() bool { return s >= 0 && s < 64 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// ParseSquare converts algebraic coordinates like "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	return SquareOf(int(s[0]-'a'), int(s[1]-'1')), nil
}

// CastleRights is a bit set of the four castling permissions.
type CastleRights uint8

const (
	CastleWhiteKingside CastleRights = 1 << iota
	CastleWhiteQueenside
	CastleBlackKingside
	CastleBlackQueenside
	CastleAll = CastleWhiteKingside | CastleWhiteQueenside | CastleBlackKingside | CastleBlackQueenside
)

func (cr CastleRights) Has(r CastleRights) bool { return cr&r != 0 }

func (cr CastleRights) String() string {
	if cr == 0 {
		return "-"
	}
	var b strings.Builder
	if cr.Has(CastleWhiteKingside) {
		b.WriteByte('K')
	}
	if cr.Has(CastleWhiteQueenside) {
		b.WriteByte('Q')
	}
	if cr.Has(CastleBlackKingside) {
		b.WriteByte('k')
	}
	if cr.Has(CastleBlackQueenside) {
		b.WriteByte('q')
	}
	return b.String()
}

// Move is one half-move plus the metadata needed to undo or notate it.
// Captured, flags and Prev* fields are filled in by move generation and
// Apply; callers constructing a candidate move only set From, To and
// Promotion.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind

	Captured     PieceKind
	EnPassant    bool
	Castle       bool
	PrevRights   CastleRights
	PrevEP       Square
	PrevHalfmove int

	SAN string
}

// UCI renders the move in coordinate notation (e.g. "e7e8q").
func (m Move) UCI() string {
	return m.From.String() + m.To.String() + promotionToken(m.Promotion)
}

func (m Move) matches(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// ParseUCI parses coordinate notation into a candidate move.
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("invalid uci move: %q", s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, err
	}
	promo := NoKind
	if len(s) == 5 {
		p, ok := ParsePromotion(s[4:])
		if !ok || p == NoKind {
			return Move{}, fmt.Errorf("invalid promotion in %q", s)
		}
		promo = p
	}
	return Move{From: from, To: to, Promotion: promo}, nil
}

// MoveReason tags why a move was rejected.
type MoveReason string

const (
	ReasonNoPiece      MoveReason = "no_piece"
	ReasonWrongTurn    MoveReason = "wrong_turn"
	ReasonBadPattern   MoveReason = "bad_pattern"
	ReasonBlockedPath  MoveReason = "blocked_path"
	ReasonLeavesKing   MoveReason = "leaves_king_in_check"
	ReasonBadPromotion MoveReason = "bad_promotion"
)

// IllegalMoveError reports a rejected move with a specific reason tag.
type IllegalMoveError struct {
	Reason MoveReason
	From   Square
	To     Square
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s%s: %s", e.From, e.To, e.Reason)
}

// Status is the terminal evaluation of a position.
type Status uint8

const (
	StatusNone Status = iota
	StatusCheckmate
	StatusStalemate
	StatusFiftyMove
	StatusThreefold
	StatusInsufficient
)

func (s Status) Terminal() bool { return s != StatusNone }

// Draw reports whether the status ends the game without a winner.
func (s Status) Draw() bool {
	switch s {
	case StatusStalemate, StatusFiftyMove, StatusThreefold, StatusInsufficient:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	case StatusFiftyMove:
		return "fifty_move"
	case StatusThreefold:
		return "threefold_repetition"
	case StatusInsufficient:
		return "insufficient_material"
	default:
		return "none"
	}
}
