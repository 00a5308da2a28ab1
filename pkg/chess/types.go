package chess

import (
	"fmt"
	"strings"
)

// Color identifies a side.
type Color string

const (
	White Color = "WHITE"
	Black Color = "BLACK"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceType identifies a kind of piece. The zero value means "no piece".
type PieceType string

const (
	King   PieceType = "KING"
	Queen  PieceType = "QUEEN"
	Rook   PieceType = "ROOK"
	Bishop PieceType = "BISHOP"
	Knight PieceType = "KNIGHT"
	Pawn   PieceType = "PAWN"
)

// Piece is a colored piece. The zero Piece is an empty square.
type Piece struct {
	Color Color     `json:"pieceColor"`
	Type  PieceType `json:"pieceType"`
}

func (p Piece) IsEmpty() bool { return p.Type == "" }

// Position is a board square, row 1..8 (rank) and col 1..8 (file a..h).
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) OnBoard() bool {
	return p.Row >= 1 && p.Row <= 8 && p.Col >= 1 && p.Col <= 8
}

// String renders the square in algebraic form, e.g. "e4".
func (p Position) String() string {
	if !p.OnBoard() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+p.Col-1, p.Row)
}

// ParseSquare parses an algebraic square like "e4".
func ParseSquare(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return Position{Row: int(s[1] - '0'), Col: int(s[0]-'a') + 1}, nil
}

// Move is a start/end pair with an optional promotion piece. Promotion is
// set iff the move is a pawn advance to the last rank.
type Move struct {
	Start     Position  `json:"startPosition"`
	End       Position  `json:"endPosition"`
	Promotion PieceType `json:"promotionPiece,omitempty"`
}

// Describe renders the move for notifications, e.g. "e2e4" or
// "a7a8 promote to queen".
func (m Move) Describe() string {
	s := m.Start.String() + m.End.String()
	if m.Promotion != "" {
		s += " promote to " + strings.ToLower(string(m.Promotion))
	}
	return s
}

// ParsePromotion accepts full or single-letter promotion piece names.
func ParsePromotion(s string) (PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queen", "q":
		return Queen, true
	case "rook", "r":
		return Rook, true
	case "bishop", "b":
		return Bishop, true
	case "knight", "n", "k":
		return Knight, true
	}
	return "", false
}
