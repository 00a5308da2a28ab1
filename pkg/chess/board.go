package chess

import "encoding/json"

// Board is an 8x8 grid of pieces. The zero Board is empty; Reset places
// the standard opening array. Mutation goes through Set only.
type Board struct {
	squares [8][8]Piece
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Reset places the standard opening position.
func (b *Board) Reset() {
	b.squares = [8][8]Piece{}
	for col := 1; col <= 8; col++ {
		b.Set(Position{Row: 1, Col: col}, Piece{Color: White, Type: backRank[col-1]})
		b.Set(Position{Row: 2, Col: col}, Piece{Color: White, Type: Pawn})
		b.Set(Position{Row: 7, Col: col}, Piece{Color: Black, Type: Pawn})
		b.Set(Position{Row: 8, Col: col}, Piece{Color: Black, Type: backRank[col-1]})
	}
}

// At returns the piece on the given square, or the empty Piece.
func (b *Board) At(p Position) Piece {
	if !p.OnBoard() {
		return Piece{}
	}
	return b.squares[p.Row-1][p.Col-1]
}

// Set places a piece on the given square. The empty Piece clears it.
func (b *Board) Set(p Position, pc Piece) {
	if !p.OnBoard() {
		return
	}
	b.squares[p.Row-1][p.Col-1] = pc
}

// Equal compares cell by cell.
func (b *Board) Equal(other *Board) bool {
	if other == nil {
		return false
	}
	return b.squares == other.squares
}

// Find returns the square holding the first piece of the given color and
// type, scanning rank 1 to 8.
func (b *Board) Find(c Color, t PieceType) (Position, bool) {
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			p := Position{Row: row, Col: col}
			if pc := b.At(p); pc.Color == c && pc.Type == t {
				return p, true
			}
		}
	}
	return Position{}, false
}

// MarshalJSON encodes the board as eight ranks of eight cells, rank 1
// first; empty squares are null.
func (b *Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*Piece, 8)
	for r := 0; r < 8; r++ {
		rows[r] = make([]*Piece, 8)
		for c := 0; c < 8; c++ {
			if pc := b.squares[r][c]; !pc.IsEmpty() {
				cp := pc
				rows[r][c] = &cp
			}
		}
	}
	return json.Marshal(rows)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	b.squares = [8][8]Piece{}
	for r := 0; r < len(rows) && r < 8; r++ {
		for c := 0; c < len(rows[r]) && c < 8; c++ {
			if rows[r][c] != nil {
				b.squares[r][c] = *rows[r][c]
			}
		}
	}
	return nil
}
