package chess

import (
	"encoding/json"
	"errors"
	"sort"
)

var (
	ErrInvalidMove = errors.New("invalid move")
	ErrWrongTurn   = errors.New("not your turn")
	ErrGameOver    = errors.New("game is over")
)

// Turn is the side to move, or the terminal latch.
type Turn string

const (
	TurnWhite    Turn = "WHITE"
	TurnBlack    Turn = "BLACK"
	TurnGameOver Turn = "GAME_OVER"
)

// Game is the rules engine state: the board, the side to move, the last
// successful move (kept for en passant) and the set of squares a piece
// has ever moved from (kept for castling rights).
type Game struct {
	board     Board
	turn      Color
	over      bool
	lastMove  *Move
	lastMover Piece
	moved     map[Position]struct{}
}

// NewGame returns a game in the standard opening position, white to move.
func NewGame() *Game {
	g := &Game{turn: White, moved: make(map[Position]struct{})}
	g.board.Reset()
	return g
}

// Turn returns WHITE, BLACK, or GAME_OVER once the game has ended.
func (g *Game) Turn() Turn {
	if g.over {
		return TurnGameOver
	}
	return Turn(g.turn)
}

// TurnColor returns the side to move, regardless of the terminal latch.
func (g *Game) TurnColor() Color { return g.turn }

func (g *Game) Over() bool { return g.over }

// EndGame latches the game as finished; no further move succeeds.
func (g *Game) EndGame() { g.over = true }

// Board returns the live board. Callers must not mutate it directly.
func (g *Game) Board() *Board { return &g.board }

// LastMove returns the most recent successful move, or nil.
func (g *Game) LastMove() *Move {
	if g.lastMove == nil {
		return nil
	}
	mv := *g.lastMove
	return &mv
}

// Clone returns an independent copy of the game.
func (g *Game) Clone() *Game {
	cp := &Game{
		board:     g.board,
		turn:      g.turn,
		over:      g.over,
		lastMover: g.lastMover,
		moved:     make(map[Position]struct{}, len(g.moved)),
	}
	if g.lastMove != nil {
		mv := *g.lastMove
		cp.lastMove = &mv
	}
	for p := range g.moved {
		cp.moved[p] = struct{}{}
	}
	return cp
}

// SetBoard replaces the position and clears the move history and the
// terminal latch. The side to move is unchanged.
func (g *Game) SetBoard(b *Board) {
	g.board = *b
	g.lastMove = nil
	g.lastMover = Piece{}
	g.moved = make(map[Position]struct{})
	g.over = false
}

// SetTurn overrides the side to move.
func (g *Game) SetTurn(c Color) {
	g.turn = c
	g.over = false
}

// ValidMoves returns the legal moves for the piece on start, or nil when
// the square is empty. The board is left untouched.
func (g *Game) ValidMoves(start Position) []Move {
	pc := g.board.At(start)
	if pc.IsEmpty() {
		return nil
	}
	moves := PieceMoves(&g.board, start)
	if pc.Type == Pawn {
		if ep, ok := g.enPassantMove(start, pc.Color); ok {
			moves = append(moves, ep)
		}
	}
	if pc.Type == King {
		for _, kingside := range [2]bool{true, false} {
			if target, ok := g.castleTarget(pc.Color, kingside); ok {
				moves = append(moves, Move{Start: start, End: target})
			}
		}
	}

	valid := moves[:0]
	for _, m := range moves {
		b := g.board
		applyOn(&b, m, g.lastMove)
		if !inCheckOn(&b, pc.Color) {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return []Move{}
	}
	return valid
}

// MakeMove validates and applies a move, handling promotion, en passant
// and castling. On success the turn flips, or latches to GAME_OVER when
// the move delivers checkmate or stalemate.
func (g *Game) MakeMove(m Move) error {
	if g.over {
		return ErrGameOver
	}
	pc := g.board.At(m.Start)
	if pc.IsEmpty() {
		return ErrInvalidMove
	}
	if pc.Color != g.turn {
		return ErrWrongTurn
	}
	// A king is never capturable; refusing here keeps both kings on the
	// board no matter what the caller submits.
	if g.board.At(m.End).Type == King {
		return ErrInvalidMove
	}
	if !containsMove(g.ValidMoves(m.Start), m) {
		return ErrInvalidMove
	}

	applyOn(&g.board, m, g.lastMove)
	g.moved[m.Start] = struct{}{}
	mv := m
	g.lastMove = &mv
	g.lastMover = pc
	g.turn = g.turn.Opponent()
	if g.InCheckmate(g.turn) || g.InStalemate(g.turn) {
		g.over = true
	}
	return nil
}

// InCheck reports whether the king of the given color is attacked.
func (g *Game) InCheck(c Color) bool {
	return inCheckOn(&g.board, c)
}

// InCheckmate reports check with no legal move for any piece of c.
func (g *Game) InCheckmate(c Color) bool {
	return g.InCheck(c) && !g.hasAnyValidMove(c)
}

// InStalemate reports that c is to move, not in check, and has no legal
// move.
func (g *Game) InStalemate(c Color) bool {
	return g.turn == c && !g.InCheck(c) && !g.hasAnyValidMove(c)
}

func (g *Game) hasAnyValidMove(c Color) bool {
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			p := Position{Row: row, Col: col}
			if g.board.At(p).Color == c && !g.board.At(p).IsEmpty() {
				if len(g.ValidMoves(p)) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// enPassantMove returns the en passant capture for the pawn on start if
// the opposing pawn just made an adjacent two-square advance.
func (g *Game) enPassantMove(start Position, c Color) (Move, bool) {
	if g.lastMove == nil || g.lastMover.Type != Pawn || g.lastMover.Color == c {
		return Move{}, false
	}
	last := *g.lastMove
	if last.End.Col != last.Start.Col || abs(last.End.Row-last.Start.Row) != 2 {
		return Move{}, false
	}
	captureRow := 5
	dir := 1
	if c == Black {
		captureRow = 4
		dir = -1
	}
	if start.Row != captureRow || last.End.Row != start.Row || abs(last.End.Col-start.Col) != 1 {
		return Move{}, false
	}
	return Move{Start: start, End: Position{Row: start.Row + dir, Col: last.End.Col}}, true
}

// castleTarget returns the king's castling destination when every gating
// condition holds: home squares, untouched king and rook, empty lane, no
// current check, and no check on the traversed squares.
func (g *Game) castleTarget(c Color, kingside bool) (Position, bool) {
	homeRow := 1
	if c == Black {
		homeRow = 8
	}
	kingPos := Position{Row: homeRow, Col: 5}
	corner := Position{Row: homeRow, Col: 1}
	between := []int{2, 3, 4}
	path := []int{4, 3}
	if kingside {
		corner.Col = 8
		between = []int{6, 7}
		path = []int{6, 7}
	}
	if g.board.At(kingPos) != (Piece{Color: c, Type: King}) ||
		g.board.At(corner) != (Piece{Color: c, Type: Rook}) {
		return Position{}, false
	}
	if _, ok := g.moved[kingPos]; ok {
		return Position{}, false
	}
	if _, ok := g.moved[corner]; ok {
		return Position{}, false
	}
	for _, col := range between {
		if !g.board.At(Position{Row: homeRow, Col: col}).IsEmpty() {
			return Position{}, false
		}
	}
	if g.InCheck(c) {
		return Position{}, false
	}
	for _, col := range path {
		b := g.board
		b.Set(Position{Row: homeRow, Col: col}, Piece{Color: c, Type: King})
		b.Set(kingPos, Piece{})
		if inCheckOn(&b, c) {
			return Position{}, false
		}
	}
	target := Position{Row: homeRow, Col: 3}
	if kingside {
		target.Col = 7
	}
	return target, true
}

// applyOn executes a move on a board, including the en passant capture
// removal and the castling rook hop. lastMove is the previous move of
// the game, needed to locate the en passant victim.
func applyOn(b *Board, m Move, lastMove *Move) {
	pc := b.At(m.Start)
	placed := pc
	if m.Promotion != "" {
		placed = Piece{Color: pc.Color, Type: m.Promotion}
	}
	enPassant := pc.Type == Pawn && m.Start.Col != m.End.Col && b.At(m.End).IsEmpty()
	b.Set(m.End, placed)
	b.Set(m.Start, Piece{})
	if enPassant && lastMove != nil {
		b.Set(lastMove.End, Piece{})
	}
	if pc.Type == King && abs(m.End.Col-m.Start.Col) == 2 {
		row := m.Start.Row
		if m.End.Col == 7 {
			b.Set(Position{Row: row, Col: 6}, b.At(Position{Row: row, Col: 8}))
			b.Set(Position{Row: row, Col: 8}, Piece{})
		} else {
			b.Set(Position{Row: row, Col: 4}, b.At(Position{Row: row, Col: 1}))
			b.Set(Position{Row: row, Col: 1}, Piece{})
		}
	}
}

// inCheckOn reports whether the king of c is in the attack set of the
// opposing side's pseudo-legal moves on the given board.
func inCheckOn(b *Board, c Color) bool {
	kingPos, ok := b.Find(c, King)
	if !ok {
		return false
	}
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			from := Position{Row: row, Col: col}
			pc := b.At(from)
			if pc.IsEmpty() || pc.Color == c {
				continue
			}
			for _, m := range PieceMoves(b, from) {
				if m.End == kingPos {
					return true
				}
			}
		}
	}
	return false
}

func containsMove(moves []Move, m Move) bool {
	for _, v := range moves {
		if v == m {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type gameJSON struct {
	Turn      Turn       `json:"turn"`
	Board     *Board     `json:"board"`
	LastMove  *Move      `json:"lastMove,omitempty"`
	LastMover *Piece     `json:"lastMover,omitempty"`
	Moved     []Position `json:"moved,omitempty"`
}

func (g *Game) MarshalJSON() ([]byte, error) {
	moved := make([]Position, 0, len(g.moved))
	for p := range g.moved {
		moved = append(moved, p)
	}
	sort.Slice(moved, func(i, j int) bool {
		if moved[i].Row != moved[j].Row {
			return moved[i].Row < moved[j].Row
		}
		return moved[i].Col < moved[j].Col
	})
	var mover *Piece
	if !g.lastMover.IsEmpty() {
		cp := g.lastMover
		mover = &cp
	}
	return json.Marshal(gameJSON{
		Turn:      g.Turn(),
		Board:     &g.board,
		LastMove:  g.lastMove,
		LastMover: mover,
		Moved:     moved,
	})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var raw gameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.turn = White
	g.over = false
	switch raw.Turn {
	case TurnBlack:
		g.turn = Black
	case TurnGameOver:
		g.over = true
	}
	if raw.Board != nil {
		g.board = *raw.Board
	} else {
		g.board = Board{}
	}
	g.lastMove = raw.LastMove
	g.lastMover = Piece{}
	if raw.LastMover != nil {
		g.lastMover = *raw.LastMover
	}
	g.moved = make(map[Position]struct{}, len(raw.Moved))
	for _, p := range raw.Moved {
		g.moved[p] = struct{}{}
	}
	return nil
}
