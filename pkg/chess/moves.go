package chess

// Pseudo-legal move generation: movement geometry only, king safety is
// the engine's concern. En passant and castling are injected by the
// engine as well, never produced here.

var (
	kingSteps = [8][2]int{
		{1, -1}, {1, 0}, {1, 1}, {0, -1}, {0, 1}, {-1, -1}, {-1, 0}, {-1, 1},
	}
	knightSteps = [8][2]int{
		{2, -1}, {2, 1}, {1, -2}, {1, 2}, {-1, -2}, {-1, 2}, {-2, -1}, {-2, 1},
	}
	rookRays   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	queenRays  = [8][2]int{
		{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1},
	}
)

// PieceMoves returns the pseudo-legal moves for the piece on start, or
// nil when the square is empty.
func PieceMoves(b *Board, start Position) []Move {
	pc := b.At(start)
	if pc.IsEmpty() {
		return nil
	}
	switch pc.Type {
	case King:
		return stepMoves(b, start, pc.Color, kingSteps[:])
	case Knight:
		return stepMoves(b, start, pc.Color, knightSteps[:])
	case Rook:
		return rayMoves(b, start, pc.Color, rookRays[:])
	case Bishop:
		return rayMoves(b, start, pc.Color, bishopRays[:])
	case Queen:
		return rayMoves(b, start, pc.Color, queenRays[:])
	case Pawn:
		return pawnMoves(b, start, pc.Color)
	}
	return nil
}

func stepMoves(b *Board, start Position, c Color, steps [][2]int) []Move {
	var moves []Move
	for _, s := range steps {
		end := Position{Row: start.Row + s[0], Col: start.Col + s[1]}
		if !end.OnBoard() {
			continue
		}
		if target := b.At(end); target.IsEmpty() || target.Color != c {
			moves = append(moves, Move{Start: start, End: end})
		}
	}
	return moves
}

func rayMoves(b *Board, start Position, c Color, rays [][2]int) []Move {
	var moves []Move
	for _, r := range rays {
		end := Position{Row: start.Row + r[0], Col: start.Col + r[1]}
		for end.OnBoard() {
			target := b.At(end)
			if target.IsEmpty() {
				moves = append(moves, Move{Start: start, End: end})
			} else {
				if target.Color != c {
					moves = append(moves, Move{Start: start, End: end})
				}
				break
			}
			end = Position{Row: end.Row + r[0], Col: end.Col + r[1]}
		}
	}
	return moves
}

func pawnMoves(b *Board, start Position, c Color) []Move {
	dir, homeRow := 1, 2
	if c == Black {
		dir, homeRow = -1, 7
	}
	var moves []Move

	one := Position{Row: start.Row + dir, Col: start.Col}
	if one.OnBoard() && b.At(one).IsEmpty() {
		moves = appendPawnMove(moves, start, one, c)
		two := Position{Row: start.Row + 2*dir, Col: start.Col}
		if start.Row == homeRow && b.At(two).IsEmpty() {
			moves = appendPawnMove(moves, start, two, c)
		}
	}
	for _, dc := range [2]int{-1, 1} {
		end := Position{Row: start.Row + dir, Col: start.Col + dc}
		if !end.OnBoard() {
			continue
		}
		if target := b.At(end); !target.IsEmpty() && target.Color != c {
			moves = appendPawnMove(moves, start, end, c)
		}
	}
	return moves
}

// appendPawnMove expands a pawn candidate into four promotion moves when
// the destination is the last rank.
func appendPawnMove(moves []Move, start, end Position, c Color) []Move {
	lastRank := 8
	if c == Black {
		lastRank = 1
	}
	if end.Row != lastRank {
		return append(moves, Move{Start: start, End: end})
	}
	for _, promo := range [4]PieceType{Queen, Rook, Bishop, Knight} {
		moves = append(moves, Move{Start: start, End: end, Promotion: promo})
	}
	return moves
}
