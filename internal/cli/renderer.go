package cli

import (
	"strings"

	"github.com/castlegate/chessd/pkg/chess"
)

const (
	ansiReset     = "\033[0m"
	bgLight       = "\033[48;5;180m"
	bgDark        = "\033[48;5;94m"
	bgSelected    = "\033[48;5;220m"
	bgHighlighted = "\033[48;5;34m"
	fgWhitePiece  = "\033[38;5;15m"
	fgBlackPiece  = "\033[38;5;16m"
)

var pieceGlyphs = map[chess.PieceType]string{
	chess.King:   "K",
	chess.Queen:  "Q",
	chess.Rook:   "R",
	chess.Bishop: "B",
	chess.Knight: "N",
	chess.Pawn:   "P",
}

// Highlights marks the selected square and the legal destinations from
// it, as produced by a highlight command.
type Highlights struct {
	Selected chess.Position
	Targets  map[chess.Position]bool
}

// HighlightsFor computes the highlight set for the piece on a square.
func HighlightsFor(game *chess.Game, square chess.Position) *Highlights {
	moves := game.ValidMoves(square)
	h := &Highlights{Selected: square, Targets: make(map[chess.Position]bool, len(moves))}
	for _, m := range moves {
		h.Targets[m.End] = true
	}
	return h
}

// RenderBoard draws the board from the given perspective with rank and
// file legends. White sees rank 8 at the top, black rank 1.
func RenderBoard(b *chess.Board, perspective chess.Color, hl *Highlights) string {
	var sb strings.Builder

	ranks := []int{8, 7, 6, 5, 4, 3, 2, 1}
	files := []int{1, 2, 3, 4, 5, 6, 7, 8}
	if perspective == chess.Black {
		ranks = []int{1, 2, 3, 4, 5, 6, 7, 8}
		files = []int{8, 7, 6, 5, 4, 3, 2, 1}
	}

	writeFileLegend(&sb, files)
	for _, row := range ranks {
		sb.WriteString(rankLabel(row))
		sb.WriteByte(' ')
		for _, col := range files {
			pos := chess.Position{Row: row, Col: col}
			sb.WriteString(squareBackground(pos, hl))
			sb.WriteString(squareContents(b, pos))
			sb.WriteString(ansiReset)
		}
		sb.WriteByte(' ')
		sb.WriteString(rankLabel(row))
		sb.WriteByte('\n')
	}
	writeFileLegend(&sb, files)
	return sb.String()
}

func writeFileLegend(sb *strings.Builder, files []int) {
	sb.WriteString("  ")
	for _, col := range files {
		sb.WriteByte(' ')
		sb.WriteByte(byte('a' + col - 1))
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')
}

func rankLabel(row int) string {
	return string(byte('0' + row))
}

func squareBackground(pos chess.Position, hl *Highlights) string {
	if hl != nil {
		if pos == hl.Selected {
			return bgSelected
		}
		if hl.Targets[pos] {
			return bgHighlighted
		}
	}
	if (pos.Row+pos.Col)%2 == 0 {
		return bgDark
	}
	return bgLight
}

func squareContents(b *chess.Board, pos chess.Position) string {
	piece := b.At(pos)
	if piece.IsEmpty() {
		return "   "
	}
	fg := fgWhitePiece
	if piece.Color == chess.Black {
		fg = fgBlackPiece
	}
	return fg + " " + pieceGlyphs[piece.Type] + " "
}
