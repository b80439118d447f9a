// Package board converts boards between wire and display form and decides
// whether a board is dead. The session controller never looks inside a
// board; only the front end does, through this package.
package board

import (
	"fmt"
	"strings"

	"github.com/lox/notakto/internal/api"
)

// Mark is the only symbol either player places.
const Mark = "X"

// Convert normalises the boards of a create-game response. Empty boards are
// expanded to size*size blank cells; anything else must already have that
// many cells.
func Convert(raw []api.Board, numberOfBoards, size int) ([]api.Board, error) {
	if size < 2 {
		return nil, fmt.Errorf("invalid board size %d", size)
	}
	if len(raw) != numberOfBoards {
		return nil, fmt.Errorf("expected %d boards, got %d", numberOfBoards, len(raw))
	}

	cells := size * size
	out := make([]api.Board, len(raw))
	for i, b := range raw {
		switch len(b) {
		case 0:
			out[i] = make(api.Board, cells)
		case cells:
			out[i] = append(api.Board(nil), b...)
		default:
			return nil, fmt.Errorf("board %d has %d cells, want %d", i, len(b), cells)
		}
	}
	return out, nil
}

// IsDead reports whether a board has a complete row, column or diagonal.
func IsDead(b api.Board, size int) bool {
	if len(b) != size*size {
		return false
	}
	marked := func(r, c int) bool { return b[r*size+c] == Mark }

	diag, anti := true, true
	for i := 0; i < size; i++ {
		row, col := true, true
		for j := 0; j < size; j++ {
			row = row && marked(i, j)
			col = col && marked(j, i)
		}
		if row || col {
			return true
		}
		diag = diag && marked(i, i)
		anti = anti && marked(i, size-1-i)
	}
	return diag || anti
}

// Render draws a board as a text grid with cell numbers for empty cells.
func Render(b api.Board, size int) string {
	var sb strings.Builder
	width := len(fmt.Sprint(size*size - 1))
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			idx := r*size + c
			cell := ""
			if idx < len(b) {
				cell = b[idx]
			}
			if cell == "" {
				cell = fmt.Sprintf("%*d", width, idx)
			} else {
				cell = fmt.Sprintf("%*s", width, cell)
			}
			sb.WriteString(cell)
			if c < size-1 {
				sb.WriteString(" ")
			}
		}
		if r < size-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
