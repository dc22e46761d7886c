package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X          // human, moves first
	O          // engine
)

// Opponent returns the other side. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Board is a fixed 3x3 board stored row-major.
type Board [9]Cell

// Lines are the win patterns: rows, then columns, then diagonals.
var Lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Outcome is the state of a board as seen by the status line.
type Outcome uint8

const (
	InProgress Outcome = iota
	XWins
	OWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case XWins:
		return "x_wins"
	case OWins:
		return "o_wins"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// ErrInvalidBoard is returned for boards no alternating game can reach.
var ErrInvalidBoard = errors.New("invalid board")

// Winner returns the owner of the first fully owned line, or Empty.
func (b Board) Winner() Cell {
	for _, ln := range Lines {
		c := b[ln[0]]
		if c != Empty && b[ln[1]] == c && b[ln[2]] == c {
			return c
		}
	}
	return Empty
}

// IsDraw reports whether every cell is taken. Check Winner first.
func (b Board) IsDraw() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

func (b Board) IsTerminal() bool {
	return b.Winner() != Empty || b.IsDraw()
}

// LegalMoves returns the empty cells in ascending order.
func (b Board) LegalMoves() []int {
	moves := make([]int, 0, len(b))
	for i, c := range b {
		if c == Empty {
			moves = append(moves, i)
		}
	}
	return moves
}

// Outcome derives the game result; a winner takes precedence over a full board.
func (b Board) Outcome() Outcome {
	switch b.Winner() {
	case X:
		return XWins
	case O:
		return OWins
	}
	if b.IsDraw() {
		return Draw
	}
	return InProgress
}

// Count returns how many cells hold c.
func (b Board) Count(c Cell) int {
	n := 0
	for _, v := range b {
		if v == c {
			n++
		}
	}
	return n
}

// Turn returns the side to move assuming X opened.
func (b Board) Turn() Cell {
	if b.Count(X) == b.Count(O) {
		return X
	}
	return O
}

// Place returns a copy of b with c at i. The receiver is left untouched.
func (b Board) Place(i int, c Cell) Board {
	b[i] = c
	return b
}

// Validate checks that b is reachable by alternating legal moves from an empty board.
func (b Board) Validate() error {
	for i, c := range b {
		if c > O {
			return fmt.Errorf("%w: cell %d holds %d", ErrInvalidBoard, i, c)
		}
	}
	diff := b.Count(X) - b.Count(O)
	if diff != 0 && diff != 1 {
		return fmt.Errorf("%w: X has %d marks, O has %d", ErrInvalidBoard, b.Count(X), b.Count(O))
	}
	var xLine, oLine bool
	for _, ln := range Lines {
		switch c := b[ln[0]]; {
		case c == Empty || b[ln[1]] != c || b[ln[2]] != c:
		case c == X:
			xLine = true
		default:
			oLine = true
		}
	}
	switch {
	case xLine && oLine:
		return fmt.Errorf("%w: both sides own a line", ErrInvalidBoard)
	case xLine && diff != 1:
		return fmt.Errorf("%w: X won but O moved after", ErrInvalidBoard)
	case oLine && diff != 0:
		return fmt.Errorf("%w: O won but X moved after", ErrInvalidBoard)
	}
	return nil
}

// ParseBoard reads nine cells written as X, O, or one of ". - _" for empty.
// Whitespace and '/' row separators are ignored.
func ParseBoard(s string) (Board, error) {
	var b Board
	n := 0
	for _, r := range s {
		var c Cell
		switch r {
		case ' ', '\t', '\n', '/', '|':
			continue
		case 'X', 'x':
			c = X
		case 'O', 'o':
			c = O
		case '.', '-', '_':
			c = Empty
		default:
			return Board{}, fmt.Errorf("%w: unexpected %q", ErrInvalidBoard, r)
		}
		if n == len(b) {
			return Board{}, fmt.Errorf("%w: more than %d cells", ErrInvalidBoard, len(b))
		}
		b[n] = c
		n++
	}
	if n != len(b) {
		return Board{}, fmt.Errorf("%w: got %d cells, want %d", ErrInvalidBoard, n, len(b))
	}
	return b, nil
}

// String renders the board in ParseBoard notation, rows separated by '/'.
func (b Board) String() string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 && i%3 == 0 {
			sb.WriteByte('/')
		}
		if c == Empty {
			sb.WriteByte('.')
		} else {
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}
