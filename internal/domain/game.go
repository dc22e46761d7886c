package domain

import "errors"

// Game holds the current state of a Tic-Tac-Toe match.
type Game struct {
	Board  Board
	Turn   Cell
	Winner Cell
	Over   bool
	Moves  int
}

// Errors returned by domain operations.
var (
	ErrOutOfBounds = errors.New("out of bounds")
	ErrOccupied    = errors.New("cell occupied")
	ErrGameOver    = errors.New("game over")
)

// New returns a new game with X to move.
func New() Game {
	return Game{Turn: X}
}

// Reset clears the board and hands the first move back to X.
func (g *Game) Reset() {
	*g = New()
}

// Outcome reports the result recomputed from the board.
func (g *Game) Outcome() Outcome {
	return g.Board.Outcome()
}

// Play attempts to play the current turn at row r, column c (0..2).
func (g *Game) Play(r, c int) error {
	if g.Over {
		return ErrGameOver
	}
	if r < 0 || r > 2 || c < 0 || c > 2 {
		return ErrOutOfBounds
	}
	return g.PlayIndex(r*3 + c)
}

// PlayIndex plays the current turn at cell i (0..8).
func (g *Game) PlayIndex(i int) error {
	if g.Over {
		return ErrGameOver
	}
	if i < 0 || i >= len(g.Board) {
		return ErrOutOfBounds
	}
	if g.Board[i] != Empty {
		return ErrOccupied
	}

	g.Board[i] = g.Turn
	g.Moves++

	switch g.Board.Outcome() {
	case XWins, OWins:
		g.Winner = g.Turn
		g.Over = true
		return nil
	case Draw:
		g.Winner = Empty
		g.Over = true
		return nil
	}

	g.Turn = g.Turn.Opponent()
	return nil
}
