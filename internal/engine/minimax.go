// Package engine picks perfect-play moves by exhaustive minimax.
//
// Scores are always from the engine's side (domain.O): the engine maximizes,
// the human (domain.X) minimizes. Every recursive frame works on its own copy
// of the board, so callers never observe intermediate positions and
// concurrent searches need no coordination.
package engine

import (
	"errors"
	"fmt"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/domain"
)

// Side is the mark the engine plays.
const Side = domain.O

// Terminal scores.
const (
	WinScore  = 10
	DrawScore = 0
	LossScore = -10
)

// Errors returned when a caller breaks the search precondition.
var (
	ErrTerminal    = errors.New("position is terminal")
	ErrInvalidSide = errors.New("side to move must be X or O")
)

// Move is a candidate cell and its minimax score.
type Move struct {
	Index int
	Score int
}

// Result is the outcome of a root search.
type Result struct {
	Move
	// Nodes counts visited positions, root included.
	Nodes int
}

// BestMove returns the optimal cell for toMove. Among equally scored moves the
// lowest index wins.
func BestMove(b domain.Board, toMove domain.Cell) (int, error) {
	res, err := Search(b, toMove)
	if err != nil {
		return -1, err
	}
	return res.Index, nil
}

// Search runs the full minimax from b and reports the chosen move.
func Search(b domain.Board, toMove domain.Cell) (Result, error) {
	if err := checkRoot(b, toMove); err != nil {
		return Result{}, err
	}
	var s searcher
	m := s.minimax(b, toMove)
	return Result{Move: m, Nodes: s.nodes}, nil
}

// Analyze scores every legal move for toMove, in ascending index order.
func Analyze(b domain.Board, toMove domain.Cell) ([]Move, error) {
	if err := checkRoot(b, toMove); err != nil {
		return nil, err
	}
	var s searcher
	legal := b.LegalMoves()
	moves := make([]Move, 0, len(legal))
	for _, i := range legal {
		moves = append(moves, Move{Index: i, Score: s.minimax(b.Place(i, toMove), toMove.Opponent()).Score})
	}
	return moves, nil
}

// Score returns the minimax value of b with toMove to play. Terminal boards
// score directly.
func Score(b domain.Board, toMove domain.Cell) (int, error) {
	if err := checkSide(toMove); err != nil {
		return 0, err
	}
	var s searcher
	return s.minimax(b, toMove).Score, nil
}

func checkSide(toMove domain.Cell) error {
	if toMove != domain.X && toMove != domain.O {
		return fmt.Errorf("%w: got %d", ErrInvalidSide, toMove)
	}
	return nil
}

func checkRoot(b domain.Board, toMove domain.Cell) error {
	if err := checkSide(toMove); err != nil {
		return err
	}
	if b.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, b.Outcome())
	}
	return nil
}

// terminalScore scores a finished board. ok is false while play continues.
func terminalScore(b domain.Board) (score int, ok bool) {
	switch b.Winner() {
	case Side:
		return WinScore, true
	case Side.Opponent():
		return LossScore, true
	}
	if b.IsDraw() {
		return DrawScore, true
	}
	return 0, false
}

type searcher struct {
	nodes int
}

// minimax returns the best move for toMove; Index is -1 on terminal boards.
func (s *searcher) minimax(b domain.Board, toMove domain.Cell) Move {
	s.nodes++
	if score, ok := terminalScore(b); ok {
		return Move{Index: -1, Score: score}
	}

	maximize := toMove == Side
	best := Move{Index: -1, Score: WinScore + 1}
	if maximize {
		best.Score = LossScore - 1
	}
	for _, i := range b.LegalMoves() {
		score := s.minimax(b.Place(i, toMove), toMove.Opponent()).Score
		// strict comparison keeps the first of equal moves
		if (maximize && score > best.Score) || (!maximize && score < best.Score) {
			best = Move{Index: i, Score: score}
		}
	}
	return best
}
