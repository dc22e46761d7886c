// Command analyze prints the minimax verdict for a tic-tac-toe position.
//
//	analyze XX./.O./...
//	analyze -to X "X.O/.X./..."
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/domain"
	"github.com/jaminalder/perfect-tic-tac-toe/internal/engine"
)

func main() {
	to := flag.String("to", "", "side to move (X or O); inferred from mark counts when empty")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-to X|O] BOARD\n\nBOARD is nine cells of X, O or '.', rows may be split by '/'.\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	out := termenv.NewOutput(os.Stdout)
	if err := analyze(out, flag.Arg(0), *to); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func analyze(out *termenv.Output, boardArg, to string) error {
	b, err := domain.ParseBoard(boardArg)
	if err != nil {
		return err
	}
	toMove := b.Turn()
	switch strings.ToUpper(to) {
	case "":
	case "X":
		toMove = domain.X
	case "O":
		toMove = domain.O
	default:
		return fmt.Errorf("%w: %q", engine.ErrInvalidSide, to)
	}

	printBoard(out, b, -1)
	if err := b.Validate(); err != nil {
		fmt.Fprintf(out, "%s %v\n", out.String("warning:").Foreground(out.Color("3")), err)
	}
	if b.IsTerminal() {
		fmt.Fprintf(out, "\noutcome: %s\n", verdict(out, b.Outcome()))
		return nil
	}

	moves, err := engine.Analyze(b, toMove)
	if err != nil {
		return err
	}
	best, err := engine.BestMove(b, toMove)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s to move, scores from O's side\n", toMove)
	for _, m := range moves {
		line := fmt.Sprintf("  cell %d (r%d c%d): %+3d", m.Index, m.Index/3, m.Index%3, m.Score)
		if m.Index == best {
			line += "  <- best"
		}
		fmt.Fprintln(out, out.String(line).Foreground(scoreColor(out, m.Score)))
	}
	fmt.Fprintln(out)
	printBoard(out, b.Place(best, toMove), best)
	return nil
}

func printBoard(out *termenv.Output, b domain.Board, highlight int) {
	for r := 0; r < 3; r++ {
		cells := make([]string, 3)
		for c := 0; c < 3; c++ {
			i := r*3 + c
			cells[c] = cellString(out, b[i], i, i == highlight)
		}
		fmt.Fprintf(out, " %s\n", strings.Join(cells, " | "))
		if r < 2 {
			fmt.Fprintln(out, "---+---+---")
		}
	}
}

func cellString(out *termenv.Output, c domain.Cell, i int, highlight bool) string {
	var s termenv.Style
	switch c {
	case domain.X:
		s = out.String("X").Foreground(out.Color("4"))
	case domain.O:
		s = out.String("O").Foreground(out.Color("1"))
	default:
		s = out.String(fmt.Sprint(i)).Faint()
	}
	if highlight {
		s = s.Bold().Underline()
	}
	return s.String()
}

func scoreColor(out *termenv.Output, score int) termenv.Color {
	switch {
	case score > engine.DrawScore:
		return out.Color("2")
	case score < engine.DrawScore:
		return out.Color("1")
	default:
		return out.Color("3")
	}
}

func verdict(out *termenv.Output, o domain.Outcome) string {
	switch o {
	case domain.XWins:
		return out.String("X wins").Foreground(out.Color("4")).Bold().String()
	case domain.OWins:
		return out.String("O wins").Foreground(out.Color("1")).Bold().String()
	case domain.Draw:
		return out.String("draw").Bold().String()
	}
	return o.String()
}
