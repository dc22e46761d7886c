package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/app"
	"github.com/jaminalder/perfect-tic-tac-toe/internal/domain"
	"github.com/jaminalder/perfect-tic-tac-toe/internal/engine"
)

const maxBodyBytes = 1 << 12

type errorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome,omitempty"`
}

type moveRequest struct {
	// Board uses "X", "O" and "" like the browser client.
	Board  []string `json:"board"`
	Player string   `json:"player,omitempty"`
}

type scoredMove struct {
	Index int `json:"index"`
	Score int `json:"score"`
}

type moveResponse struct {
	Move   int    `json:"move"`
	Score  int    `json:"score"`
	Player string `json:"player"`
	// Outcome is the board status after Move.
	Outcome string       `json:"outcome"`
	Nodes   int          `json:"nodes"`
	Moves   []scoredMove `json:"moves"`
}

type outcomeResponse struct {
	Board      string `json:"board"`
	Outcome    string `json:"outcome"`
	Winner     string `json:"winner"`
	Turn       string `json:"turn,omitempty"`
	LegalMoves []int  `json:"legal_moves"`
}

// snapshot is the JSON form of a game pushed over the websocket.
type snapshot struct {
	ID       string    `json:"id"`
	Board    [9]string `json:"board"`
	Turn     string    `json:"turn"`
	Outcome  string    `json:"outcome"`
	Status   string    `json:"status"`
	Thinking bool      `json:"thinking"`
	Moves    int       `json:"moves"`
	Round    int       `json:"round"`
}

func newSnapshot(gs app.GameState) snapshot {
	s := snapshot{
		ID:       gs.ID,
		Turn:     gs.Game.Turn.String(),
		Outcome:  gs.Game.Outcome().String(),
		Status:   gs.Status(),
		Thinking: gs.Thinking,
		Moves:    gs.Game.Moves,
		Round:    gs.Round,
	}
	for i, c := range gs.Game.Board {
		s.Board[i] = c.String()
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func parseCell(s string) (domain.Cell, error) {
	switch s {
	case "":
		return domain.Empty, nil
	case "X", "x":
		return domain.X, nil
	case "O", "o":
		return domain.O, nil
	}
	return domain.Empty, fmt.Errorf("%w: unknown cell %q", domain.ErrInvalidBoard, s)
}

func decodeMoveRequest(r io.Reader) (domain.Board, domain.Cell, error) {
	var req moveRequest
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return domain.Board{}, domain.Empty, fmt.Errorf("invalid json: %w", err)
	}
	var b domain.Board
	if len(req.Board) != len(b) {
		return b, domain.Empty, fmt.Errorf("%w: got %d cells, want %d", domain.ErrInvalidBoard, len(req.Board), len(b))
	}
	for i, s := range req.Board {
		c, err := parseCell(s)
		if err != nil {
			return b, domain.Empty, err
		}
		b[i] = c
	}
	if err := b.Validate(); err != nil {
		return b, domain.Empty, err
	}
	toMove := b.Turn()
	if req.Player != "" {
		p, err := parseCell(req.Player)
		if err != nil || p == domain.Empty {
			return b, domain.Empty, fmt.Errorf("%w: unknown player %q", engine.ErrInvalidSide, req.Player)
		}
		if p != toMove {
			return b, domain.Empty, fmt.Errorf("%w: %s to move, not %s", domain.ErrInvalidBoard, toMove, p)
		}
	}
	return b, toMove, nil
}

// apiMove picks the engine move for a posted board.
func (h *handlers) apiMove(w http.ResponseWriter, r *http.Request) {
	b, toMove, err := decodeMoveRequest(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if b.IsTerminal() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: engine.ErrTerminal.Error(), Outcome: b.Outcome().String()})
		return
	}

	res, err := engine.Search(b, toMove)
	if err != nil {
		h.log.Errorw("search", "board", b.String(), "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrTerminal) {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	analysis, err := engine.Analyze(b, toMove)
	if err != nil {
		h.log.Errorw("analyze", "board", b.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	moves := make([]scoredMove, len(analysis))
	for i, m := range analysis {
		moves[i] = scoredMove{Index: m.Index, Score: m.Score}
	}
	h.log.Debugw("api move", "board", b.String(), "player", toMove.String(), "move", res.Index, "score", res.Score, "nodes", res.Nodes)
	writeJSON(w, http.StatusOK, moveResponse{
		Move:    res.Index,
		Score:   res.Score,
		Player:  toMove.String(),
		Outcome: b.Place(res.Index, toMove).Outcome().String(),
		Nodes:   res.Nodes,
		Moves:   moves,
	})
}

// apiOutcome reports the status of a board given as ?board=XX.O.....
func (h *handlers) apiOutcome(w http.ResponseWriter, r *http.Request) {
	b, err := domain.ParseBoard(r.URL.Query().Get("board"))
	if err == nil {
		err = b.Validate()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp := outcomeResponse{
		Board:      b.String(),
		Outcome:    b.Outcome().String(),
		Winner:     b.Winner().String(),
		LegalMoves: b.LegalMoves(),
	}
	if !b.IsTerminal() {
		resp.Turn = b.Turn().String()
	}
	writeJSON(w, http.StatusOK, resp)
}
