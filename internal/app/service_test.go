package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/domain"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)...)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestService(t)
	gs, err := s.CreateGame()
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if gs.ID == "" {
		t.Fatalf("expected non-empty game ID")
	}
	if gs.Game.Turn != domain.X {
		t.Fatalf("expected initial turn X")
	}
	if gs.Created.IsZero() || gs.Updated.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
	if gs.Status() != "Your turn (X)" {
		t.Fatalf("unexpected status %q", gs.Status())
	}
	got, ok := s.Get(gs.ID)
	if !ok || got.ID != gs.ID {
		t.Fatalf("Get should find created game")
	}
	if _, ok := s.Get("nope"); ok {
		t.Fatalf("Get should miss unknown id")
	}
}

func TestJoinSeatsHumanAndSpectators(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()

	side, _, err := s.Join(gs.ID, "p1")
	if err != nil || side != domain.X {
		t.Fatalf("p1 should claim X, got %v, err=%v", side, err)
	}
	side, _, err = s.Join(gs.ID, "p1")
	if err != nil || side != domain.X {
		t.Fatalf("p1 rejoin should keep X, got %v, err=%v", side, err)
	}
	side, _, err = s.Join(gs.ID, "p2")
	if err != nil || side != domain.Empty {
		t.Fatalf("p2 should spectate (Empty), got %v, err=%v", side, err)
	}
	if _, _, err := s.Join("missing", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlayAppliesEngineReply(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")

	st, err := s.Play(gs.ID, "p1", 4)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if st.Game.Board[4] != domain.X {
		t.Fatalf("expected X at center, got %v", st.Game.Board[4])
	}
	if st.Game.Board[0] != domain.O {
		t.Fatalf("expected engine corner reply at 0, board %v", st.Game.Board)
	}
	if st.Game.Moves != 2 || st.Game.Turn != domain.X || st.Thinking {
		t.Fatalf("unexpected state after reply: moves=%d turn=%v thinking=%v", st.Game.Moves, st.Game.Turn, st.Thinking)
	}
}

func TestPlayEnforcesSeatAndCells(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")
	s.Join(gs.ID, "p2")

	if _, err := s.Play(gs.ID, "p2", 0); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer for spectator, got %v", err)
	}
	if _, err := s.Play(gs.ID, "", 0); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer for anonymous, got %v", err)
	}
	if _, err := s.Play("missing", "p1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Play(gs.ID, "p1", 9); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	st, err := s.Play(gs.ID, "p1", 4)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	reply := st.Game.Board.LegalMoves()
	if len(reply) != 7 {
		t.Fatalf("expected two marks on the board, got %v", st.Game.Board)
	}
	if _, err := s.Play(gs.ID, "p1", 4); !errors.Is(err, domain.ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
}

func TestHumanCannotBeatEngine(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")

	// human always takes the lowest free cell
	var st *GameState
	for {
		cur, _ := s.Get(gs.ID)
		if cur.Game.Over {
			st = cur
			break
		}
		if _, err := s.Play(gs.ID, "p1", cur.Game.Board.LegalMoves()[0]); err != nil {
			t.Fatalf("play failed: %v", err)
		}
	}
	if st.Game.Outcome() == domain.XWins {
		t.Fatalf("engine lost: %v", st.Game.Board)
	}
	if st.Status() != "AI wins!" && st.Status() != "It's a draw!" {
		t.Fatalf("unexpected final status %q", st.Status())
	}
	if _, err := s.Play(gs.ID, "p1", 0); !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestResetStartsNewRound(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")
	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if _, err := s.Reset(gs.ID, "p2"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
	st, err := s.Reset(gs.ID, "p1")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if st.Game != domain.New() || st.Round != 1 {
		t.Fatalf("expected fresh game in round 1, got %+v", st)
	}
}

func TestThinkDelayDefersReply(t *testing.T) {
	// the timer goroutine logs after the last snapshot is read
	s := newTestService(t, WithThinkDelay(20*time.Millisecond), WithLogger(zap.NewNop().Sugar()))
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, unsub, err := s.Subscribe(ctx, gs.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	st, err := s.Play(gs.ID, "p1", 4)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !st.Thinking || st.Game.Moves != 1 {
		t.Fatalf("expected engine to be thinking after one move, got %+v", st)
	}
	if st.Status() != "AI is thinking..." {
		t.Fatalf("unexpected status %q", st.Status())
	}
	if _, err := s.Play(gs.ID, "p1", 8); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn while thinking, got %v", err)
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed unexpectedly")
			}
			if snap.Game.Moves < 2 {
				continue
			}
			if snap.Game.Board[0] != domain.O || snap.Thinking {
				t.Fatalf("expected delayed reply at 0, got %+v", snap)
			}
			return
		case <-ctx.Done():
			t.Fatalf("timed out waiting for engine reply")
		}
	}
}

func TestResetCancelsPendingReply(t *testing.T) {
	s := newTestService(t, WithThinkDelay(time.Hour))
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")
	st, err := s.Play(gs.ID, "p1", 4)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if _, err := s.Reset(gs.ID, "p1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := s.Play(gs.ID, "p1", 4); err != nil {
		t.Fatalf("play after reset failed: %v", err)
	}
	// the reply scheduled in round 0 must not land in round 1
	if _, err := s.reply(gs.ID, st.Round, st.Game.Moves); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	ch, unsub, err := s.Subscribe(ctx, gs.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	for want := 1; want <= 2; want++ {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed unexpectedly")
			}
			if snap.Game.Moves != want {
				t.Fatalf("expected snapshot after %d moves, got %d", want, snap.Game.Moves)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for broadcast")
		}
	}
}

func TestSubscribeUnknownGame(t *testing.T) {
	s := newTestService(t)
	if _, _, err := s.Subscribe(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDropSlowSubscriber(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	s.Join(gs.ID, "p1")

	// Slow subscriber: never read
	ctxSlow, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	slowCh, _, err := s.Subscribe(ctxSlow, gs.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// each play broadcasts the human move and the engine reply
	for i := 0; i < 3; i++ {
		cur, _ := s.Get(gs.ID)
		if cur.Game.Over {
			break
		}
		if _, err := s.Play(gs.ID, "p1", cur.Game.Board.LegalMoves()[0]); err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
	}

	// buffered snapshots drain, then the channel is closed
	n := 0
	for range slowCh {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("expected %d buffered snapshots before drop, got %d", subscriberBuffer, n)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := s.Subscribe(ctx, gs.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}
