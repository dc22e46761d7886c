package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/domain"
	"github.com/jaminalder/perfect-tic-tac-toe/internal/engine"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("not a player")
	// ErrStale means the game moved on before a scheduled engine reply ran.
	ErrStale = errors.New("game changed before engine reply")
)

// GameState is the in-memory state tracked per game. The human always plays X.
type GameState struct {
	ID    string
	Game  domain.Game
	Human string
	// Round increments on every reset.
	Round    int
	Thinking bool
	Created  time.Time
	Updated  time.Time
}

// Status is the line shown under the board.
func (gs GameState) Status() string {
	switch gs.Game.Outcome() {
	case domain.XWins:
		return "You win!"
	case domain.OWins:
		return "AI wins!"
	case domain.Draw:
		return "It's a draw!"
	}
	if gs.Thinking || gs.Game.Turn == engine.Side {
		return "AI is thinking..."
	}
	return "Your turn (X)"
}

const subscriberBuffer = 4

type subscriber struct {
	ch        chan GameState
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithThinkDelay postpones engine replies by d. Zero replies before Play returns.
func WithThinkDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.thinkDelay = d
		}
	}
}

// Service manages games and subscribers.
type Service struct {
	mu         sync.Mutex
	games      map[string]*GameState
	subs       map[string]map[*subscriber]struct{}
	log        *zap.SugaredLogger
	thinkDelay time.Duration
}

// NewService creates an empty service. Without options it logs nothing and
// the engine replies synchronously.
func NewService(opts ...Option) *Service {
	s := &Service{
		games: make(map[string]*GameState),
		subs:  make(map[string]map[*subscriber]struct{}),
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGame creates and registers a new game.
func (s *Service) CreateGame() (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newGameID()
	now := time.Now()
	gs := &GameState{ID: id, Game: domain.New(), Created: now, Updated: now}
	s.games[id] = gs
	s.log.Infow("game created", "game", id)
	cp := *gs
	return &cp, nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (*GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return nil, false
	}
	cp := *gs
	return &cp, true
}

// Join seats the player as the human (X) if the seat is free or already
// theirs; everyone else spectates and gets Empty.
func (s *Service) Join(id, playerID string) (domain.Cell, *GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return domain.Empty, nil, ErrNotFound
	}
	side := domain.Empty
	if playerID != "" && (gs.Human == "" || gs.Human == playerID) {
		if gs.Human == "" {
			s.log.Infow("human seated", "game", id, "player", playerID)
		}
		gs.Human = playerID
		side = domain.X
		gs.Updated = time.Now()
	}
	cp := *gs
	return side, &cp, nil
}

// Play applies the human move at cell and lets the engine answer. With no
// think delay the returned state already holds the reply.
func (s *Service) Play(id, playerID string, cell int) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if playerID == "" || gs.Human != playerID {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	if gs.Game.Over {
		s.mu.Unlock()
		return nil, domain.ErrGameOver
	}
	if gs.Thinking || gs.Game.Turn != domain.X {
		s.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	if err := gs.Game.PlayIndex(cell); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gs.Updated = time.Now()
	gs.Thinking = !gs.Game.Over
	cp := *gs
	s.broadcastLocked(id, cp)
	s.mu.Unlock()

	if !cp.Thinking {
		s.log.Infow("game over", "game", id, "outcome", cp.Game.Outcome().String())
		return &cp, nil
	}
	if s.thinkDelay == 0 {
		return s.reply(id, cp.Round, cp.Game.Moves)
	}
	time.AfterFunc(s.thinkDelay, func() {
		if _, err := s.reply(id, cp.Round, cp.Game.Moves); err != nil {
			s.log.Debugw("engine reply skipped", "game", id, "error", err)
		}
	})
	return &cp, nil
}

// reply plays the engine move for the position reached after moves in round.
func (s *Service) reply(id string, round, moves int) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if gs.Round != round || gs.Game.Moves != moves {
		s.mu.Unlock()
		return nil, ErrStale
	}
	board := gs.Game.Board
	s.mu.Unlock()

	res, err := engine.Search(board, engine.Side)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	gs, ok = s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if gs.Round != round || gs.Game.Moves != moves {
		s.mu.Unlock()
		return nil, ErrStale
	}
	if err := gs.Game.PlayIndex(res.Index); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gs.Thinking = false
	gs.Updated = time.Now()
	cp := *gs
	s.broadcastLocked(id, cp)
	s.mu.Unlock()

	s.log.Debugw("engine moved", "game", id, "cell", res.Index, "score", res.Score, "nodes", res.Nodes)
	if cp.Game.Over {
		s.log.Infow("game over", "game", id, "outcome", cp.Game.Outcome().String())
	}
	return &cp, nil
}

// Reset starts a new round on the same game id. Only the seated human may reset.
func (s *Service) Reset(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if playerID == "" || gs.Human != playerID {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	gs.Game.Reset()
	gs.Round++
	gs.Thinking = false
	gs.Updated = time.Now()
	cp := *gs
	s.broadcastLocked(id, cp)
	s.mu.Unlock()

	s.log.Infow("game reset", "game", id, "round", cp.Round)
	return &cp, nil
}

// Subscribe registers a subscriber for a game. Returns a channel of snapshots
// and an unsubscribe func; the channel closes when ctx ends or the subscriber
// falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan GameState, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; !ok {
		return nil, nil, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan GameState, subscriberBuffer)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(s.subs, id)
				}
			}
			sub.close()
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

// broadcastLocked fans out a snapshot without blocking; slow subscribers are
// closed and dropped. Callers hold s.mu so no send races a close.
func (s *Service) broadcastLocked(id string, gs GameState) {
	set := s.subs[id]
	dropped := 0
	for sub := range set {
		select {
		case sub.ch <- gs:
		default:
			delete(set, sub)
			sub.close()
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Warnw("dropped slow subscribers", "game", id, "count", dropped)
	}
}
