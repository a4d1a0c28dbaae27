package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/engine"
)

// TurnTimer is the advisory countdown for the local player's turn. When it
// runs out it stands through the same path as a manual stand, so the host
// still decides whether the action counts.
type TurnTimer struct {
	limit time.Duration
	stand func(context.Context) error
	log   *zap.Logger

	mu       sync.Mutex
	turn     string
	timer    *time.Timer
	deadline time.Time
}

func NewTurnTimer(limit time.Duration, stand func(context.Context) error, log *zap.Logger) *TurnTimer {
	return &TurnTimer{limit: limit, stand: stand, log: log}
}

// Observe arms the countdown when a snapshot shows a new turn for selfID
// and disarms it once the turn is someone else's.
func (t *TurnTimer) Observe(s engine.State, selfID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := s.Game.CurrentPlayer()
	if !ok || s.Game.Phase != engine.PhasePlaying || cur.ID != selfID {
		t.disarm()
		return
	}
	turn := fmt.Sprintf("%d:%d", s.Game.Round, s.Game.CurrentPlayerIndex)
	if turn == t.turn {
		return
	}
	t.disarm()
	t.turn = turn
	t.deadline = time.Now().Add(t.limit)
	t.timer = time.AfterFunc(t.limit, func() { t.expire(turn) })
}

func (t *TurnTimer) expire(turn string) {
	t.mu.Lock()
	current := t.turn == turn
	t.mu.Unlock()
	if !current {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.stand(ctx); err != nil {
		t.log.Debug("auto stand refused", zap.Error(err))
		return
	}
	t.log.Info("turn timer ran out, stood")
}

// Remaining is the time left on the local player's turn.
func (t *TurnTimer) Remaining() (time.Duration, bool) {
	if t == nil {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return 0, false
	}
	return max(time.Until(t.deadline), 0), true
}

func (t *TurnTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarm()
}

func (t *TurnTimer) disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.turn = ""
}

func watchTurns(s Session, seconds int, log *zap.Logger) *TurnTimer {
	t := NewTurnTimer(time.Duration(seconds)*time.Second, s.Stand, log)
	updates := s.Watch()
	go func() {
		defer t.Stop()
		for u := range updates {
			t.Observe(u.State, s.Self().ID)
		}
	}()
	return t
}
