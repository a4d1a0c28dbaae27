package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/rules"
)

var (
	ErrHostUnavailable = errors.New("host unavailable")
	ErrKicked          = errors.New("kicked from the room")
	ErrNotHost         = errors.New("only the host can do that")
	ErrJoinRejected    = errors.New("host did not seat us")
	ErrEnded           = errors.New("session ended")
)

// Session is what a UI drives, whether this process hosts the room or
// joined someone else's.
type Session interface {
	Self() engine.Profile
	Code() string
	IsHost() bool
	State() engine.State
	Watch() <-chan Update
	TurnTimer() *TurnTimer

	SetReady(ctx context.Context, ready bool) error
	PlaceBet(ctx context.Context, amount int) error
	SendChat(ctx context.Context, text string) error
	DrawCard(ctx context.Context) error
	Stand(ctx context.Context) error
	StartGame(ctx context.Context) error
	NewRound(ctx context.Context) error
	Kick(ctx context.Context, playerID string) error
	LeaveRoom(ctx context.Context) error

	// Done is closed when the session is over; Err says why.
	Done() <-chan struct{}
	Err() error
}

// Update is one observed room snapshot.
type Update struct {
	Version int
	State   engine.State
	Results []rules.Settlement
	Notice  string // last rejection, when the host sends those
}

type Config struct {
	Rules          engine.Rules
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	InboxSize      int
	OutboxSize     int
	RejectNotices  bool
	TurnSeconds    int
	// Deck supplies each round's shuffled deck; nil shuffles per round.
	Deck func() []rules.Card
}

func DefaultConfig() Config {
	return Config{
		Rules:          engine.DefaultRules(),
		ConnectTimeout: 15 * time.Second,
		WriteTimeout:   3 * time.Second,
		InboxSize:      64,
		OutboxSize:     16,
		TurnSeconds:    30,
	}
}

// NewProfile makes a fresh local identity.
func NewProfile(name, avatar string) engine.Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	return engine.Profile{ID: uuid.NewString(), Name: name, Avatar: avatar}
}

func newChat(self engine.Profile, text string) engine.ChatMessage {
	return engine.ChatMessage{
		ID:         uuid.NewString(),
		PlayerID:   self.ID,
		PlayerName: self.Name,
		Message:    strings.TrimSpace(text),
		Timestamp:  time.Now().UnixMilli(),
	}
}

// relay forwards conv(v) for every v, keeping only the newest unread value.
func relay[T any](in <-chan T, conv func(T) Update) <-chan Update {
	out := make(chan Update, 1)
	go func() {
		defer close(out)
		for v := range in {
			u := conv(v)
			select {
			case <-out:
			default:
			}
			out <- u
		}
	}()
	return out
}

func results(s engine.State) []rules.Settlement {
	if s.Game == nil || s.Game.Phase != engine.PhaseShowdown {
		return nil
	}
	return s.Game.Settlements
}
