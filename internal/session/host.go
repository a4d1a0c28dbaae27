package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/hub"
	"github.com/DoyleJ11/pokdeng/internal/lobby"
	"github.com/DoyleJ11/pokdeng/internal/transport"
)

// ListenFunc binds a listener to a peer address.
type ListenFunc func(addr string) (transport.Listener, error)

const codeAttempts = 5

// Host is the session of the participant whose process owns the room.
type Host struct {
	self  engine.Profile
	code  string
	lobby *lobby.Lobby
	hub   *hub.Hub
	timer *TurnTimer
	log   *zap.Logger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// NewHost picks a room code, starts listening on its host address and opens
// the room with self as host and dealer.
func NewHost(ctx context.Context, self engine.Profile, listen ListenFunc, cfg Config, log *zap.Logger) (*Host, error) {
	var (
		code string
		ln   transport.Listener
	)
	for range codeAttempts {
		c, err := transport.GenerateCode()
		if err != nil {
			return nil, err
		}
		ln, err = listen(transport.HostAddress(c))
		if errors.Is(err, transport.ErrAddressInUse) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		code = c
		break
	}
	if code == "" {
		return nil, fmt.Errorf("no free room code after %d attempts", codeAttempts)
	}

	state := engine.NewState(code, self, cfg.Rules)
	opts := []lobby.Option{
		lobby.WithInboxSize(cfg.InboxSize),
		lobby.WithRejectNotices(cfg.RejectNotices),
	}
	if cfg.Deck != nil {
		opts = append(opts, lobby.WithDeck(cfg.Deck))
	}
	lb := lobby.NewLobby(context.WithoutCancel(ctx), state, log, opts...)
	h := &Host{
		self:  self,
		code:  code,
		lobby: lb,
		hub:   hub.New(code, lb, ln, log, hub.WithOutboxSize(cfg.OutboxSize), hub.WithWriteTimeout(cfg.WriteTimeout)),
		log:   log.With(zap.String("room", code)),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		if err := h.hub.Run(ctx); err != nil {
			h.setErr(err)
		}
		// Stop the lobby too if the hub stopped first.
		_ = lb.Post(context.Background(), lobby.Shutdown{})
		<-lb.Done()
	}()
	if cfg.TurnSeconds > 0 {
		h.timer = watchTurns(h, cfg.TurnSeconds, h.log)
	}
	h.log.Info("room open", zap.String("host", self.ID))
	return h, nil
}

func (h *Host) Self() engine.Profile { return h.self }
func (h *Host) Code() string         { return h.code }
func (h *Host) IsHost() bool         { return true }

func (h *Host) State() engine.State {
	v, err := h.lobby.View(context.Background())
	if err != nil {
		return engine.State{}
	}
	return v.State
}

func (h *Host) Watch() <-chan Update {
	updates := make(chan lobby.Snapshot, 1)
	if err := h.lobby.Post(context.Background(), lobby.Watch{Updates: updates}); err != nil {
		close(updates)
	}
	return relay(updates, func(s lobby.Snapshot) Update {
		return Update{Version: s.Version, State: s.State, Results: results(s.State)}
	})
}

// TurnTimer is nil when turn countdowns are off.
func (h *Host) TurnTimer() *TurnTimer { return h.timer }

// Peers lists the guest addresses currently connected.
func (h *Host) Peers(ctx context.Context) ([]string, error) { return h.hub.Peers(ctx) }

func (h *Host) do(ctx context.Context, cmd engine.Command) error {
	cmd.ActorID = h.self.ID
	err := h.lobby.Do(ctx, cmd)
	if errors.Is(err, lobby.ErrClosed) {
		return ErrEnded
	}
	return err
}

func (h *Host) SetReady(ctx context.Context, ready bool) error {
	return h.do(ctx, engine.Command{Type: engine.CmdReady, TargetID: h.self.ID, Ready: ready})
}

func (h *Host) PlaceBet(ctx context.Context, amount int) error {
	return h.do(ctx, engine.Command{Type: engine.CmdBet, TargetID: h.self.ID, Amount: amount})
}

func (h *Host) SendChat(ctx context.Context, text string) error {
	return h.do(ctx, engine.Command{Type: engine.CmdChat, Chat: newChat(h.self, text)})
}

func (h *Host) DrawCard(ctx context.Context) error {
	return h.do(ctx, engine.Command{Type: engine.CmdDraw, TargetID: h.self.ID})
}

func (h *Host) Stand(ctx context.Context) error {
	return h.do(ctx, engine.Command{Type: engine.CmdStand, TargetID: h.self.ID})
}

func (h *Host) StartGame(ctx context.Context) error {
	return h.do(ctx, engine.Command{Type: engine.CmdStart})
}

func (h *Host) NewRound(ctx context.Context) error {
	return h.do(ctx, engine.Command{Type: engine.CmdNewRound})
}

func (h *Host) Kick(ctx context.Context, playerID string) error {
	return h.do(ctx, engine.Command{Type: engine.CmdKick, TargetID: playerID})
}

// LeaveRoom closes the room for everyone and waits for the fabric to stop.
func (h *Host) LeaveRoom(ctx context.Context) error {
	if err := h.do(ctx, engine.Command{Type: engine.CmdLeave, TargetID: h.self.ID}); err != nil && !errors.Is(err, ErrEnded) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) Done() <-chan struct{} { return h.done }

func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Host) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// View is the room with its version and connected channel count.
func (h *Host) View(ctx context.Context) (lobby.View, error) { return h.lobby.View(ctx) }
