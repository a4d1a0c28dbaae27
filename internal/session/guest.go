package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/hub"
	"github.com/DoyleJ11/pokdeng/internal/mirror"
	"github.com/DoyleJ11/pokdeng/internal/rules"
	"github.com/DoyleJ11/pokdeng/internal/transport"
	"github.com/DoyleJ11/pokdeng/internal/types"
)

// Guest is the session of a participant who joined someone else's room.
// Every action is a request to the host; state only changes when the host
// says so.
type Guest struct {
	self         engine.Profile
	code         string
	link         *hub.Link
	mirror       *mirror.Mirror
	timer        *TurnTimer
	writeTimeout time.Duration
	log          *zap.Logger

	cancel     context.CancelFunc
	seated     chan struct{}
	seatedOnce sync.Once
	done       chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

// JoinRoom connects to the host of code and returns once the host has seated
// self. A host that never answers, or never seats us, fails the join within
// cfg.ConnectTimeout.
func JoinRoom(ctx context.Context, self engine.Profile, code string, d transport.Dialer, cfg Config, log *zap.Logger) (*Guest, error) {
	code = transport.NormalizeCode(code)
	if err := transport.ValidateCode(code); err != nil {
		return nil, err
	}
	link, err := hub.Dial(ctx, d, code, self.ID, self.Name, cfg.ConnectTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g := &Guest{
		self:         self,
		code:         code,
		link:         link,
		mirror:       mirror.New(self.ID),
		writeTimeout: cfg.WriteTimeout,
		log:          log.With(zap.String("room", code), zap.String("player", self.ID)),
		cancel:       cancel,
		seated:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	go g.run(runCtx)

	join := engine.Player{ID: self.ID, Name: self.Name, Avatar: self.Avatar, Cards: []rules.Card{}}
	if err := g.send(ctx, types.MsgJoin, join); err != nil {
		g.finish(nil)
		<-g.done
		return nil, err
	}
	if err := g.awaitSeat(ctx, cfg.ConnectTimeout); err != nil {
		g.finish(err)
		<-g.done
		return nil, err
	}
	if cfg.TurnSeconds > 0 {
		g.timer = watchTurns(g, cfg.TurnSeconds, g.log)
	}
	g.log.Info("joined room")
	return g, nil
}

func (g *Guest) awaitSeat(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-g.seated:
		return nil
	case <-g.done:
		if err := g.Err(); err != nil {
			return err
		}
		return ErrEnded
	case <-t.C:
		return fmt.Errorf("%w: no seat after %s", ErrJoinRejected, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guest) run(ctx context.Context) {
	defer close(g.done)
	defer g.mirror.End()

	err := g.link.Run(ctx, g.handle)
	if cerr := g.link.Close(); cerr != nil && !errors.Is(cerr, transport.ErrClosed) {
		g.log.Debug("closing link", zap.Error(cerr))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopped {
		g.stopped = true
		g.err = fmt.Errorf("%w: %w", ErrHostUnavailable, err)
		g.log.Warn("lost the host", zap.Error(err))
	}
}

func (g *Guest) handle(msg types.PeerMessage) {
	out, err := g.mirror.Apply(msg)
	if err != nil {
		g.log.Warn("dropping host message", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}
	switch out {
	case mirror.Updated:
		if g.mirror.Synced() {
			g.seatedOnce.Do(func() { close(g.seated) })
		}
	case mirror.Rejected:
		r := g.mirror.View().Reject
		if r != nil && r.Type == types.MsgJoin && !g.isSeated() {
			g.finish(fmt.Errorf("%w: %s", ErrJoinRejected, r.Reason))
		}
	case mirror.Kicked:
		g.log.Info("kicked by host")
		g.finish(ErrKicked)
	case mirror.HostLeft:
		g.log.Info("host closed the room")
		g.finish(ErrHostUnavailable)
	}
}

func (g *Guest) isSeated() bool {
	select {
	case <-g.seated:
		return true
	default:
		return false
	}
}

// finish ends the session with err unless it already ended.
func (g *Guest) finish(err error) {
	g.mu.Lock()
	if !g.stopped {
		g.stopped = true
		g.err = err
	}
	g.mu.Unlock()
	g.cancel()
}

func (g *Guest) send(ctx context.Context, t types.MessageType, payload any) error {
	select {
	case <-g.done:
		return ErrEnded
	default:
	}
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	if err := g.link.Send(ctx, t, payload); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

func (g *Guest) Self() engine.Profile { return g.self }
func (g *Guest) Code() string         { return g.code }
func (g *Guest) IsHost() bool         { return false }
func (g *Guest) State() engine.State  { return g.mirror.State() }

func (g *Guest) Watch() <-chan Update {
	return relay(g.mirror.Watch(), func(v mirror.View) Update {
		u := Update{Version: v.Version, State: v.State, Results: v.Results}
		if v.Reject != nil {
			u.Notice = v.Reject.Reason
		}
		return u
	})
}

func (g *Guest) TurnTimer() *TurnTimer { return g.timer }

func (g *Guest) SetReady(ctx context.Context, ready bool) error {
	return g.send(ctx, types.MsgReady, types.ReadyPayload{PlayerID: g.self.ID, Ready: ready})
}

func (g *Guest) PlaceBet(ctx context.Context, amount int) error {
	return g.send(ctx, types.MsgBet, types.BetPayload{PlayerID: g.self.ID, Amount: amount})
}

// SendChat shows the line locally right away; the host's next snapshot
// confirms it.
func (g *Guest) SendChat(ctx context.Context, text string) error {
	msg := newChat(g.self, text)
	if msg.Message == "" {
		return engine.ErrEmptyChat
	}
	g.mirror.AddPending(msg)
	return g.send(ctx, types.MsgChat, msg)
}

func (g *Guest) DrawCard(ctx context.Context) error {
	return g.send(ctx, types.MsgGameAction, types.GameActionPayload{Type: types.ActionDraw, PlayerID: g.self.ID})
}

func (g *Guest) Stand(ctx context.Context) error {
	return g.send(ctx, types.MsgGameAction, types.GameActionPayload{Type: types.ActionStand, PlayerID: g.self.ID})
}

func (g *Guest) StartGame(context.Context) error    { return ErrNotHost }
func (g *Guest) NewRound(context.Context) error     { return ErrNotHost }
func (g *Guest) Kick(context.Context, string) error { return ErrNotHost }

// LeaveRoom tells the host we are going and closes the link.
func (g *Guest) LeaveRoom(ctx context.Context) error {
	if err := g.send(ctx, types.MsgLeave, g.self.ID); err != nil && !errors.Is(err, ErrEnded) {
		g.log.Debug("leave notice not delivered", zap.Error(err))
	}
	g.finish(nil)
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guest) Done() <-chan struct{} { return g.done }

func (g *Guest) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
