package lobby

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/rules"
	"github.com/DoyleJ11/pokdeng/internal/types"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// Attach registers a connected peer. The lobby writes encoded envelopes to
// Outbox and closes it when the peer is dropped or the lobby ends.
type Attach struct {
	ClientID string
	PlayerID string
	Outbox   chan []byte
}

func (Attach) isLobbyMsg() {}

// Detach reports that a peer's channel is gone.
type Detach struct{ ClientID string }

func (Detach) isLobbyMsg() {}

// FromPeer carries a decoded, role-checked envelope from an attached peer.
type FromPeer struct {
	ClientID string
	Msg      types.PeerMessage
}

func (FromPeer) isLobbyMsg() {}

// Local is a command issued by the host itself. Reply gets the outcome.
type Local struct {
	Cmd   engine.Command
	Reply chan error
}

func (Local) isLobbyMsg() {}

// Watch subscribes a local observer. Updates receives the current snapshot
// right away and then every new one. Only the latest pending snapshot is
// kept for a watcher that falls behind.
type Watch struct{ Updates chan Snapshot }

func (Watch) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Snapshot struct {
	Version int
	State   engine.State
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type client struct {
	playerID string
	outbox   chan []byte
}

type Lobby struct {
	inbox    chan Msg
	state    engine.State
	version  int
	clients  map[string]*client
	watchers []chan Snapshot
	leaves   []string // players whose last channel went away

	hostID   string
	hostName string
	opts     options
	log      *zap.Logger

	closed bool
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLobby starts the authority loop for a room whose canonical state
// starts as initial.
func NewLobby(parent context.Context, initial engine.State, log *zap.Logger, opts ...Option) *Lobby {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(parent)

	host, _ := initial.Player(initial.HostID)
	l := &Lobby{
		inbox:    make(chan Msg, o.inboxSize),
		state:    initial,
		clients:  make(map[string]*client),
		hostID:   initial.HostID,
		hostName: host.Name,
		opts:     o,
		log:      log.With(zap.String("room", initial.RoomCode)),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Attach:
				if msg.PlayerID == l.hostID {
					// Only the host speaks as the host.
					l.log.Warn("refusing peer claiming the host id", zap.String("client", msg.ClientID))
					close(msg.Outbox)
					continue
				}
				l.clients[msg.ClientID] = &client{playerID: msg.PlayerID, outbox: msg.Outbox}
				// Bring the newcomer up to date before it says anything.
				l.sendTo(msg.ClientID, l.encode(types.MsgSync, l.state))
				l.log.Info("peer attached", zap.String("client", msg.ClientID), zap.String("player", msg.PlayerID))

			case Detach:
				if _, ok := l.clients[msg.ClientID]; ok {
					l.log.Info("peer detached", zap.String("client", msg.ClientID))
					l.drop(msg.ClientID)
				}

			case FromPeer:
				l.fromPeer(msg)

			case Local:
				err := l.apply(msg.Cmd, "", "")
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Watch:
				l.watchers = append(l.watchers, msg.Updates)
				notify(msg.Updates, Snapshot{Version: l.version, State: l.state})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
			l.flushLeaves()
			if l.closed {
				return
			}
		}
	}
}

func (l *Lobby) fromPeer(msg FromPeer) {
	c, ok := l.clients[msg.ClientID]
	if !ok {
		return // already dropped
	}
	cmd, err := types.ToCommand(msg.Msg)
	if err != nil {
		l.log.Warn("dropping message", zap.String("player", c.playerID), zap.String("type", string(msg.Msg.Type)), zap.Error(err))
		return
	}
	_ = l.apply(cmd, msg.ClientID, msg.Msg.Type)
}

// apply runs cmd through the engine and publishes the result. clientID is
// empty for host-local commands.
func (l *Lobby) apply(cmd engine.Command, clientID string, origin types.MessageType) error {
	if (cmd.Type == engine.CmdStart || cmd.Type == engine.CmdNewRound) && cmd.Deck == nil && l.opts.deck != nil {
		cmd.Deck = l.opts.deck()
	}

	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		fields := []zap.Field{zap.String("cmd", string(cmd.Type)), zap.String("actor", cmd.ActorID), zap.Error(err)}
		if errors.Is(err, engine.ErrRuleViolation) {
			l.log.Debug("command rejected", fields...)
			if clientID != "" && l.opts.rejectNotices {
				l.sendTo(clientID, l.encode(types.MsgReject, types.RejectPayload{Type: origin, Reason: err.Error()}))
			}
		} else {
			l.log.Warn("command failed", fields...)
		}
		return err
	}
	if len(events) == 0 {
		return nil
	}

	l.state = next
	l.version++
	l.publish(events)
	return nil
}

func (l *Lobby) publish(events []engine.Event) {
	if engine.ContainsEvent(events, engine.EvtRoomClosed) {
		l.broadcast(l.encode(types.MsgLeave, l.hostID))
		l.log.Info("host left, closing room")
		l.shutdown()
		return
	}

	for _, ev := range events {
		if ev.Type != engine.EvtPlayerKicked {
			continue
		}
		kick := l.encode(types.MsgKick, ev.PlayerID)
		for id, c := range l.clients {
			if c.playerID != ev.PlayerID {
				continue
			}
			select {
			case c.outbox <- kick:
			default:
			}
			close(c.outbox)
			delete(l.clients, id)
		}
		l.log.Info("player kicked", zap.String("player", ev.PlayerID))
	}

	kind := types.MsgSync
	switch {
	case engine.ContainsEvent(events, engine.EvtGameStarted):
		kind = types.MsgStart
	case engine.ContainsEvent(events, engine.EvtRoundStarted):
		kind = types.MsgNewRound
	}
	l.broadcast(l.encode(kind, l.state))

	for _, ev := range events {
		if ev.Type == engine.EvtShowdown {
			l.broadcast(l.encode(types.MsgRoundEnd, ev.Settlements))
		}
	}

	snap := Snapshot{Version: l.version, State: l.state}
	for _, w := range l.watchers {
		notify(w, snap)
	}
}

func (l *Lobby) encode(t types.MessageType, payload any) []byte {
	data, err := types.Encode(t, l.hostID, l.hostName, payload)
	if err != nil {
		// Payloads are our own values; this is a programming error.
		l.log.Error("encode failed", zap.String("type", string(t)), zap.Error(err))
	}
	return data
}

func (l *Lobby) sendTo(clientID string, data []byte) {
	c, ok := l.clients[clientID]
	if !ok || data == nil {
		return
	}
	select {
	case c.outbox <- data:
	default:
		l.log.Warn("peer too slow, dropping", zap.String("client", clientID))
		l.drop(clientID)
	}
}

func (l *Lobby) broadcast(data []byte) {
	for id := range l.clients {
		l.sendTo(id, data)
	}
}

// drop forgets a client and closes its outbox. The player leaves the room
// once no other client is bound to it.
func (l *Lobby) drop(clientID string) {
	c := l.clients[clientID]
	close(c.outbox)
	delete(l.clients, clientID)
	if c.playerID == "" {
		return
	}
	for _, other := range l.clients {
		if other.playerID == c.playerID {
			return
		}
	}
	l.leaves = append(l.leaves, c.playerID)
}

func (l *Lobby) flushLeaves() {
	for len(l.leaves) > 0 && !l.closed {
		id := l.leaves[0]
		l.leaves = l.leaves[1:]
		if _, ok := l.state.Player(id); !ok {
			continue
		}
		_ = l.apply(engine.Command{Type: engine.CmdLeave, ActorID: id, TargetID: id}, "", types.MsgLeave)
	}
}

func (l *Lobby) shutdown() {
	if l.closed {
		return
	}
	l.closed = true
	for id, c := range l.clients {
		close(c.outbox) // Tell the writer no more envelopes
		delete(l.clients, id)
	}
	final := Snapshot{Version: l.version, State: l.state}
	for _, w := range l.watchers {
		notify(w, final)
		close(w)
	}
	l.watchers = nil
	l.cancel()
}

// notify delivers snap, replacing an unread older snapshot if need be.
func notify(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Expose the inbox so tests or the fabric can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// HostID is the id of the player running this lobby.
func (l *Lobby) HostID() string { return l.hostID }

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Post queues m unless the lobby has ended.
func (l *Lobby) Post(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do applies a host-local command and waits for the outcome.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := l.Post(ctx, Local{Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.done:
		// The command may have closed the room; its reply is already queued.
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns the current state without racing the loop.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

type options struct {
	inboxSize     int
	rejectNotices bool
	deck          func() []rules.Card
}

func defaultOptions() options {
	return options{inboxSize: 64}
}

type Option func(*options)

func WithInboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.inboxSize = n
		}
	}
}

// WithRejectNotices sends a reject envelope to a peer whose command broke
// a game rule.
func WithRejectNotices(on bool) Option {
	return func(o *options) { o.rejectNotices = on }
}

// WithDeck sets where start and new round get their shuffled deck.
func WithDeck(deck func() []rules.Card) Option {
	return func(o *options) { o.deck = deck }
}
