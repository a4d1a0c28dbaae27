package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/pokdeng/internal/lobby"
	"github.com/DoyleJ11/pokdeng/internal/transport"
	"github.com/DoyleJ11/pokdeng/internal/types"
)

type HubMsg interface{ isHubMsg() }

type connected struct{ ch transport.Channel }

type disconnected struct {
	addr     string
	clientID string
}

// ListPeers reports the addresses of the connected guests.
type ListPeers struct{ Reply chan []string }

func (connected) isHubMsg()    {}
func (disconnected) isHubMsg() {}
func (ListPeers) isHubMsg()    {}

type peer struct {
	clientID string
	ch       transport.Channel
}

// Hub is the host side of the connection fabric. It accepts guest channels
// for one room, keeps at most one per guest address, and pumps envelopes
// between each channel and the lobby.
type Hub struct {
	code     string
	lobby    *lobby.Lobby
	listener transport.Listener
	log      *zap.Logger
	opts     options

	inbox chan HubMsg
	peers map[string]peer
	seq   int
	pumps sync.WaitGroup
	// writers is the subset of pumps that drain lobby outboxes.
	writers sync.WaitGroup
}

func New(code string, lb *lobby.Lobby, ln transport.Listener, log *zap.Logger, opts ...Option) *Hub {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Hub{
		code:     transport.NormalizeCode(code),
		lobby:    lb,
		listener: ln,
		log:      log.With(zap.String("room", code), zap.String("listen", ln.Addr())),
		opts:     o,
		inbox:    make(chan HubMsg, 64),
		peers:    make(map[string]peer),
	}
}

// Run serves guests until ctx ends or the lobby closes.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return h.loop(ctx)
	})
	g.Go(func() error {
		return h.acceptLoop(ctx)
	})

	err := g.Wait()
	h.pumps.Wait()
	return err
}

func (h *Hub) acceptLoop(ctx context.Context) error {
	for {
		ch, err := h.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		select {
		case h.inbox <- connected{ch: ch}:
		case <-ctx.Done():
			_ = ch.Close()
			return nil
		}
	}
}

func (h *Hub) loop(ctx context.Context) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-h.lobby.Done():
			h.log.Info("room closed")
			// The lobby's last envelopes (the host's leave) are still queued.
			h.writers.Wait()
			return nil

		case m := <-h.inbox:
			switch msg := m.(type) {
			case connected:
				h.admit(ctx, msg.ch)

			case disconnected:
				if p, ok := h.peers[msg.addr]; ok && p.clientID == msg.clientID {
					delete(h.peers, msg.addr)
				}

			case ListPeers:
				addrs := make([]string, 0, len(h.peers))
				for addr := range h.peers {
					addrs = append(addrs, addr)
				}
				slices.Sort(addrs)
				msg.Reply <- addrs
			}
		}
	}
}

func (h *Hub) admit(ctx context.Context, ch transport.Channel) {
	addr := ch.RemoteAddr()
	code, playerID, ok := transport.ParseGuestAddress(addr)
	if !ok || code != h.code {
		h.log.Warn("refusing channel from foreign address", zap.String("peer", addr))
		_ = ch.Close()
		return
	}
	if playerID == h.lobby.HostID() {
		h.log.Warn("refusing channel claiming the host id", zap.String("peer", addr))
		_ = ch.Close()
		return
	}

	h.seq++
	clientID := fmt.Sprintf("%s#%d", addr, h.seq)
	outbox := make(chan []byte, h.opts.outboxSize)
	if err := h.lobby.Post(ctx, lobby.Attach{ClientID: clientID, PlayerID: playerID, Outbox: outbox}); err != nil {
		_ = ch.Close()
		return
	}

	// The newer channel wins. The old one detaches without a leave because
	// the new one is already bound to the same player.
	if old, ok := h.peers[addr]; ok {
		h.log.Info("replacing channel", zap.String("peer", addr))
		_ = old.ch.Close()
	}
	h.peers[addr] = peer{clientID: clientID, ch: ch}
	h.log.Info("peer connected", zap.String("peer", addr), zap.String("player", playerID))

	h.pumps.Add(2)
	h.writers.Add(1)
	go h.writePump(ch, outbox)
	go h.readPump(ctx, ch, clientID, playerID)
}

// writePump forwards lobby envelopes to the channel and closes the channel
// once the lobby lets go of the outbox.
func (h *Hub) writePump(ch transport.Channel, outbox <-chan []byte) {
	defer h.pumps.Done()
	defer h.writers.Done()
	defer ch.Close()

	send := func(data []byte) bool {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.writeTimeout)
		defer cancel()
		if err := ch.Send(ctx, data); err != nil {
			h.log.Info("send failed", zap.String("peer", ch.RemoteAddr()), zap.Error(err))
			return false
		}
		return true
	}
	for {
		select {
		case data, ok := <-outbox:
			if !ok || !send(data) {
				return
			}
		case <-h.lobby.Done():
			// Flush whatever was queued before the room closed.
			for {
				select {
				case data, ok := <-outbox:
					if !ok || !send(data) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, ch transport.Channel, clientID, playerID string) {
	defer h.pumps.Done()
	addr := ch.RemoteAddr()
	log := h.log.With(zap.String("peer", addr))
	defer func() {
		_ = ch.Close()
		_ = h.lobby.Post(context.Background(), lobby.Detach{ClientID: clientID})
		select {
		case h.inbox <- disconnected{addr: addr, clientID: clientID}:
		case <-ctx.Done():
		}
		log.Info("peer disconnected")
	}()

	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			return
		}
		msg, err := types.Decode(data)
		if err == nil {
			err = types.CheckRole(msg, false)
		}
		if err == nil && msg.SenderID != playerID {
			err = fmt.Errorf("%w: senderId %q on channel bound to %q", types.ErrProtocol, msg.SenderID, playerID)
		}
		if err != nil {
			log.Warn("dropping message", zap.Error(err))
			continue
		}
		if err := h.lobby.Post(ctx, lobby.FromPeer{ClientID: clientID, Msg: msg}); err != nil {
			return
		}
	}
}

// Peers lists the connected guest addresses.
func (h *Hub) Peers(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- ListPeers{Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case addrs := <-reply:
		return addrs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) closeAll() {
	err := h.listener.Close()
	for addr, p := range h.peers {
		err = multierr.Append(err, p.ch.Close())
		delete(h.peers, addr)
	}
	if err != nil {
		h.log.Debug("closing channels", zap.Error(err))
	}
}

type options struct {
	outboxSize   int
	writeTimeout time.Duration
}

func defaultOptions() options {
	return options{outboxSize: 16, writeTimeout: 3 * time.Second}
}

type Option func(*options)

func WithOutboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.outboxSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}
