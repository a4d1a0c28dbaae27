package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/transport"
	"github.com/DoyleJ11/pokdeng/internal/types"
)

// Link is the guest side of the fabric: the single channel to the host.
type Link struct {
	ch         transport.Channel
	senderID   string
	senderName string
	log        *zap.Logger
}

// Dial connects playerID to the host of room code. The attempt is abandoned
// after timeout and nothing is left open.
func Dial(ctx context.Context, d transport.Dialer, code, playerID, name string, timeout time.Duration, log *zap.Logger) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := transport.HostAddress(code)
	ch, err := d.Dial(ctx, transport.GuestAddress(code, playerID), host)
	if err != nil {
		return nil, err
	}
	return &Link{
		ch:         ch,
		senderID:   playerID,
		senderName: name,
		log:        log.With(zap.String("peer", host)),
	}, nil
}

// Send wraps payload in an envelope from this guest.
func (k *Link) Send(ctx context.Context, t types.MessageType, payload any) error {
	data, err := types.Encode(t, k.senderID, k.senderName, payload)
	if err != nil {
		return err
	}
	return k.ch.Send(ctx, data)
}

// Run hands every valid host envelope to handle, in arrival order, until
// the channel closes. Messages a host may not send are dropped.
func (k *Link) Run(ctx context.Context, handle func(types.PeerMessage)) error {
	for {
		data, err := k.ch.Receive(ctx)
		if err != nil {
			return err
		}
		msg, err := types.Decode(data)
		if err == nil {
			err = types.CheckRole(msg, true)
		}
		if err != nil {
			k.log.Warn("dropping message", zap.Error(err))
			continue
		}
		handle(msg)
	}
}

func (k *Link) Close() error { return k.ch.Close() }
