package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coder/websocket"

	"github.com/DoyleJ11/pokdeng/internal/transport"
)

// readLimit bounds one envelope. A full room snapshot is a few KiB.
const readLimit = 1 << 20

// Channel is a transport.Channel over one WebSocket connection. Canceling
// the context of a pending Receive closes the connection.
type Channel struct {
	conn   *websocket.Conn
	remote string
	done   chan struct{}

	doneOnce  sync.Once
	closeOnce sync.Once
}

func newChannel(conn *websocket.Conn, remote string) *Channel {
	conn.SetReadLimit(readLimit)
	return &Channel{conn: conn, remote: remote, done: make(chan struct{})}
}

func (c *Channel) Send(ctx context.Context, msg []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return nil, c.fail(err)
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

func (c *Channel) RemoteAddr() string { return c.remote }

// Close sends a normal close frame. Closing an already failed channel is
// not an error.
func (c *Channel) Close() error {
	c.markDone()
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	if err != nil && (errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1) {
		return nil
	}
	return err
}

func (c *Channel) markDone() { c.doneOnce.Do(func() { close(c.done) }) }

// Done is closed once the channel is unusable.
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) fail(err error) error {
	c.markDone()
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return fmt.Errorf("%w: %s", transport.ErrClosed, c.remote)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", transport.ErrClosed, c.remote, err)
}
