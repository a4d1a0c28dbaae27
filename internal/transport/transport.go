package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConnection is wrapped by every failure to reach or keep a peer.
	ErrConnection         = errors.New("connection error")
	ErrTimeout            = errors.New("connect timed out")
	ErrAddressUnavailable = errors.New("peer address unavailable")
	ErrAddressInUse       = errors.New("peer address already in use")
	ErrClosed             = errors.New("channel closed")
)

// Channel is a reliable, ordered, bidirectional message pipe to one peer.
// Send and Receive may be called from different goroutines, but each only
// from one at a time.
type Channel interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	// RemoteAddr is the peer address the other end registered under.
	RemoteAddr() string
	Close() error
}

// Listener hands out channels opened towards the address it was bound to.
type Listener interface {
	Accept(ctx context.Context) (Channel, error)
	Addr() string
	Close() error
}

// Dialer opens a channel from local to remote. The context bounds the
// connect attempt.
type Dialer interface {
	Dial(ctx context.Context, local, remote string) (Channel, error)
}

// ConnectError wraps err as a connection failure towards remote. A context
// deadline is reported as ErrTimeout.
func ConnectError(remote string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, remote, err)
}
