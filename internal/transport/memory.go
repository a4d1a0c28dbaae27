package transport

import (
	"context"
	"slices"
	"sync"
)

const memoryBuffer = 64

// Network is an in-process transport. Every Listen and Dial against the
// same Network sees the same address space.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*memListener
}

func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*memListener)}
}

func (n *Network) Listen(addr string) (Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[addr]; ok {
		return nil, ErrAddressInUse
	}
	l := &memListener{
		net:    n,
		addr:   addr,
		accept: make(chan *memChannel),
		done:   make(chan struct{}),
	}
	n.listeners[addr] = l
	return l, nil
}

// Dial hands a new channel to the listener at remote. It fails when nobody
// listens there or when ctx ends before the listener accepts.
func (n *Network) Dial(ctx context.Context, local, remote string) (Channel, error) {
	n.mu.Lock()
	l := n.listeners[remote]
	n.mu.Unlock()
	if l == nil {
		return nil, ConnectError(remote, ErrAddressUnavailable)
	}

	dialer, listener := pipe(local, remote)
	select {
	case l.accept <- listener:
		return dialer, nil
	case <-l.done:
		return nil, ConnectError(remote, ErrAddressUnavailable)
	case <-ctx.Done():
		return nil, ConnectError(remote, ctx.Err())
	}
}

func (n *Network) unregister(l *memListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[l.addr] == l {
		delete(n.listeners, l.addr)
	}
}

type memListener struct {
	net    *Network
	addr   string
	accept chan *memChannel
	done   chan struct{}
	once   sync.Once
}

func (l *memListener) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-l.accept:
		return ch, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *memListener) Addr() string { return l.addr }

func (l *memListener) Close() error {
	l.once.Do(func() {
		close(l.done)
		l.net.unregister(l)
	})
	return nil
}

// memChannel is one end of a pipe. Both ends share closed.
type memChannel struct {
	remote string
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   *sync.Once
}

func pipe(a, b string) (*memChannel, *memChannel) {
	ab := make(chan []byte, memoryBuffer)
	ba := make(chan []byte, memoryBuffer)
	closed := make(chan struct{})
	once := new(sync.Once)
	// aEnd talks to b, bEnd talks to a.
	aEnd := &memChannel{remote: b, in: ba, out: ab, closed: closed, once: once}
	bEnd := &memChannel{remote: a, in: ab, out: ba, closed: closed, once: once}
	return aEnd, bEnd
}

func (c *memChannel) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- slices.Clone(msg):
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		// Whatever was sent before the close is still delivered.
		select {
		case msg := <-c.in:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memChannel) RemoteAddr() string { return c.remote }

func (c *memChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
