package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/transport"
)

// Listener is a transport.Listener fed by HTTP upgrades. Mount it on a chi
// route with a {peerID} parameter; the dialing peer names itself with the
// "from" query parameter.
type Listener struct {
	addr   string
	log    *zap.Logger
	accept chan *Channel
	done   chan struct{}
	once   sync.Once
}

func NewListener(addr string, log *zap.Logger) *Listener {
	return &Listener{
		addr:   addr,
		log:    log.With(zap.String("listen", addr)),
		accept: make(chan *Channel),
		done:   make(chan struct{}),
	}
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "peerID") != l.addr {
		http.Error(w, "peer not found", http.StatusNotFound)
		return
	}
	from := r.URL.Query().Get("from")
	if from == "" {
		http.Error(w, "missing from", http.StatusBadRequest)
		return
	}
	select {
	case <-l.done:
		http.Error(w, "peer closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		l.log.Warn("websocket accept failed", zap.String("from", from), zap.Error(err))
		return
	}
	ch := newChannel(conn, from)

	select {
	case l.accept <- ch:
	case <-l.done:
		_ = ch.Close()
		return
	case <-r.Context().Done():
		_ = ch.Close()
		return
	}
	// The connection lives as long as this handler.
	<-ch.Done()
}

func (l *Listener) Accept(ctx context.Context) (transport.Channel, error) {
	select {
	case ch := <-l.accept:
		return ch, nil
	case <-l.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Addr() string { return l.addr }

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}
