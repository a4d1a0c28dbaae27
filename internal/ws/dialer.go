package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/DoyleJ11/pokdeng/internal/transport"
)

// Dialer reaches peers served under BaseURL (ws:// or wss://).
type Dialer struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (d Dialer) Dial(ctx context.Context, local, remote string) (transport.Channel, error) {
	u := fmt.Sprintf("%s/peer/%s?from=%s",
		strings.TrimRight(d.BaseURL, "/"), url.PathEscape(remote), url.QueryEscape(local))

	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			err = transport.ErrAddressUnavailable
		}
		return nil, transport.ConnectError(remote, err)
	}
	return newChannel(conn, remote), nil
}
