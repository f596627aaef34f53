package push

import (
	"context"
	"github.com/pkg/errors"
	"net/http"
	"nhooyr.io/websocket"
	"strings"
)

// ErrConnectionClosed is returned by Conn.Read once the peer has closed the
// connection cleanly.
var ErrConnectionClosed = errors.New("connection closed")

type Conn interface {
	// Read blocks until the next frame arrives.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketURL upgrades an http(s) origin to ws(s) and appends the push path.
func WebsocketURL(origin string) string {
	origin = strings.TrimSuffix(origin, "/")
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + "/ws"
}

type WebsocketDialer struct {
	HTTPClient *http.Client
	// ReadLimit caps the size of a single frame; 0 keeps the library default.
	ReadLimit int64
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial %s", url)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (w *websocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			return nil, errors.Wrapf(ErrConnectionClosed, "status %d", status)
		}
		return nil, errors.Wrapf(err, "unable to read frame")
	}
	return data, nil
}

func (w *websocketConn) Close() error {
	return errors.Wrapf(w.conn.Close(websocket.StatusNormalClosure, "client disconnect"), "unable to close websocket")
}
