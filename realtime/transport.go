package realtime

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal transport surface the manager drives. Production
// code wraps a gorilla WebSocket connection; tests substitute fakes.
type Conn interface {
	// ReadMessage blocks until the next message or a transport error.
	ReadMessage() ([]byte, error)
	// Close tears the transport down. Safe to call more than once.
	Close() error
}

const handshakeTimeout = 10 * time.Second

// wsConn adapts a gorilla connection to Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// DialWebSocket opens a WebSocket connection for an adapter's push feed.
func DialWebSocket(ctx context.Context, url string, header http.Header, insecure bool) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	if insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}
