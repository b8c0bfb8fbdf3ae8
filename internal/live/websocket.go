package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomfeed/internal/core"
)

// WebsocketDialer opens one socket per room. The room id is passed as the "room" query parameter.
type WebsocketDialer struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

func (d WebsocketDialer) Dial(ctx context.Context, roomID string) (core.Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing websocket url: %w", err)
	}
	q := u.Query()
	q.Set("room", roomID)
	u.RawQuery = q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), d.Header)
	if err != nil {
		return nil, core.Transient(fmt.Errorf("dialing %s: %w", u.Redacted(), err))
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) Emit(ctx context.Context, env core.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return core.Transient(err)
	}

	if err := c.conn.WriteJSON(env); err != nil {
		return core.Transient(err)
	}
	return nil
}

func (c *wsConn) Receive(ctx context.Context) (core.Envelope, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return core.Envelope{}, ctx.Err()
		}
		return core.Envelope{}, core.Transient(err)
	}

	var env core.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return core.Envelope{}, fmt.Errorf("%w: %w", core.ErrInvalidEvent, err)
	}

	return env, nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return c.conn.Close()
}
