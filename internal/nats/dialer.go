package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	libnats "github.com/nats-io/nats.go"

	"roomfeed/internal/core"
	"roomfeed/internal/live"
)

// Dialer subscribes to a room's events subject. Reconnection of the underlying connection is left to
// the nats client; a closed connection ends the room session.
type Dialer struct {
	Conn   *libnats.Conn
	Prefix string
}

func (d *Dialer) Dial(_ context.Context, roomID string) (core.Conn, error) {
	if d.Conn.IsClosed() {
		return nil, core.Transient(libnats.ErrConnectionClosed)
	}

	msgs := make(chan *libnats.Msg, 64)
	sub, err := d.Conn.ChanSubscribe(live.EventsChannel(d.Prefix, roomID), msgs)
	if err != nil {
		return nil, core.Transient(fmt.Errorf("subscribing to room %s: %w", roomID, err))
	}

	return &conn{
		nc:     d.Conn,
		sub:    sub,
		msgs:   msgs,
		status: d.Conn.StatusChanged(libnats.CLOSED),
		emitTo: live.EmitChannel(d.Prefix, roomID),
	}, nil
}

type conn struct {
	nc     *libnats.Conn
	sub    *libnats.Subscription
	msgs   chan *libnats.Msg
	status chan libnats.Status
	emitTo string

	closeOnce sync.Once
}

func (c *conn) Emit(_ context.Context, env core.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := c.nc.Publish(c.emitTo, data); err != nil {
		return core.Transient(err)
	}
	return nil
}

func (c *conn) Receive(ctx context.Context) (core.Envelope, error) {
	select {
	case <-ctx.Done():
		return core.Envelope{}, ctx.Err()

	case <-c.status:
		return core.Envelope{}, core.Transient(libnats.ErrConnectionClosed)

	case msg := <-c.msgs:
		var env core.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return core.Envelope{}, fmt.Errorf("%w: %w", core.ErrInvalidEvent, err)
		}
		return env, nil
	}
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if !c.nc.IsClosed() {
			err = c.sub.Unsubscribe()
		}
		c.nc.RemoveStatusListener(c.status)
	})
	return err
}
