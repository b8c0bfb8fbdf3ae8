package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"roomfeed/internal/core"
	"roomfeed/internal/live"
)

// Dialer subscribes to a room's events channel and publishes to its emit channel.
type Dialer struct {
	Client *redis.Client
	Prefix string
}

func (d *Dialer) Dial(ctx context.Context, roomID string) (core.Conn, error) {
	ps := d.Client.Subscribe(ctx, live.EventsChannel(d.Prefix, roomID))

	// Wait for the subscription confirmation, so nothing published after Dial returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, core.Transient(fmt.Errorf("subscribing to room %s: %w", roomID, err))
	}

	return &conn{
		client: d.Client,
		ps:     ps,
		msgs:   ps.Channel(),
		emitTo: live.EmitChannel(d.Prefix, roomID),
	}, nil
}

type conn struct {
	client *redis.Client
	ps     *redis.PubSub
	msgs   <-chan *redis.Message
	emitTo string
}

func (c *conn) Emit(ctx context.Context, env core.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := c.client.Publish(ctx, c.emitTo, data).Err(); err != nil {
		return core.Transient(err)
	}
	return nil
}

func (c *conn) Receive(ctx context.Context) (core.Envelope, error) {
	var msg *redis.Message
	select {
	case <-ctx.Done():
		return core.Envelope{}, ctx.Err()
	case m, ok := <-c.msgs:
		if !ok {
			return core.Envelope{}, core.Transient(redis.ErrClosed)
		}
		msg = m
	}

	var env core.Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return core.Envelope{}, fmt.Errorf("%w: %w", core.ErrInvalidEvent, err)
	}
	return env, nil
}

func (c *conn) Close() error {
	return c.ps.Close()
}
