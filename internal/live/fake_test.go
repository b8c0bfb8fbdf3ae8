package live_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomfeed/internal/core"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	in     chan core.Envelope
	out    chan core.Envelope
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan core.Envelope, 16),
		out:    make(chan core.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Emit(ctx context.Context, env core.Envelope) error {
	select {
	case <-c.closed:
		return core.Transient(errConnClosed)
	default:
	}

	select {
	case c.out <- env:
		return nil
	case <-c.closed:
		return core.Transient(errConnClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Receive(ctx context.Context) (core.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return core.Envelope{}, core.Transient(errConnClosed)
	case <-ctx.Done():
		return core.Envelope{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// push delivers a server event to the client.
func (c *fakeConn) push(t *testing.T, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	c.in <- core.Envelope{Event: event, Room: "room", Data: raw}
}

// next returns the next envelope the client emitted.
func (c *fakeConn) next(t *testing.T) core.Envelope {
	t.Helper()

	select {
	case env := <-c.out:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope emitted")
		return core.Envelope{}
	}
}

type fakeDialer struct {
	conns chan *fakeConn

	mu    sync.Mutex
	fails int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (core.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fails > 0 {
		d.fails--
		return nil, core.Transient(errConnClosed)
	}

	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fails = n
}

// accept waits for the next dialed connection.
func (d *fakeDialer) accept(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not dial")
		return nil
	}
}

func record(id int64, at time.Time) core.RawRecord {
	return core.RawRecord{
		ID:        json.Number(strconv.FormatInt(id, 10)),
		RoomID:    "room",
		CreatedAt: &at,
		SenderID:  "sender",
		Text:      "text",
	}
}
