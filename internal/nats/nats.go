package nats

import (
	"context"
	"errors"
	"log/slog"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"roomfeed/internal/config"
)

const (
	appName = "roomfeed"
)

// NATS owns the connection shared by the NATS transport and the snapshot cache.
type NATS struct {
	Logger *slog.Logger
	Config *config.Config

	Conn *libnats.Conn
	JS   jetstream.JetStream
	KV   jetstream.KeyValue
}

func (n *NATS) Init(ctx context.Context) error {
	n.Logger = n.Logger.With("component", "nats.NATS")

	nc, err := libnats.Connect(n.Config.NATSURL, libnats.Name(appName), libnats.MaxReconnects(-1))
	if err != nil {
		return err
	}
	n.Conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}
	n.JS = js

	if n.Config.NATSInit {
		if err := n.initNATS(ctx); err != nil {
			return err
		}
	}

	kv, err := js.KeyValue(ctx, appName)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketNotFound) {
			return err
		}
		n.Logger.Warn("snapshot bucket not found, run with --nats-init to create it")
		return nil
	}
	n.KV = kv

	return nil
}

func (n *NATS) HealthCheck(context.Context) error {
	_, err := n.Conn.RTT()
	return err
}

func (n *NATS) Shutdown(context.Context) error {
	return n.Conn.Drain()
}

// Dialer returns the room transport over this connection.
func (n *NATS) Dialer() *Dialer {
	return &Dialer{Conn: n.Conn, Prefix: n.Config.ChannelPrefix}
}

// Cache returns the snapshot cache backed by the key value bucket, nil if the bucket does not exist.
func (n *NATS) Cache() *KVCache {
	if n.KV == nil {
		return nil
	}
	return &KVCache{KV: n.KV}
}

func (n *NATS) initNATS(ctx context.Context) error {
	n.Logger.Info("Initializing NATS")

	_, err := n.JS.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      appName,
		Description: "Last known feed of every room",
		History:     1,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("KeyValue created or updated", "name", appName)

	return nil
}
