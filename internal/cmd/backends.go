package cmd

import (
	"fmt"
	"log/slog"

	"github.com/zhulik/pal"

	"roomfeed/internal/config"
	"roomfeed/internal/core"
	"roomfeed/internal/live"
	"roomfeed/internal/nats"
	"roomfeed/internal/persistence"
	"roomfeed/internal/redis"
)

// transport resolves the live channel dialer selected with --transport.
type transport interface {
	Dialer() core.Dialer
}

// snapshots resolves the snapshot cache selected with --cache. Cache returns nil when disabled.
type snapshots interface {
	Cache() core.SnapshotCache
}

type websocketTransport struct {
	Config *config.Config
}

func (t *websocketTransport) Dialer() core.Dialer {
	return live.WebsocketDialer{URL: t.Config.WebsocketURL}
}

type natsTransport struct {
	NATS *nats.NATS
}

func (t *natsTransport) Dialer() core.Dialer {
	return t.NATS.Dialer()
}

type redisTransport struct {
	Redis *redis.Redis
}

func (t *redisTransport) Dialer() core.Dialer {
	return t.Redis.Dialer()
}

type noCache struct{}

func (*noCache) Cache() core.SnapshotCache {
	return nil
}

type natsCache struct {
	Logger *slog.Logger
	NATS   *nats.NATS
}

func (c *natsCache) Cache() core.SnapshotCache {
	cache := c.NATS.Cache()
	if cache == nil {
		c.Logger.Warn("nats snapshot bucket is missing, snapshots disabled")
		return nil
	}
	return cache
}

type redisCache struct {
	Redis *redis.Redis
}

func (c *redisCache) Cache() core.SnapshotCache {
	return c.Redis.Cache()
}

type dbCache struct {
	DB *persistence.DB
}

func (c *dbCache) Cache() core.SnapshotCache {
	return c.DB.Cache()
}

// backends returns the services behind the configured transport and cache. Shared connections are
// provided once.
func backends(cfg *config.Config) ([]pal.ServiceDef, error) {
	var services []pal.ServiceDef
	var withNATS, withRedis bool

	switch cfg.Transport {
	case "websocket":
		services = append(services, pal.Provide[transport](&websocketTransport{}))
	case "nats":
		services = append(services, pal.Provide[transport](&natsTransport{}))
		withNATS = true
	case "redis":
		services = append(services, pal.Provide[transport](&redisTransport{}))
		withRedis = true
	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}

	switch cfg.Cache {
	case "", "none":
		services = append(services, pal.Provide[snapshots](&noCache{}))
	case "nats":
		services = append(services, pal.Provide[snapshots](&natsCache{}))
		withNATS = true
	case "redis":
		services = append(services, pal.Provide[snapshots](&redisCache{}))
		withRedis = true
	case "db":
		services = append(services, pal.Provide[snapshots](&dbCache{}), persistence.Provide())
	default:
		return nil, fmt.Errorf("unknown cache: %s", cfg.Cache)
	}

	if withNATS {
		services = append(services, nats.Provide())
	}
	if withRedis {
		services = append(services, redis.Provide())
	}

	return services, nil
}
