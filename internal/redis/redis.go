// Package redis provides the Redis pub/sub room transport and a Redis backed snapshot cache.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/zhulik/pal"

	"roomfeed/internal/config"
)

type Redis struct {
	Logger *slog.Logger
	Config *config.Config

	Client *redis.Client
}

func Provide() pal.ServiceDef {
	return pal.Provide(&Redis{})
}

func (r *Redis) Init(ctx context.Context) error {
	r.Logger = r.Logger.With("component", "redis.Redis")

	opts, err := redis.ParseURL(r.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	r.Client = redis.NewClient(opts)

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	r.Logger.Info("connected to redis", "addr", opts.Addr)

	return nil
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Shutdown(context.Context) error {
	return r.Client.Close()
}

func (r *Redis) Dialer() *Dialer {
	return &Dialer{Client: r.Client, Prefix: r.Config.ChannelPrefix}
}

func (r *Redis) Cache() *Cache {
	return &Cache{Client: r.Client}
}
