package flags

import (
	"fmt"
	"slices"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validTransports = []string{"websocket", "nats", "redis"}
	validCaches     = []string{"none", "nats", "redis", "db"}
	validKinds      = []string{"all", "messages", "announcements"}
)

// oneOf validates enum like string flags.
func oneOf(name string, allowed []string) func(string) error {
	return func(value string) error {
		if !slices.Contains(allowed, value) {
			return fmt.Errorf("invalid %s: %s, allowed values are: %s", name, value, allowed)
		}
		return nil
	}
}

var LogLevel = &cli.StringFlag{
	Name:      "log-level",
	Aliases:   []string{"l"},
	Usage:     "The level of the logs",
	Value:     "info",
	Validator: oneOf("log level", validLogLevels),
	Sources:   cli.EnvVars("ROOMFEED_LOG_LEVEL", "LOG_LEVEL"),
}

var APIURL = &cli.StringFlag{
	Name:    "api-url",
	Usage:   "The base URL of the REST API",
	Value:   "http://localhost:3000",
	Sources: cli.EnvVars("ROOMFEED_API_URL"),
}

var RequestTimeout = &cli.DurationFlag{
	Name:    "request-timeout",
	Usage:   "Timeout of a single REST request",
	Value:   10 * time.Second,
	Sources: cli.EnvVars("ROOMFEED_REQUEST_TIMEOUT"),
}

var Transport = &cli.StringFlag{
	Name:      "transport",
	Aliases:   []string{"t"},
	Usage:     "The live channel transport: websocket, nats or redis",
	Value:     "websocket",
	Validator: oneOf("transport", validTransports),
	Sources:   cli.EnvVars("ROOMFEED_TRANSPORT"),
}

var WebsocketURL = &cli.StringFlag{
	Name:    "ws-url",
	Usage:   "The URL of the websocket live channel",
	Value:   "ws://localhost:3000/ws",
	Sources: cli.EnvVars("ROOMFEED_WS_URL"),
}

var NATSURL = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("ROOMFEED_NATS_URL", "NATS_URL"),
}

var NATSInit = &cli.BoolFlag{
	Name:        "nats-init",
	Usage:       "Initialize the NATS server: create the snapshot bucket",
	DefaultText: "false",
	Value:       false,
	Sources:     cli.EnvVars("ROOMFEED_NATS_INIT", "NATS_INIT"),
}

var RedisURL = &cli.StringFlag{
	Name:    "redis-url",
	Usage:   "The URL of the Redis server",
	Value:   "redis://localhost:6379/0",
	Sources: cli.EnvVars("ROOMFEED_REDIS_URL", "REDIS_URL"),
}

var ChannelPrefix = &cli.StringFlag{
	Name:    "channel-prefix",
	Usage:   "Prefix of the NATS subjects and Redis channels",
	Value:   "roomfeed",
	Sources: cli.EnvVars("ROOMFEED_CHANNEL_PREFIX"),
}

var Cache = &cli.StringFlag{
	Name:      "cache",
	Usage:     "Where room snapshots are kept: none, nats, redis or db",
	Value:     "none",
	Validator: oneOf("cache", validCaches),
	Sources:   cli.EnvVars("ROOMFEED_CACHE"),
}

var DatabaseURL = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "Postgres URL or sqlite file of the snapshot database",
	Value:   "roomfeed.db",
	Sources: cli.EnvVars("ROOMFEED_DATABASE_URL", "DATABASE_URL"),
}

var MetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "Address of the metrics and health endpoints, empty to disable",
	Value:   ":8080",
	Sources: cli.EnvVars("ROOMFEED_METRICS_ADDR"),
}

var Timezone = &cli.StringFlag{
	Name:    "timezone",
	Usage:   "IANA time zone used for date headers",
	Value:   "Local",
	Sources: cli.EnvVars("ROOMFEED_TIMEZONE", "TZ"),
}

var Room = &cli.StringFlag{
	Name:     "room",
	Aliases:  []string{"r"},
	Usage:    "The room (group) id",
	Required: true,
	Sources:  cli.EnvVars("ROOMFEED_ROOM"),
}

var User = &cli.StringFlag{
	Name:     "user",
	Aliases:  []string{"u"},
	Usage:    "The current user id",
	Required: true,
	Sources:  cli.EnvVars("ROOMFEED_USER"),
}

var Kind = &cli.StringFlag{
	Name:      "kind",
	Aliases:   []string{"k"},
	Usage:     "Which items to print: all, messages or announcements",
	Value:     "all",
	Validator: oneOf("kind", validKinds),
}

var Pretty = &cli.BoolFlag{
	Name:  "pretty",
	Usage: "Dump raw feed rows instead of the rendered feed",
}

var Announcement = &cli.IntFlag{
	Name:     "announcement",
	Aliases:  []string{"a"},
	Usage:    "The announcement id",
	Required: true,
}

var Option = &cli.IntFlag{
	Name:     "option",
	Aliases:  []string{"o"},
	Usage:    "The zero based poll option index",
	Required: true,
}

// Common are the flags shared by every room command.
func Common() []cli.Flag {
	return []cli.Flag{
		APIURL, RequestTimeout,
		Transport, WebsocketURL, NATSURL, NATSInit, RedisURL, ChannelPrefix,
		Cache, DatabaseURL,
		MetricsAddr, Timezone,
		Room, User,
	}
}
