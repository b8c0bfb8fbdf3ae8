// Package config holds the settings of a roomfeed run, filled from flags and environment.
package config

import "time"

type Config struct {
	LogLevel string `flag:"log-level"`

	APIURL         string        `flag:"api-url"`
	RequestTimeout time.Duration `flag:"request-timeout"`

	Transport     string `flag:"transport"`
	WebsocketURL  string `flag:"ws-url"`
	NATSURL       string `flag:"nats-url"`
	NATSInit      bool   `flag:"nats-init"`
	RedisURL      string `flag:"redis-url"`
	ChannelPrefix string `flag:"channel-prefix"`

	Cache       string `flag:"cache"`
	DatabaseURL string `flag:"database-url"`

	MetricsAddr string `flag:"metrics-addr"`
	Timezone    string `flag:"timezone"`

	RoomID string `flag:"room"`
	UserID string `flag:"user"`

	Kind   string `flag:"kind"`
	Pretty bool   `flag:"pretty"`

	AnnouncementID int64 `flag:"announcement"`
	Option         int   `flag:"option"`
}
