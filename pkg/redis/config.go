package redis

import "time"

// Config configures the optional Redis connection. An empty ConnectionURL
// keeps realtime fan-out inside the process.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                   // redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`         // connection attempts before giving up
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`        // wait between attempts
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`      // bound on the whole connect loop
	ChannelPrefix  string        `env:"REDIS_CHANNEL_PREFIX" envDefault:"realtime:"` // pub/sub channel namespace
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool { return c.ConnectionURL != "" }
