package main

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/cenety/saascore/pkg/config"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/pg"
	"github.com/cenety/saascore/pkg/redis"
	"github.com/cenety/saascore/svc/api"
	"github.com/cenety/saascore/svc/jobs"
	"github.com/cenety/saascore/svc/usage"
)

const (
	driverMemory = "memory"
	driverRedis  = "redis"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"saascore"`
	LogLevel    string `env:"LOG_LEVEL"`

	RealtimeDriver string `env:"REALTIME_DRIVER" envDefault:"memory" validate:"oneof=memory redis"`
	RealtimeBuffer int    `env:"REALTIME_BUFFER" envDefault:"64" validate:"min=1"`
	// With the redis driver only one instance should republish database
	// changes, or every subscriber sees each change once per instance.
	ChangeFeed bool `env:"REALTIME_CHANGEFEED" envDefault:"true"`

	LimitsFallbackFile string `env:"LIMITS_FALLBACK_FILE"`
	LimitsLocation     string `env:"LIMITS_LOCATION" envDefault:"UTC"`
	DefaultLanguage    string `env:"DEFAULT_LANGUAGE" envDefault:"en"`

	Workers        int           `env:"WEBHOOK_WORKERS" envDefault:"4" validate:"min=1"`
	TaskQueueSize  int           `env:"TASK_QUEUE_SIZE" envDefault:"256" validate:"min=1"`
	TaskTimeout    time.Duration `env:"TASK_TIMEOUT" envDefault:"2m"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`

	HTTP    api.ServerConfig
	PG      pg.Config
	Redis   redis.Config
	Storage usage.StorageConfig
	Jobs    jobs.Config
}

func loadConfig(flags *rootFlags) (appConfig, error) {
	var cfg appConfig
	var opts []config.Option
	if len(flags.envFiles) > 0 {
		opts = append(opts, config.WithEnvFiles(flags.envFiles...))
	}
	if err := config.Load(&cfg, opts...); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func (c appConfig) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LimitsLocation)
	if err != nil {
		return nil, fmt.Errorf("LIMITS_LOCATION: %w", err)
	}
	return loc, nil
}

func (c appConfig) language() (language.Tag, error) {
	tag, err := language.Parse(c.DefaultLanguage)
	if err != nil {
		return language.Und, fmt.Errorf("DEFAULT_LANGUAGE: %w", err)
	}
	return tag, nil
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(api.RequestIDExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	l := logger.New(opts...)
	logger.SetAsDefault(l)
	return l
}
