package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/metrics"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/pg"
	"github.com/cenety/saascore/pkg/realtime"
	"github.com/cenety/saascore/pkg/redis"
	"github.com/cenety/saascore/pkg/subscription"
	"github.com/cenety/saascore/pkg/webhook"
	"github.com/cenety/saascore/svc/api"
	"github.com/cenety/saascore/svc/jobs"
	"github.com/cenety/saascore/svc/usage"
)

// app owns every long-lived component of the serve command.
type app struct {
	cfg    appConfig
	logger *slog.Logger

	pool      *pgxpool.Pool
	redis     *goredis.Client
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	transport realtime.Transport
	runner    *async.Runner
	feed      *realtime.PGChangeFeed
	scheduler *jobs.Scheduler
	api       *api.API
}

func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	if a.pool, err = pg.Connect(ctx, cfg.PG); err != nil {
		return nil, err
	}
	if cfg.PG.AutoMigrate {
		if err = pg.Migrate(ctx, a.pool, cfg.PG, log); err != nil {
			return nil, err
		}
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	if a.transport, err = a.newTransport(ctx); err != nil {
		return nil, err
	}

	enforcer, err := newEnforcer(ctx, cfg, a.pool, log, limits.WithObserver(a.metrics.LimitDecision))
	if err != nil {
		return nil, err
	}
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	lang, err := cfg.language()
	if err != nil {
		return nil, err
	}

	a.runner = async.NewRunner(
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.TaskQueueSize),
		async.WithTaskTimeout(cfg.TaskTimeout),
		async.WithLogger(log),
		async.WithObserver(a.metrics.TaskOutcome),
	)
	tracker := usage.NewTracker(a.pool,
		usage.WithRunner(a.runner),
		usage.WithTrackerLocation(loc),
		usage.WithTrackerLogger(log),
	)

	webhooks := webhook.NewPGStore(a.pool)
	dispatcher := webhook.NewDispatcher(webhooks,
		webhook.NewSender(webhook.WithRequestTimeout(cfg.WebhookTimeout)),
		a.runner,
		webhook.WithDispatcherLogger(log),
		webhook.WithAttemptObserver(a.metrics.WebhookAttempt),
	)

	// Row changes reach subscribers through the database trigger and the
	// change feed, so the manager does not publish them itself.
	inbox := notifications.NewPGStorage(a.pool)
	manager := notifications.NewManager(inbox, notifications.WithManagerLogger(log))

	if cfg.ChangeFeed {
		a.feed = realtime.NewPGChangeFeed(a.transport,
			realtime.WithChangeFeedLogger(log),
			realtime.WithPublishHook(a.metrics.ChangePublished),
		)
	}

	if a.scheduler, err = jobs.New(cfg.Jobs, webhooks, inbox, jobs.WithLogger(log)); err != nil {
		return nil, err
	}

	opts := []api.Option{
		api.WithLimits(enforcer),
		api.WithNotifications(manager),
		api.WithWebhooks(webhook.NewRegistry(webhooks, enforcer)),
		api.WithEventTrigger(dispatcher),
		api.WithUsageTracker(tracker),
		api.WithRealtime(a.transport),
		api.WithMetrics(a.metrics, metrics.Handler(a.registry)),
		api.WithDefaultLanguage(lang),
		api.WithHealthCheck("postgres", pg.Healthcheck(a.pool)),
		api.WithLogger(log),
	}
	if a.redis != nil {
		opts = append(opts, api.WithHealthCheck("redis", redis.Healthcheck(a.redis, a.cfg.Redis.ChannelPrefix)))
	}
	a.api = api.New(opts...)

	return a, nil
}

func (a *app) newTransport(ctx context.Context) (realtime.Transport, error) {
	if a.cfg.RealtimeDriver != driverRedis {
		return realtime.NewMemoryTransport(a.cfg.RealtimeBuffer), nil
	}
	client, err := redis.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return realtime.NewRedisTransport(client,
		realtime.WithChannelPrefix(a.cfg.Redis.ChannelPrefix),
		realtime.WithRedisBuffer(a.cfg.RealtimeBuffer),
		realtime.WithRedisLogger(a.logger),
	), nil
}

// runChangeFeed listens for trigger notifications until ctx is done.
func (a *app) runChangeFeed(ctx context.Context) error {
	if a.feed == nil {
		return nil
	}
	listener, err := pg.Listen(ctx, a.pool, realtime.ChangesChannel)
	if err != nil {
		return err
	}
	defer func() {
		if err := listener.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.WarnContext(ctx, "failed to close change listener", logger.Error(err))
		}
	}()
	a.logger.InfoContext(ctx, "change feed started", logger.Component("changefeed"))
	return a.feed.Run(ctx, listener)
}

// close releases everything newApp acquired, in reverse order.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Shutdown())
	}
	if a.runner != nil {
		errs = append(errs, a.runner.Close(ctx))
	}
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.WarnContext(ctx, "shutdown finished with errors", logger.Error(err))
	}
}

// newEnforcer wires plan lookup, plan_limits, the fallback table and the
// usage counters.
func newEnforcer(ctx context.Context, cfg appConfig, pool *pgxpool.Pool, log *slog.Logger, extra ...limits.Option) (*limits.Enforcer, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	fallback := limits.DefaultFallback()
	if cfg.LimitsFallbackFile != "" {
		if fallback, err = limits.LoadFallbackFile(cfg.LimitsFallbackFile); err != nil {
			return nil, err
		}
	}

	var counterOpts []usage.CountersOption
	if cfg.Storage.Bucket != "" {
		client, err := usage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		counterOpts = append(counterOpts, usage.WithObjectStore(client, cfg.Storage.Bucket))
	}

	opts := append([]limits.Option{
		limits.WithLogger(log),
		limits.WithLocation(loc),
		limits.WithFallback(fallback),
		limits.WithSource(usage.NewPlanLimitSource(pool)),
	}, extra...)

	return limits.NewEnforcer(
		limits.NewResolver(subscription.NewPGLookup(pool, log), opts...),
		limits.NewMeter(usage.Counters(pool, counterOpts...), opts...),
		opts...,
	), nil
}
