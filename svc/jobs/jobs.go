// Package jobs runs periodic maintenance: purging old webhook delivery logs
// and notifications that were read long ago.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/logger"
)

const (
	PurgeDeliveriesJob    = "purge-webhook-deliveries"
	PurgeNotificationsJob = "purge-read-notifications"
)

type Config struct {
	Interval                  time.Duration `env:"JOBS_INTERVAL" envDefault:"1h"`
	DeliveryRetention         time.Duration `env:"WEBHOOK_DELIVERY_RETENTION" envDefault:"720h"`
	ReadNotificationRetention time.Duration `env:"READ_NOTIFICATION_RETENTION" envDefault:"2160h"`
}

// DeliveryPurger is satisfied by webhook stores.
type DeliveryPurger interface {
	PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationPurger is satisfied by notification storages.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the gocron scheduler and the maintenance jobs.
type Scheduler struct {
	cfg           Config
	deliveries    DeliveryPurger
	notifications NotificationPurger
	clock         clockwork.Clock
	logger        *slog.Logger
	scheduler     gocron.Scheduler
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(cfg Config, deliveries DeliveryPurger, notifications NotificationPurger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cfg:           cfg,
		deliveries:    deliveries,
		notifications: notifications,
		clock:         clockwork.NewRealClock(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Interval <= 0 {
		s.cfg.Interval = time.Hour
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(s.clock),
		gocron.WithLogger(s.logger.With(logger.Component("jobs"))),
	)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched
	return s, nil
}

// Start registers the jobs and starts the scheduler. Both jobs run once
// immediately and then every Interval; a run that overlaps the previous one
// is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	type job struct {
		name string
		run  func(context.Context) (int64, error)
	}
	jobs := []job{
		{PurgeDeliveriesJob, s.PurgeDeliveries},
		{PurgeNotificationsJob, s.PurgeNotifications},
	}

	for _, j := range jobs {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.cfg.Interval),
			gocron.NewTask(s.task(j.name, j.run), ctx),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return errors.Join(ErrFailedToSchedule, err)
		}
	}

	s.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// PurgeDeliveries removes delivery log rows older than DeliveryRetention.
func (s *Scheduler) PurgeDeliveries(ctx context.Context) (int64, error) {
	if s.deliveries == nil || s.cfg.DeliveryRetention <= 0 {
		return 0, nil
	}
	return s.deliveries.PurgeDeliveries(ctx, s.clock.Now().Add(-s.cfg.DeliveryRetention))
}

// PurgeNotifications removes read notifications older than ReadNotificationRetention.
func (s *Scheduler) PurgeNotifications(ctx context.Context) (int64, error) {
	if s.notifications == nil || s.cfg.ReadNotificationRetention <= 0 {
		return 0, nil
	}
	return s.notifications.PurgeRead(ctx, s.clock.Now().Add(-s.cfg.ReadNotificationRetention))
}

func (s *Scheduler) task(name string, run func(context.Context) (int64, error)) func(context.Context) {
	return func(ctx context.Context) {
		start := s.clock.Now()
		n, err := run(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "maintenance job failed", logger.Task(name), logger.Error(err))
			return
		}
		s.logger.InfoContext(ctx, "maintenance job finished",
			logger.Task(name),
			slog.Int64("removed", n),
			logger.Duration(s.clock.Since(start)),
		)
	}
}
