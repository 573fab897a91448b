package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/realtime"
)

// Schema and Table locate notification rows in change events.
const (
	Schema = "public"
	Table  = "user_notifications"
)

// Manager validates and applies notification operations.
type Manager struct {
	storage   Storage
	publisher realtime.Publisher
	validate  *validator.Validate
	clock     clockwork.Clock
	logger    *slog.Logger
}

type ManagerOption func(*Manager)

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithManagerClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithChangePublisher makes the manager publish change events for every
// mutation. Use it only when the storage has no database trigger.
func WithChangePublisher(p realtime.Publisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage:  storage,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send validates and stores a notification. ID and CreatedAt are filled in
// when empty; the returned value is what was stored.
func (m *Manager) Send(ctx context.Context, n Notification) (Notification, error) {
	n = m.prepare(n)
	if err := m.validate.StructCtx(ctx, n); err != nil {
		return Notification{}, errors.Join(ErrInvalidNotification, err)
	}
	if err := m.storage.Create(ctx, n); err != nil {
		return Notification{}, err
	}

	m.publish(ctx, realtime.Insert, &n, nil)
	return n, nil
}

// SendToUsers stores a copy of template for every user. It stops at the first
// storage failure; notifications stored before it are returned with the error.
func (m *Manager) SendToUsers(ctx context.Context, userIDs []uuid.UUID, template Notification) ([]Notification, error) {
	probe := template
	probe.UserID = uuid.Max
	if err := m.validate.StructCtx(ctx, probe); err != nil {
		return nil, errors.Join(ErrInvalidNotification, err)
	}

	sent := make([]Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == uuid.Nil {
			continue
		}
		n := template
		n.ID = uuid.Nil
		n.UserID = userID
		n.CreatedAt = m.clock.Now()
		n = m.prepare(n)

		if err := m.storage.Create(ctx, n); err != nil {
			return sent, fmt.Errorf("store notification for user %s: %w", userID, err)
		}
		m.publish(ctx, realtime.Insert, &n, nil)
		sent = append(sent, n)
	}

	m.logger.InfoContext(ctx, "bulk notification sent",
		slog.Int("recipients", len(sent)),
		logger.EventType(string(template.Type)),
	)
	return sent, nil
}

func (m *Manager) Get(ctx context.Context, userID, id uuid.UUID) (Notification, error) {
	return m.storage.Get(ctx, userID, id)
}

func (m *Manager) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	return m.storage.List(ctx, userID, opts)
}

func (m *Manager) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.storage.CountUnread(ctx, userID)
}

// MarkRead returns the notifications that changed from unread to read.
func (m *Manager) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	updated, err := m.storage.MarkRead(ctx, userID, ids...)
	if err != nil {
		return nil, err
	}
	m.publishUpdates(ctx, updated)
	return updated, nil
}

func (m *Manager) MarkAllRead(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	updated, err := m.storage.MarkAllRead(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.publishUpdates(ctx, updated)
	return updated, nil
}

// Delete returns the removed notifications.
func (m *Manager) Delete(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	removed, err := m.storage.Delete(ctx, userID, ids...)
	if err != nil {
		return nil, err
	}
	for i := range removed {
		m.publish(ctx, realtime.Delete, nil, &removed[i])
	}
	return removed, nil
}

func (m *Manager) DeleteAll(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	removed, err := m.storage.DeleteAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range removed {
		m.publish(ctx, realtime.Delete, nil, &removed[i])
	}
	return removed, nil
}

func (m *Manager) prepare(n Notification) Notification {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.clock.Now()
	}
	return n
}

func (m *Manager) publishUpdates(ctx context.Context, updated []Notification) {
	for i := range updated {
		old := updated[i]
		old.Read = false
		old.ReadAt = nil
		m.publish(ctx, realtime.Update, &updated[i], &old)
	}
}

// publish is best effort: the row is already stored, so failures are only logged.
func (m *Manager) publish(ctx context.Context, typ realtime.ChangeType, newRow, oldRow *Notification) {
	if m.publisher == nil {
		return
	}

	ev := realtime.ChangeEvent{
		Type:       typ,
		Schema:     Schema,
		Table:      Table,
		CommitTime: m.clock.Now(),
	}
	var err error
	if newRow != nil {
		ev.New, err = json.Marshal(newRow)
	}
	if err == nil && oldRow != nil {
		ev.Old, err = json.Marshal(oldRow)
	}
	if err == nil {
		err = m.publisher.Publish(ctx, realtime.NewChange(ev))
	}
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish notification change",
			logger.EventType(string(typ)),
			logger.Error(err),
		)
	}
}
