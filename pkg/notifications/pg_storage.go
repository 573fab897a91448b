package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cenety/saascore/pkg/pg"
)

// PGStorage stores notifications in user_notifications.
type PGStorage struct {
	db pg.DB
}

func NewPGStorage(db pg.DB) *PGStorage {
	return &PGStorage{db: db}
}

const notificationColumns = `id, user_id, type, title, content, is_read, action_url, read_at, created_at`

const (
	insertNotificationQuery = `INSERT INTO user_notifications (id, user_id, type, title, content, is_read, action_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getNotificationQuery = `SELECT ` + notificationColumns + `
FROM user_notifications
WHERE user_id = $1 AND id = $2`

	listNotificationsQuery = `SELECT ` + notificationColumns + `
FROM user_notifications
WHERE user_id = $1
	AND ($2::boolean = FALSE OR NOT is_read)
	AND (cardinality($3::text[]) = 0 OR type = ANY($3::text[]))
	AND ($4::timestamptz IS NULL OR created_at >= $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

	countUnreadQuery = `SELECT count(*) FROM user_notifications WHERE user_id = $1 AND NOT is_read`

	markReadQuery = `UPDATE user_notifications SET is_read = TRUE, read_at = now()
WHERE user_id = $1 AND id = ANY($2::uuid[]) AND NOT is_read
RETURNING ` + notificationColumns

	markAllReadQuery = `UPDATE user_notifications SET is_read = TRUE, read_at = now()
WHERE user_id = $1 AND NOT is_read
RETURNING ` + notificationColumns

	deleteNotificationsQuery = `DELETE FROM user_notifications
WHERE user_id = $1 AND id = ANY($2::uuid[])
RETURNING ` + notificationColumns

	deleteAllNotificationsQuery = `DELETE FROM user_notifications
WHERE user_id = $1
RETURNING ` + notificationColumns

	purgeReadQuery = `DELETE FROM user_notifications WHERE is_read AND created_at < $1`
)

func (s *PGStorage) Create(ctx context.Context, n Notification) error {
	_, err := s.db.Exec(ctx, insertNotificationQuery,
		n.ID, n.UserID, string(n.Type), n.Title, n.Content, n.Read, nullable(n.ActionURL), n.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrFailedToStore, err)
	}
	return nil
}

func (s *PGStorage) Get(ctx context.Context, userID, id uuid.UUID) (Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, getNotificationQuery, userID, id))
	if pg.IsNotFoundError(err) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

func (s *PGStorage) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	types := make([]string, len(opts.Types))
	for i, t := range opts.Types {
		types[i] = string(t)
	}
	return s.collect(ctx, listNotificationsQuery,
		userID, opts.OnlyUnread, types, opts.Since, opts.limit(), max(opts.Offset, 0),
	)
}

func (s *PGStorage) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	if err := s.db.QueryRow(ctx, countUnreadQuery, userID).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *PGStorage) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.collect(ctx, markReadQuery, userID, ids)
}

func (s *PGStorage) MarkAllRead(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	return s.collect(ctx, markAllReadQuery, userID)
}

func (s *PGStorage) Delete(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.collect(ctx, deleteNotificationsQuery, userID, ids)
}

func (s *PGStorage) DeleteAll(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	return s.collect(ctx, deleteAllNotificationsQuery, userID)
}

func (s *PGStorage) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, purgeReadQuery, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGStorage) collect(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		return scanNotification(row)
	})
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n         Notification
		typ       string
		actionURL *string
	)
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Content, &n.Read, &actionURL, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	n.Type = Type(typ)
	if actionURL != nil {
		n.ActionURL = *actionURL
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
