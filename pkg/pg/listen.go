package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Listener holds a dedicated pool connection subscribed to one NOTIFY channel.
type Listener struct {
	conn    *pgxpool.Conn
	channel string
}

// Listen acquires a connection from pool and issues LISTEN on channel.
// The connection stays checked out until Close.
func Listen(ctx context.Context, pool *pgxpool.Pool, channel string) (*Listener, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToListen, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, errors.Join(ErrFailedToListen, err)
	}
	return &Listener{conn: conn, channel: channel}, nil
}

func (l *Listener) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return l.conn.Conn().WaitForNotification(ctx)
}

// Close unlistens and returns the connection to the pool.
func (l *Listener) Close(ctx context.Context) error {
	_, err := l.conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{l.channel}.Sanitize())
	l.conn.Release()
	return err
}
