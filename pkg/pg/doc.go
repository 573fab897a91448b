// Package pg wires PostgreSQL into the service through pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config and retries until the database
// answers a ping. Migrate applies the goose migrations embedded in the
// migrations subpackage, which define the plan, usage, notification and
// webhook tables together with the trigger that feeds realtime change events
// through NOTIFY. Listen checks out a dedicated connection for LISTEN.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
// DB is the subset of the pool that repositories depend on, which keeps
// them testable with pgxmock.
package pg
