// Package logger builds *slog.Logger instances for saascore services.
//
// New takes functional options for format, level and static attributes, and
// wraps the handler in a LogHandlerDecorator that pulls request-scoped values
// (request id, user id) out of the context on every record.
//
// Attribute helpers (Error, UserID, TenantID, Resource, Topic, ...) keep key
// names consistent across packages:
//
//	log.LogAttrs(ctx, slog.LevelWarn, "usage count failed, allowing",
//	    logger.TenantID(tenantID),
//	    logger.Resource(res),
//	    logger.Error(err),
//	)
package logger
