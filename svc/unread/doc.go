// Package unread keeps a live unread-notification count for one client
// session.
//
// A Counter owns one realtime.Scope subscribed to user_notifications rows of
// the current user. Inserts of unread rows bump the count and raise an
// Alert, deletes of unread rows lower it, and every event is followed by a
// re-fetch of the authoritative count, which always wins.
//
// Channel failures are logged and leave the counter Disconnected with the
// last reconciled count. Nothing retries automatically; the next Sync with a
// user id reconnects.
//
//	counter := unread.NewCounter(client, manager,
//		unread.WithAlerter(unread.AlerterFunc(showToast)),
//		unread.WithOnCount(updateBadge),
//	)
//	counter.Sync(ctx, userID) // call again whenever the session changes
//	defer counter.Disconnect()
package unread
