// Package realtime delivers database change events and ephemeral broadcasts
// to subscribed parties.
//
// A Transport moves Envelopes between topics. MemoryTransport fans out inside
// one process; RedisTransport uses Redis Pub/Sub so that several API
// instances share the same topics. PGChangeFeed turns Postgres NOTIFY
// payloads emitted by table triggers into change envelopes published on
// "changes:<schema>.<table>".
//
// Client and Channel provide the subscriber side:
//
//	ch := client.Channel("notifications:" + userID)
//	ch.OnChange(realtime.ChangeFilter{
//		Type:   realtime.Insert,
//		Schema: "public",
//		Table:  "user_notifications",
//		Filter: "user_id=eq." + userID,
//	}, onInsert)
//	err := ch.Subscribe(ctx, func(status realtime.Status, err error) { ... })
//
// Handlers of one channel run sequentially on a single goroutine. Broadcasts
// are never echoed back to the client that sent them. A channel handle that
// timed out, failed or was closed cannot be subscribed again; open a new one.
//
// Scope owns at most one channel at a time and tracks its lifecycle through
// the Disconnected, Subscribing and Subscribed states. Connecting a scope that
// is not disconnected fails with ErrAlreadyConnected, so a session can never
// hold two live subscriptions for the same concern. Losing the connection
// moves the scope back to Disconnected; nothing is retried automatically.
//
// Delivery is at-least-once and unordered. Consumers reconcile by re-reading
// the authoritative state.
package realtime
