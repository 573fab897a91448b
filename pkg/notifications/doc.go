// Package notifications stores per-user in-app notifications and applies
// the owner's mutations to them.
//
// A Notification belongs to exactly one user. Its JSON form mirrors the
// user_notifications row, so the change events emitted by the database
// trigger decode straight into the same type.
//
// Manager validates input, persists through a Storage and, when configured
// with WithChangePublisher, publishes the matching change events itself.
// That is only needed for storages without a database trigger, such as
// MemoryStorage; PGStorage relies on the trigger installed by the migrations.
//
//	mgr := notifications.NewManager(notifications.NewPGStorage(pool))
//	n, err := mgr.Send(ctx, notifications.Notification{
//		UserID:  userID,
//		Type:    notifications.TypeSystem,
//		Title:   "Invoice paid",
//		Content: "Invoice 2024-001 was paid.",
//	})
package notifications
