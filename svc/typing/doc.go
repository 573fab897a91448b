// Package typing shows who is typing in a support ticket conversation.
//
// An Indicator joins the ticket's broadcast channel
// ("typing-indicator:<ticket id>") and exchanges "typing" signals with the
// other participants. Nothing is persisted: a dropped channel simply empties
// the set of typing users.
//
// Outgoing signals are throttled to one per second. A received signal keeps
// its sender in TypingUsers for three seconds; a per-user timer and a
// once-a-second sweep both purge stale entries.
//
//	ind := typing.NewIndicator(client, typing.Participant{ID: userID, Name: "Ada"})
//	if err := ind.Join(ctx, ticketID); err != nil {
//		log.Warn("typing indicator unavailable", logger.Error(err))
//	}
//	defer ind.Leave()
//
//	ind.SetTyping(ctx, true) // on every keystroke
package typing
