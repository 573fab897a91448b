// Package webhook delivers signed event notifications to tenant-configured
// HTTP endpoints.
//
// Registry manages endpoints and refuses to create one once the tenant's
// webhooks plan limit is reached. Dispatcher fans an event out to every
// active endpoint subscribed to it; each delivery runs as a best-effort task
// and never reports failure to the code that triggered the event. Sender
// performs one delivery: a JSON POST signed with HMAC-SHA256, retried after
// 1s, 5s and 15s, guarded by a circuit breaker per endpoint URL. Every attempt
// is recorded in webhook_deliveries.
//
// Receivers verify requests with VerifySignature:
//
//	sig, err := webhook.ExtractSignatureHeaders(r.Header)
//	if err != nil {
//		return err
//	}
//	err = webhook.VerifySignature(secret, body, sig, 5*time.Minute)
package webhook
