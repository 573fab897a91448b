// Package api exposes plan limits, notifications, webhook endpoints and the
// realtime gateway over HTTP.
//
// Authentication happens upstream. The gateway in front of this service sets
// X-User-ID, X-Tenant-ID and X-User-Role on every request; handlers trust
// them and only check that they are present and well formed.
//
// Every JSON response uses the same envelope:
//
//	{"data": ..., "error": {"code": "...", "message": "..."}}
//
// GET /v1/realtime upgrades to a websocket. Clients send join, leave and
// broadcast frames; the server answers with status, message and error
// frames. A user may only join its own notifications:<user id> channel and
// typing-indicator:<ticket> channels, and change events are filtered to the
// caller's rows before they leave the server.
package api
