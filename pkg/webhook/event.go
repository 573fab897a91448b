package webhook

import (
	"fmt"
	"time"
)

// Event names a webhook event type.
type Event string

const (
	DocumentCreated Event = "document.created"
	DocumentUpdated Event = "document.updated"
	DocumentDeleted Event = "document.deleted"

	QRCodeCreated Event = "qr_code.created"
	QRCodeUpdated Event = "qr_code.updated"
	QRCodeDeleted Event = "qr_code.deleted"
	QRCodeScanned Event = "qr_code.scanned"

	CustomerCreated Event = "customer.created"
	CustomerUpdated Event = "customer.updated"
	CustomerDeleted Event = "customer.deleted"

	SubscriptionCreated   Event = "subscription.created"
	SubscriptionUpdated   Event = "subscription.updated"
	SubscriptionCancelled Event = "subscription.cancelled"
)

var AllEvents = []Event{
	DocumentCreated, DocumentUpdated, DocumentDeleted,
	QRCodeCreated, QRCodeUpdated, QRCodeDeleted, QRCodeScanned,
	CustomerCreated, CustomerUpdated, CustomerDeleted,
	SubscriptionCreated, SubscriptionUpdated, SubscriptionCancelled,
}

var knownEvents = func() map[Event]struct{} {
	m := make(map[Event]struct{}, len(AllEvents))
	for _, e := range AllEvents {
		m[e] = struct{}{}
	}
	return m
}()

func (e Event) Valid() bool {
	_, ok := knownEvents[e]
	return ok
}

func ParseEvent(s string) (Event, error) {
	e := Event(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return e, nil
}

// Payload is the JSON body posted to endpoints.
type Payload struct {
	Event     Event     `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
