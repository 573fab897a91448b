package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes database changes from client broadcasts.
type Kind string

const (
	KindChange    Kind = "change"
	KindBroadcast Kind = "broadcast"
)

// ChangeType is the row operation that produced a change event.
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// ChangeEvent carries the new and old row images as raw JSON.
// New is empty for deletes, Old is empty for inserts.
type ChangeEvent struct {
	Type       ChangeType      `json:"type"`
	Schema     string          `json:"schema"`
	Table      string          `json:"table"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_time,omitzero"`
	// Truncated rows carry only key columns because the full change did not
	// fit into one database notification.
	Truncated bool `json:"truncated,omitempty"`
}

// Row returns the row image a filter applies to: Old for deletes, New otherwise.
func (e ChangeEvent) Row() json.RawMessage {
	if e.Type == Delete {
		return e.Old
	}
	return e.New
}

// DecodeNew unmarshals the new row image into v.
func (e ChangeEvent) DecodeNew(v any) error {
	if len(e.New) == 0 {
		return fmt.Errorf("%w: no new row", ErrInvalidPayload)
	}
	return json.Unmarshal(e.New, v)
}

// DecodeOld unmarshals the old row image into v.
func (e ChangeEvent) DecodeOld(v any) error {
	if len(e.Old) == 0 {
		return fmt.Errorf("%w: no old row", ErrInvalidPayload)
	}
	return json.Unmarshal(e.Old, v)
}

// BroadcastEvent is an ephemeral client-to-client message.
type BroadcastEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e BroadcastEvent) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty broadcast payload", ErrInvalidPayload)
	}
	return json.Unmarshal(e.Payload, v)
}

// Envelope is the unit moved by a Transport.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	Topic     string          `json:"topic"`
	Sender    string          `json:"sender,omitempty"`
	Change    *ChangeEvent    `json:"change,omitempty"`
	Broadcast *BroadcastEvent `json:"broadcast,omitempty"`
}

// Validate reports whether the envelope carries the payload its kind promises.
func (e Envelope) Validate() error {
	if e.Topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidEnvelope)
	}
	switch e.Kind {
	case KindChange:
		if e.Change == nil {
			return fmt.Errorf("%w: change envelope without change", ErrInvalidEnvelope)
		}
	case KindBroadcast:
		if e.Broadcast == nil || e.Broadcast.Event == "" {
			return fmt.Errorf("%w: broadcast envelope without event", ErrInvalidEnvelope)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, e.Kind)
	}
	return nil
}

// ChangeTopic is the topic change events for schema.table are published on.
func ChangeTopic(schema, table string) string {
	if schema == "" {
		schema = "public"
	}
	return "changes:" + schema + "." + table
}

// NewBroadcast builds a broadcast envelope, marshaling payload to JSON.
func NewBroadcast(topic, sender, event string, payload any) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
		}
		raw = b
	}
	env := Envelope{
		Kind:      KindBroadcast,
		Topic:     topic,
		Sender:    sender,
		Broadcast: &BroadcastEvent{Event: event, Payload: raw},
	}
	return env, env.Validate()
}

// NewChange builds a change envelope on the table's change topic.
func NewChange(ev ChangeEvent) Envelope {
	return Envelope{
		Kind:   KindChange,
		Topic:  ChangeTopic(ev.Schema, ev.Table),
		Change: &ev,
	}
}
