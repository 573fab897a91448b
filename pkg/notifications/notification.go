package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification.
type Type string

const (
	TypeWelcome    Type = "WELCOME"
	TypeSystem     Type = "SYSTEM"
	TypeUpdate     Type = "UPDATE"
	TypeInfo       Type = "INFO"
	TypeNewsletter Type = "NEWSLETTER"
)

// AllTypes lists every notification type.
var AllTypes = []Type{TypeWelcome, TypeSystem, TypeUpdate, TypeInfo, TypeNewsletter}

func (t Type) Valid() bool {
	switch t {
	case TypeWelcome, TypeSystem, TypeUpdate, TypeInfo, TypeNewsletter:
		return true
	}
	return false
}

// ParseType is case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Notification is one user_notifications row.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id" validate:"required"`
	Type      Type       `json:"type" validate:"required,oneof=WELCOME SYSTEM UPDATE INFO NEWSLETTER"`
	Title     string     `json:"title" validate:"required,max=200"`
	Content   string     `json:"content" validate:"required,max=5000"`
	Read      bool       `json:"is_read"`
	ActionURL string     `json:"action_url,omitempty" validate:"omitempty,startswith=/|url"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// MarkRead sets the read flag and timestamp. Already read notifications keep
// their original timestamp.
func (n *Notification) MarkRead(at time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &at
}
