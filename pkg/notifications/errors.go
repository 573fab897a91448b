package notifications

import "errors"

var (
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	ErrInvalidNotification  = errors.New("notifications: invalid notification")
	ErrInvalidType          = errors.New("notifications: invalid type")
	ErrFailedToStore        = errors.New("notifications: failed to store notification")
)
