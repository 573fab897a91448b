package subscription

import "errors"

var (
	ErrUnknownTier      = errors.New("subscription: unknown plan tier")
	ErrFailedToLoadPlan = errors.New("subscription: failed to load user plan")
	ErrMissingUserID    = errors.New("subscription: user id is required")
)
