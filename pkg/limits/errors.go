package limits

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidResourceType = errors.New("limits.errors.invalid_resource_type")
	ErrLimitExceeded       = errors.New("limits.errors.limit_exceeded")
	ErrInvalidPeriod       = errors.New("limits.errors.invalid_period")
	ErrNoCounterRegistered = errors.New("limits.errors.no_counter_registered")
	ErrInvalidFallback     = errors.New("limits.errors.invalid_fallback_table")
)

// LimitExceededError is returned by Enforcer.Enforce when a tenant is at or
// over its limit. It matches ErrLimitExceeded with errors.Is.
type LimitExceededError struct {
	Decision Decision
}

func (e *LimitExceededError) Error() string {
	if e.Decision.Message != "" {
		return e.Decision.Message
	}
	return fmt.Sprintf("limit of %s %s reached", e.Decision.Limit, e.Decision.Resource)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// AsLimitExceeded extracts the decision from a limit error.
func AsLimitExceeded(err error) (Decision, bool) {
	var le *LimitExceededError
	if errors.As(err, &le) {
		return le.Decision, true
	}
	return Decision{}, false
}
