package redis

import "errors"

var (
	ErrNoConnectionURL   = errors.New("realtime fan-out: REDIS_URL is empty")
	ErrInvalidURL        = errors.New("realtime fan-out: invalid redis URL")
	ErrNotReady          = errors.New("realtime fan-out: redis did not answer PING in time")
	ErrFanoutUnavailable = errors.New("realtime fan-out: redis pub/sub unavailable")
)
