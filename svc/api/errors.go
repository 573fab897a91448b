package api

import "errors"

var (
	ErrUnauthenticated = errors.New("missing or invalid user identity")
	ErrNoTenant        = errors.New("missing or invalid tenant identity")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidTopic    = errors.New("topic not allowed")
	ErrStart           = errors.New("failed to start HTTP server")
	ErrShutdown        = errors.New("failed to shutdown HTTP server gracefully")
)
