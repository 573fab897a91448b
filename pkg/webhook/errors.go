package webhook

import "errors"

var (
	ErrWebhookDeliveryFailed = errors.New("webhook delivery failed")
	ErrPermanentFailure      = errors.New("permanent webhook failure")
	ErrTemporaryFailure      = errors.New("temporary webhook failure")
	ErrCircuitOpen           = errors.New("webhook circuit breaker is open")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrInvalidURL            = errors.New("invalid webhook URL")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidEndpoint       = errors.New("invalid webhook endpoint")
	ErrUnknownEvent          = errors.New("unknown webhook event")
	ErrEndpointNotFound      = errors.New("webhook endpoint not found")
	ErrTimeout               = errors.New("webhook request timeout")
)
