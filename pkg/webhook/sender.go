package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// MaxResponseBody is how much of a response body is kept for the delivery log.
const MaxResponseBody = 1000

// DefaultRetryDelays are the waits before the first, second and third retry.
var DefaultRetryDelays = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// Attempt describes one HTTP delivery attempt. Number starts at 0 for the
// first try, matching the retry_count column.
type Attempt struct {
	Number     int
	StatusCode int
	Body       string
	Err        error
	Duration   time.Duration
}

func (a Attempt) Success() bool { return a.Err == nil }

// Request is one signed delivery.
type Request struct {
	URL     string
	Secret  string
	Event   Event
	Payload []byte
}

// Sender posts payloads with retries and a circuit breaker per URL.
type Sender struct {
	client      *http.Client
	clock       clockwork.Clock
	delays      []time.Duration
	timeout     time.Duration
	userAgent   string
	tripAfter   uint32
	openTimeout time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[Attempt]
}

type SenderOption func(*Sender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRetryDelays replaces the retry schedule; its length is the retry count.
func WithRetryDelays(delays ...time.Duration) SenderOption {
	return func(s *Sender) { s.delays = delays }
}

// WithRequestTimeout bounds a single attempt. Default 30s.
func WithRequestTimeout(d time.Duration) SenderOption {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreaker opens an endpoint's circuit after failures consecutive
// retryable failures and probes it again after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) SenderOption {
	return func(s *Sender) {
		if failures > 0 {
			s.tripAfter = failures
		}
		if cooldown > 0 {
			s.openTimeout = cooldown
		}
	}
}

func WithSenderClock(c clockwork.Clock) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		clock:       clockwork.NewRealClock(),
		delays:      DefaultRetryDelays,
		timeout:     30 * time.Second,
		userAgent:   "saascore-webhook/1.0",
		tripAfter:   5,
		openTimeout: time.Minute,
		breakers:    make(map[string]*gobreaker.CircuitBreaker[Attempt]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers req, calling onAttempt after every try including the last.
// Permanent failures (4xx other than 408, 425 and 429) stop retrying.
func (s *Sender) Send(ctx context.Context, req Request, onAttempt func(Attempt)) error {
	if err := validateURL(req.URL); err != nil {
		return err
	}
	if len(req.Payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	cb := s.breaker(req.URL)
	var lastErr error
	for n := 0; n <= len(s.delays); n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(s.delays[n-1]):
			}
		}

		attempt, err := cb.Execute(func() (Attempt, error) {
			a := s.attempt(ctx, req)
			if a.Err != nil && !isPermanent(a.StatusCode) {
				return a, a.Err
			}
			return a, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			attempt = Attempt{Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
		}
		attempt.Number = n
		if onAttempt != nil {
			onAttempt(attempt)
		}

		if attempt.Err == nil {
			return nil
		}
		lastErr = attempt.Err
		if errors.Is(attempt.Err, ErrCircuitOpen) {
			return attempt.Err
		}
		if isPermanent(attempt.StatusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, attempt.Err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrWebhookDeliveryFailed, len(s.delays)+1, lastErr)
}

func (s *Sender) attempt(ctx context.Context, req Request) Attempt {
	start := s.clock.Now()
	a := Attempt{}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		a.Err = fmt.Errorf("%w: %w", ErrInvalidURL, err)
		return a
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set(HeaderEvent, string(req.Event))

	sig, err := SignPayload(req.Secret, req.Payload, s.clock.Now())
	if err != nil {
		a.Err = err
		return a
	}
	sig.Apply(httpReq.Header)

	resp, err := s.client.Do(httpReq)
	a.Duration = s.clock.Since(start)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			a.Err = fmt.Errorf("%w: %w", ErrTimeout, err)
		} else {
			a.Err = fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
		}
		return a
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	a.StatusCode = resp.StatusCode
	a.Body = string(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.Err = fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return a
}

func (s *Sender) breaker(endpoint string) *gobreaker.CircuitBreaker[Attempt] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[endpoint]; ok {
		return cb
	}
	tripAfter := s.tripAfter
	cb := gobreaker.NewCircuitBreaker[Attempt](gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     s.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
	})
	s.breakers[endpoint] = cb
	return cb
}

// isPermanent reports 4xx statuses that will not change on retry.
func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
