package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/cenety/saascore/pkg/logger"
)

// RedisTransport shares topics between processes through Redis Pub/Sub.
// Envelopes travel as JSON. Delivery inherits Pub/Sub semantics: messages
// published while nobody is subscribed are lost.
type RedisTransport struct {
	client     redis.UniversalClient
	prefix     string
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[*redisSubscription]struct{}
	closed bool
}

type RedisOption func(*RedisTransport)

// WithChannelPrefix namespaces Redis channels, default "realtime:".
func WithChannelPrefix(prefix string) RedisOption {
	return func(t *RedisTransport) { t.prefix = prefix }
}

func WithRedisBuffer(n int) RedisOption {
	return func(t *RedisTransport) { t.bufferSize = max(n, 1) }
}

func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(t *RedisTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewRedisTransport(client redis.UniversalClient, opts ...RedisOption) *RedisTransport {
	t := &RedisTransport{
		client:     client,
		prefix:     "realtime:",
		bufferSize: 64,
		logger:     slog.Default(),
		subs:       make(map[*redisSubscription]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTransportClosed
	}

	ps := t.client.Subscribe(ctx, t.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Join(ErrChannel, err)
	}

	sub := &redisSubscription{
		ps:        ps,
		out:       make(chan Envelope, t.bufferSize),
		done:      make(chan struct{}),
		topic:     topic,
		transport: t,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ps.Close()
		return nil, ErrTransportClosed
	}
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	go sub.pump(t.logger)
	return sub, nil
}

func (t *RedisTransport) Publish(ctx context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := t.client.Publish(ctx, t.prefix+env.Topic, data).Err(); err != nil {
		return errors.Join(ErrChannel, err)
	}
	return nil
}

// Close ends all subscriptions opened through this transport.
// The Redis client itself is owned by the caller.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := make([]*redisSubscription, 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	clear(t.subs)
	t.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *RedisTransport) forget(sub *redisSubscription) {
	t.mu.Lock()
	delete(t.subs, sub)
	t.mu.Unlock()
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Envelope
	done      chan struct{}
	topic     string
	transport *RedisTransport
	once      sync.Once
	err       error
}

func (s *redisSubscription) C() <-chan Envelope { return s.out }

func (s *redisSubscription) Close() error {
	s.transport.forget(s)
	return s.shutdown()
}

func (s *redisSubscription) shutdown() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}

// pump closes out when the Redis channel ends. Full buffers drop messages.
func (s *redisSubscription) pump(log *slog.Logger) {
	defer close(s.done)
	defer close(s.out)

	for msg := range s.ps.Channel() {
		env, err := DecodeEnvelope([]byte(msg.Payload))
		if err != nil {
			log.Warn("dropping malformed realtime envelope",
				logger.Topic(s.topic),
				logger.Error(err),
			)
			continue
		}
		select {
		case s.out <- env:
		default:
			log.Warn("realtime subscriber is slow, dropping envelope", logger.Topic(s.topic))
		}
	}
}

// EncodeEnvelope marshals an envelope for the wire.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return data, nil
}

// DecodeEnvelope parses and validates an envelope received from the wire.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
