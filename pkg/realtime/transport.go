package realtime

import "context"

// Subscription receives envelopes published on one topic.
// C is closed when the subscription ends, either through Close or because
// the transport dropped it.
type Subscription interface {
	C() <-chan Envelope
	Close() error
}

// Transport moves envelopes between publishers and topic subscribers.
type Transport interface {
	// Subscribe returns once the subscription is active.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// PublishFunc adapts a function to the publishing half of a Transport.
type PublishFunc func(ctx context.Context, env Envelope) error

func (f PublishFunc) Publish(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Publisher is the publishing half of a Transport.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}
