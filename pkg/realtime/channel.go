package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/logger"
)

// Status is reported to the callback passed to Channel.Subscribe.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

type (
	StatusFunc       func(status Status, err error)
	ChangeHandler    func(ctx context.Context, ev ChangeEvent)
	BroadcastHandler func(ctx context.Context, ev BroadcastEvent)
)

// Client creates channels on top of a Transport. Each client has an identity
// used to suppress echoes of its own broadcasts.
type Client struct {
	transport Transport
	id        string
	timeout   time.Duration
	logger    *slog.Logger
}

type ClientOption func(*Client)

// WithClientID overrides the random client identity.
func WithClientID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.id = id
		}
	}
}

// WithSubscribeTimeout bounds how long Subscribe waits for the transport. Default 10s.
func WithSubscribeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		id:        uuid.NewString(),
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string { return c.id }

// Channel returns a new, unsubscribed channel handle.
func (c *Client) Channel(name string) *Channel {
	return &Channel{
		client:     c,
		name:       name,
		broadcasts: make(map[string][]BroadcastHandler),
		done:       make(chan struct{}),
	}
}

type channelState uint8

const (
	channelIdle channelState = iota
	channelJoining
	channelJoined
	channelSpent
)

// Channel is a single-use subscription handle. Register handlers before
// calling Subscribe. Close must not be called from inside a handler.
type Channel struct {
	client *Client
	name   string

	mu         sync.Mutex
	state      channelState
	changes    []changeBinding
	broadcasts map[string][]BroadcastHandler
	subs       []Subscription
	cancel     context.CancelFunc
	status     StatusFunc
	done       chan struct{}
	bindErr    error
}

func (ch *Channel) Name() string { return ch.name }

// OnChange registers a handler for change events matching filter.
func (ch *Channel) OnChange(filter ChangeFilter, handler ChangeHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	column, value, err := filter.parse()
	if err != nil {
		ch.bindErr = errors.Join(ch.bindErr, err)
		return ch
	}
	ch.changes = append(ch.changes, changeBinding{
		filter:  filter,
		topic:   filter.topic(),
		column:  column,
		value:   value,
		handler: handler,
	})
	return ch
}

// OnBroadcast registers a handler for broadcasts with the given event name.
// The event "*" matches every broadcast.
func (ch *Channel) OnBroadcast(event string, handler BroadcastHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.broadcasts[event] = append(ch.broadcasts[event], handler)
	return ch
}

// Subscribe joins every topic the registered handlers need and reports the
// outcome to status. The status callback keeps receiving CHANNEL_ERROR or
// CLOSED later in the channel's life.
func (ch *Channel) Subscribe(ctx context.Context, status StatusFunc) error {
	if status == nil {
		status = func(Status, error) {}
	}

	ch.mu.Lock()
	if ch.state != channelIdle {
		ch.mu.Unlock()
		return ErrChannelSpent
	}
	if ch.bindErr != nil {
		ch.state = channelSpent
		err := ch.bindErr
		ch.mu.Unlock()
		status(StatusChannelError, err)
		return err
	}
	ch.state = channelJoining
	topics := ch.topicsLocked()
	ch.mu.Unlock()

	joinCtx, cancelJoin := context.WithTimeout(ctx, ch.client.timeout)
	defer cancelJoin()

	subs := make([]Subscription, 0, len(topics))
	for _, topic := range topics {
		sub, err := ch.client.transport.Subscribe(joinCtx, topic)
		if err != nil {
			closeAll(subs)
			ch.mu.Lock()
			ch.state = channelSpent
			ch.mu.Unlock()

			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				status(StatusTimedOut, ErrTimedOut)
				return ErrTimedOut
			}
			err = fmt.Errorf("%w: %s: %w", ErrChannel, topic, err)
			status(StatusChannelError, err)
			return err
		}
		subs = append(subs, sub)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	ch.mu.Lock()
	if ch.state != channelJoining {
		// Closed while joining.
		ch.mu.Unlock()
		cancel()
		closeAll(subs)
		return ErrChannelSpent
	}
	ch.state = channelJoined
	ch.subs = subs
	ch.cancel = cancel
	ch.status = status
	ch.mu.Unlock()

	status(StatusSubscribed, nil)

	inbox := make(chan Envelope, 16)
	failed := make(chan struct{})
	var failOnce sync.Once
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for env := range sub.C() {
				select {
				case inbox <- env:
				case <-runCtx.Done():
					return
				}
			}
			if runCtx.Err() == nil {
				failOnce.Do(func() { close(failed) })
			}
		}()
	}

	go func() {
		defer close(ch.done)
		ch.run(runCtx, inbox, failed)
		cancel()
		wg.Wait()
	}()

	return nil
}

// Send broadcasts event to everyone subscribed to this channel except the sender.
func (ch *Channel) Send(ctx context.Context, event string, payload any) error {
	ch.mu.Lock()
	joined := ch.state == channelJoined
	ch.mu.Unlock()
	if !joined {
		return ErrNotSubscribed
	}

	env, err := NewBroadcast(ch.name, ch.client.id, event, payload)
	if err != nil {
		return err
	}
	return ch.client.transport.Publish(ctx, env)
}

// Close releases the subscription. Once it returns no handler is running or
// will run. Close is idempotent.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	switch ch.state {
	case channelIdle, channelJoining:
		ch.state = channelSpent
		ch.mu.Unlock()
		return nil
	case channelSpent:
		started := ch.cancel != nil
		ch.mu.Unlock()
		if started {
			<-ch.done
		}
		return nil
	}
	ch.state = channelSpent
	subs, cancel, status := ch.subs, ch.cancel, ch.status
	ch.mu.Unlock()

	cancel()
	closeAll(subs)
	<-ch.done
	status(StatusClosed, nil)
	return nil
}

func (ch *Channel) topicsLocked() []string {
	seen := make(map[string]struct{})
	var topics []string
	add := func(t string) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}
	if len(ch.broadcasts) > 0 || len(ch.changes) == 0 {
		add(ch.name)
	}
	for _, b := range ch.changes {
		add(b.topic)
	}
	return topics
}

func (ch *Channel) run(ctx context.Context, inbox <-chan Envelope, failed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-inbox:
			ch.dispatch(ctx, env)
		case <-failed:
			if ctx.Err() != nil {
				return
			}
			ch.fail()
			return
		}
	}
}

func (ch *Channel) fail() {
	ch.mu.Lock()
	if ch.state != channelJoined {
		ch.mu.Unlock()
		return
	}
	ch.state = channelSpent
	subs, cancel, status := ch.subs, ch.cancel, ch.status
	ch.mu.Unlock()

	cancel()
	closeAll(subs)
	ch.client.logger.Warn("realtime channel dropped", logger.Topic(ch.name))
	status(StatusChannelError, fmt.Errorf("%w: %s: subscription ended", ErrChannel, ch.name))
}

func (ch *Channel) dispatch(ctx context.Context, env Envelope) {
	ch.mu.Lock()
	changes := ch.changes
	var handlers []BroadcastHandler
	if env.Kind == KindBroadcast && env.Broadcast != nil {
		handlers = append(handlers, ch.broadcasts[env.Broadcast.Event]...)
		handlers = append(handlers, ch.broadcasts["*"]...)
	}
	ch.mu.Unlock()

	switch env.Kind {
	case KindBroadcast:
		if env.Topic != ch.name || env.Sender == ch.client.id {
			return
		}
		for _, h := range handlers {
			ch.safely(func() { h(ctx, *env.Broadcast) })
		}
	case KindChange:
		if env.Change == nil {
			return
		}
		for _, b := range changes {
			if b.matches(*env.Change) {
				ch.safely(func() { b.handler(ctx, *env.Change) })
			}
		}
	}
}

func (ch *Channel) safely(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			ch.client.logger.Error("realtime handler panicked",
				logger.Topic(ch.name),
				slog.Any("panic", p),
			)
		}
	}()
	fn()
}

func closeAll(subs []Subscription) {
	for _, s := range subs {
		_ = s.Close()
	}
}
