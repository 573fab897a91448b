package realtime

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a Scope.
type State string

const (
	Disconnected State = "disconnected"
	Subscribing  State = "subscribing"
	Subscribed   State = "subscribed"
)

type scopeEvent string

const (
	eventConnect    scopeEvent = "connect"
	eventJoined     scopeEvent = "joined"
	eventLost       scopeEvent = "lost"
	eventDisconnect scopeEvent = "disconnect"
)

// scopeTransitions is the complete transition table; anything missing is rejected.
var scopeTransitions = map[State]map[scopeEvent]State{
	Disconnected: {
		eventConnect: Subscribing,
	},
	Subscribing: {
		eventJoined:     Subscribed,
		eventLost:       Disconnected,
		eventDisconnect: Disconnected,
	},
	Subscribed: {
		eventLost:       Disconnected,
		eventDisconnect: Disconnected,
	},
}

// Scope owns at most one live channel. It is safe for concurrent use.
type Scope struct {
	client *Client

	mu      sync.Mutex
	state   State
	key     string
	gen     uint64
	channel *Channel
}

func NewScope(client *Client) *Scope {
	return &Scope{client: client, state: Disconnected}
}

func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Key returns the channel name of the current connection, empty when disconnected.
func (s *Scope) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Connect opens channel key, lets setup register handlers and subscribes.
// It fails with ErrAlreadyConnected unless the scope is Disconnected.
// onStatus, when set, sees every status of this connection except the
// CLOSED that follows Disconnect.
func (s *Scope) Connect(ctx context.Context, key string, setup func(*Channel), onStatus StatusFunc) error {
	s.mu.Lock()
	if !s.fire(eventConnect) {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: scope is %s", ErrAlreadyConnected, state)
	}
	s.gen++
	gen := s.gen
	s.key = key
	ch := s.client.Channel(key)
	s.channel = ch
	s.mu.Unlock()

	if setup != nil {
		setup(ch)
	}

	return ch.Subscribe(ctx, func(status Status, err error) {
		if !s.observe(gen, status) {
			return
		}
		if onStatus != nil {
			onStatus(status, err)
		}
	})
}

// Disconnect releases the current channel synchronously. Disconnecting an
// already disconnected scope is a no-op.
func (s *Scope) Disconnect() {
	s.mu.Lock()
	ch := s.channel
	s.fire(eventDisconnect)
	s.channel = nil
	s.key = ""
	s.gen++
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
}

// Send broadcasts on the current channel.
func (s *Scope) Send(ctx context.Context, event string, payload any) error {
	s.mu.Lock()
	ch := s.channel
	subscribed := s.state == Subscribed
	s.mu.Unlock()

	if ch == nil || !subscribed {
		return ErrNotSubscribed
	}
	return ch.Send(ctx, event, payload)
}

// observe applies a channel status to the state machine. Statuses from a
// previous connection are ignored.
func (s *Scope) observe(gen uint64, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	switch status {
	case StatusSubscribed:
		s.fire(eventJoined)
	case StatusChannelError, StatusTimedOut:
		s.fire(eventLost)
		s.channel = nil
		s.key = ""
	}
	return true
}

func (s *Scope) fire(ev scopeEvent) bool {
	next, ok := scopeTransitions[s.state][ev]
	if !ok {
		return false
	}
	s.state = next
	return true
}
