package typing

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/realtime"
)

const (
	// EventName is the broadcast event carrying a Signal.
	EventName = "typing"
	// StaleAfter is how long a signal keeps its sender in the typing set.
	StaleAfter = 3 * time.Second
	// SweepInterval is how often stale entries are purged regardless of timers.
	SweepInterval = time.Second
	// ThrottleInterval bounds outgoing signals to one per interval.
	ThrottleInterval = time.Second
)

// ChannelName is the broadcast channel of a ticket conversation.
func ChannelName(ticketID string) string {
	return "typing-indicator:" + ticketID
}

// Participant identifies the local user.
type Participant struct {
	ID   uuid.UUID
	Name string
}

// Signal is the wire payload of one typing event.
type Signal struct {
	TicketID  string    `json:"ticket_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingUser is a remote participant seen typing.
type TypingUser struct {
	UserID     uuid.UUID `json:"user_id"`
	UserName   string    `json:"user_name"`
	ReceivedAt time.Time `json:"received_at"`
}

type entry struct {
	user  TypingUser
	timer clockwork.Timer
}

// Indicator tracks typing state for one ticket. It is safe for concurrent use.
type Indicator struct {
	scope    *realtime.Scope
	self     Participant
	clock    clockwork.Clock
	limiter  *rate.Limiter
	logger   *slog.Logger
	onChange func([]TypingUser)

	mu          sync.Mutex
	ticketID    string
	users       map[uuid.UUID]*entry
	typingUntil time.Time
	stopSweep   chan struct{}
	sweepDone   chan struct{}
}

type Option func(*Indicator)

// WithClock is used for the throttle, the staleness window and the sweep.
func WithClock(c clockwork.Clock) Option {
	return func(i *Indicator) {
		if c != nil {
			i.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Indicator) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithOnChange is called with the current typing users whenever the set changes.
func WithOnChange(fn func([]TypingUser)) Option {
	return func(i *Indicator) { i.onChange = fn }
}

func NewIndicator(client *realtime.Client, self Participant, opts ...Option) *Indicator {
	i := &Indicator{
		scope:   realtime.NewScope(client),
		self:    self,
		clock:   clockwork.NewRealClock(),
		limiter: rate.NewLimiter(rate.Every(ThrottleInterval), 1),
		logger:  slog.Default(),
		users:   make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Join subscribes to ticketID's channel. Joining the current ticket again is
// a no-op; joining another ticket leaves the current one first.
func (i *Indicator) Join(ctx context.Context, ticketID string) error {
	i.mu.Lock()
	if i.ticketID == ticketID && i.scope.State() != realtime.Disconnected {
		i.mu.Unlock()
		return nil
	}
	i.mu.Unlock()

	i.Leave()

	i.mu.Lock()
	i.ticketID = ticketID
	i.mu.Unlock()

	log := i.logger.With(slog.String("ticket_id", ticketID))
	err := i.scope.Connect(ctx, ChannelName(ticketID),
		func(ch *realtime.Channel) {
			ch.OnBroadcast(EventName, i.receive)
		},
		func(status realtime.Status, err error) {
			switch status {
			case realtime.StatusSubscribed:
				i.startSweep()
			case realtime.StatusChannelError, realtime.StatusTimedOut:
				log.DebugContext(ctx, "typing channel lost", logger.Status(string(status)), logger.Error(err))
				i.stop()
			}
		},
	)
	return err
}

// Leave unsubscribes and forgets every typing user.
func (i *Indicator) Leave() {
	i.scope.Disconnect()
	i.stop()

	i.mu.Lock()
	i.ticketID = ""
	i.typingUntil = time.Time{}
	i.mu.Unlock()
}

func (i *Indicator) State() realtime.State {
	return i.scope.State()
}

// SendTypingEvent broadcasts the local user's signal. It reports whether a
// signal was sent; calls within ThrottleInterval of the last one and calls
// while not subscribed send nothing. Delivery is not acknowledged.
func (i *Indicator) SendTypingEvent(ctx context.Context) bool {
	if i.scope.State() != realtime.Subscribed {
		return false
	}

	now := i.clock.Now()
	if !i.limiter.AllowN(now, 1) {
		return false
	}

	i.mu.Lock()
	sig := Signal{TicketID: i.ticketID, UserID: i.self.ID, UserName: i.self.Name, Timestamp: now.UTC()}
	i.mu.Unlock()

	if err := i.scope.Send(ctx, EventName, sig); err != nil {
		i.logger.DebugContext(ctx, "typing signal not sent", logger.Error(err))
		return false
	}
	return true
}

// SetTyping marks the local user as typing for StaleAfter and sends a
// throttled signal. SetTyping(ctx, false) clears the state immediately.
func (i *Indicator) SetTyping(ctx context.Context, typing bool) {
	i.mu.Lock()
	if typing {
		i.typingUntil = i.clock.Now().Add(StaleAfter)
	} else {
		i.typingUntil = time.Time{}
	}
	i.mu.Unlock()

	if typing {
		i.SendTypingEvent(ctx)
	}
}

// IsTyping reports the local user's typing state.
func (i *Indicator) IsTyping() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.clock.Now().Before(i.typingUntil)
}

// TypingUsers returns remote users whose last signal is younger than
// StaleAfter, ordered by name.
func (i *Indicator) TypingUsers() []TypingUser {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.freshLocked(i.clock.Now())
}

func (i *Indicator) freshLocked(now time.Time) []TypingUser {
	out := make([]TypingUser, 0, len(i.users))
	for _, e := range i.users {
		if now.Sub(e.user.ReceivedAt) < StaleAfter {
			out = append(out, e.user)
		}
	}
	slices.SortFunc(out, func(a, b TypingUser) int {
		if c := strings.Compare(a.UserName, b.UserName); c != 0 {
			return c
		}
		return strings.Compare(a.UserID.String(), b.UserID.String())
	})
	return out
}

func (i *Indicator) receive(ctx context.Context, ev realtime.BroadcastEvent) {
	var sig Signal
	if err := ev.Decode(&sig); err != nil || sig.UserID == uuid.Nil {
		i.logger.DebugContext(ctx, "ignoring malformed typing signal", logger.Error(err))
		return
	}
	if sig.UserID == i.self.ID {
		return
	}

	i.mu.Lock()
	now := i.clock.Now()
	e, ok := i.users[sig.UserID]
	if !ok {
		e = &entry{}
		i.users[sig.UserID] = e
	}
	e.user = TypingUser{UserID: sig.UserID, UserName: sig.UserName, ReceivedAt: now}
	if e.timer != nil {
		e.timer.Stop()
	}
	userID := sig.UserID
	e.timer = i.clock.AfterFunc(StaleAfter, func() { i.expire(userID) })
	snapshot := i.freshLocked(now)
	i.mu.Unlock()

	i.notify(snapshot)
}

// expire removes userID if its latest signal is stale.
func (i *Indicator) expire(userID uuid.UUID) {
	i.mu.Lock()
	e, ok := i.users[userID]
	now := i.clock.Now()
	if !ok || now.Sub(e.user.ReceivedAt) < StaleAfter {
		i.mu.Unlock()
		return
	}
	delete(i.users, userID)
	snapshot := i.freshLocked(now)
	i.mu.Unlock()

	i.notify(snapshot)
}

func (i *Indicator) sweep() {
	i.mu.Lock()
	now := i.clock.Now()
	removed := false
	for id, e := range i.users {
		if now.Sub(e.user.ReceivedAt) >= StaleAfter {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(i.users, id)
			removed = true
		}
	}
	snapshot := i.freshLocked(now)
	i.mu.Unlock()

	if removed {
		i.notify(snapshot)
	}
}

// startSweep runs on SUBSCRIBED, before the channel can report a loss, and
// only while the scope is still subscribed.
func (i *Indicator) startSweep() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopSweep != nil || i.scope.State() != realtime.Subscribed {
		return
	}

	stop, done := make(chan struct{}), make(chan struct{})
	i.stopSweep, i.sweepDone = stop, done
	ticker := i.clock.NewTicker(SweepInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				i.sweep()
			}
		}
	}()
}

// stop halts the sweep and empties the typing set.
func (i *Indicator) stop() {
	i.mu.Lock()
	stop, done := i.stopSweep, i.sweepDone
	i.stopSweep, i.sweepDone = nil, nil
	hadUsers := len(i.users) > 0
	for id, e := range i.users {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(i.users, id)
	}
	i.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if hadUsers {
		i.notify(nil)
	}
}

func (i *Indicator) notify(users []TypingUser) {
	if i.onChange != nil {
		i.onChange(users)
	}
}
