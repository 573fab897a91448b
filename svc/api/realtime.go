package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/realtime"
	"github.com/cenety/saascore/svc/typing"
	"github.com/cenety/saascore/svc/unread"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 64 << 10
	sendBufferSize = 64
)

// Client frame types.
const (
	FrameJoin      = "join"
	FrameLeave     = "leave"
	FrameBroadcast = "broadcast"
)

// Server frame types.
const (
	FrameStatus  = "status"
	FrameMessage = "message"
	FrameError   = "error"
)

// ClientFrame is sent by websocket clients.
type ClientFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is sent to websocket clients. Message frames carry exactly one
// of Change and Broadcast.
type ServerFrame struct {
	Type      string                   `json:"type"`
	Topic     string                   `json:"topic,omitempty"`
	Status    realtime.Status          `json:"status,omitempty"`
	Change    *realtime.ChangeEvent    `json:"change,omitempty"`
	Broadcast *realtime.BroadcastEvent `json:"broadcast,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

type session struct {
	api    *API
	conn   *websocket.Conn
	client *realtime.Client
	user   uuid.UUID
	who    Identity
	send   chan ServerFrame
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	channels map[string]*realtime.Channel
}

func (a *API) gateway(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s := &session{
		api:      a,
		conn:     conn,
		client:   realtime.NewClient(a.transport, realtime.WithClientLogger(a.logger)),
		user:     who.UserID,
		who:      who,
		send:     make(chan ServerFrame, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[string]*realtime.Channel),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()

	s.readPump()
	s.cancel()
	s.closeChannels()
	<-done
}

func (s *session) readPump() {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f ClientFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.fail("", errors.Join(ErrInvalidRequest, err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.api.logger.WarnContext(s.ctx, "websocket read failed", logger.UserID(s.user), logger.Error(err))
			}
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		switch f.Type {
		case FrameJoin:
			s.join(f.Topic)
		case FrameLeave:
			s.leave(f.Topic)
		case FrameBroadcast:
			s.broadcast(f)
		default:
			s.fail(f.Topic, fmt.Errorf("%w: unknown frame type %q", ErrInvalidRequest, f.Type))
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case f := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.cancel()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// push queues a frame. A client that cannot keep up is disconnected.
func (s *session) push(f ServerFrame) {
	select {
	case s.send <- f:
	case <-s.ctx.Done():
	default:
		s.api.logger.WarnContext(s.ctx, "websocket client too slow, disconnecting", logger.UserID(s.user))
		s.cancel()
	}
}

func (s *session) fail(topic string, err error) {
	s.push(ServerFrame{Type: FrameError, Topic: topic, Error: err.Error()})
}

// authorize checks that the caller may join topic: its own notification
// channel, or a ticket's typing channel the ticket access hook allows.
func (s *session) authorize(topic string) error {
	if topic == unread.ChannelName(s.user) {
		return nil
	}
	ticket, ok := strings.CutPrefix(topic, typing.ChannelName(""))
	if !ok || ticket == "" {
		return ErrInvalidTopic
	}
	if s.api.ticketAccess == nil {
		return nil
	}
	allowed, err := s.api.ticketAccess(s.ctx, s.who, ticket)
	if err != nil {
		s.api.logger.WarnContext(s.ctx, "ticket access check failed",
			logger.UserID(s.user),
			logger.Topic(topic),
			logger.Error(err),
		)
		return ErrForbidden
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *session) join(topic string) {
	if err := s.authorize(topic); err != nil {
		s.fail(topic, err)
		return
	}

	s.mu.Lock()
	if _, ok := s.channels[topic]; ok {
		s.mu.Unlock()
		s.fail(topic, fmt.Errorf("%w: already joined", ErrInvalidRequest))
		return
	}
	ch := s.client.Channel(topic)
	s.channels[topic] = ch
	s.mu.Unlock()

	if topic == unread.ChannelName(s.user) {
		ch.OnChange(realtime.ChangeFilter{
			Schema: notifications.Schema,
			Table:  notifications.Table,
			Filter: "user_id=eq." + s.user.String(),
		}, func(_ context.Context, ev realtime.ChangeEvent) {
			s.push(ServerFrame{Type: FrameMessage, Topic: topic, Change: &ev})
		})
	} else {
		ch.OnBroadcast("*", func(_ context.Context, ev realtime.BroadcastEvent) {
			s.push(ServerFrame{Type: FrameMessage, Topic: topic, Broadcast: &ev})
		})
	}

	_ = ch.Subscribe(s.ctx, func(status realtime.Status, err error) {
		f := ServerFrame{Type: FrameStatus, Topic: topic, Status: status}
		if err != nil {
			f.Error = err.Error()
		}
		if status != realtime.StatusSubscribed {
			s.forget(topic, ch)
		}
		s.push(f)
	})
}

func (s *session) leave(topic string) {
	s.mu.Lock()
	ch, ok := s.channels[topic]
	delete(s.channels, topic)
	s.mu.Unlock()
	if !ok {
		s.fail(topic, fmt.Errorf("%w: not joined", ErrInvalidRequest))
		return
	}
	_ = ch.Close()
}

func (s *session) broadcast(f ClientFrame) {
	if f.Topic == unread.ChannelName(s.user) || f.Event == "" {
		s.fail(f.Topic, fmt.Errorf("%w: cannot broadcast on this topic", ErrInvalidRequest))
		return
	}
	s.mu.Lock()
	ch, ok := s.channels[f.Topic]
	s.mu.Unlock()
	if !ok {
		s.fail(f.Topic, fmt.Errorf("%w: not joined", ErrInvalidRequest))
		return
	}

	var payload any
	if len(f.Payload) > 0 {
		payload = f.Payload
	}
	if err := ch.Send(s.ctx, f.Event, payload); err != nil {
		s.fail(f.Topic, err)
	}
}

// forget drops ch if it is still the channel registered for topic, so the
// client can join again after a failure.
func (s *session) forget(topic string, ch *realtime.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[topic] == ch {
		delete(s.channels, topic)
	}
}

func (s *session) closeChannels() {
	s.mu.Lock()
	channels := s.channels
	s.channels = make(map[string]*realtime.Channel)
	s.mu.Unlock()
	for _, ch := range channels {
		_ = ch.Close()
	}
}
