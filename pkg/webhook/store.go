package webhook

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Endpoint is a tenant-configured webhook target.
type Endpoint struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []Event   `json:"events"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscribes reports whether the endpoint wants event.
func (e Endpoint) Subscribes(event Event) bool {
	return e.Active && slices.Contains(e.Events, event)
}

// Delivery is one recorded attempt.
type Delivery struct {
	WebhookID      uuid.UUID
	Event          Event
	Payload        json.RawMessage
	ResponseStatus int // zero when no response was received
	ResponseBody   string
	ErrorMessage   string
	RetryCount     int
	Success        bool
	DeliveredAt    time.Time
}

// Store persists endpoints and the delivery log.
type Store interface {
	Create(ctx context.Context, e Endpoint) error
	List(ctx context.Context, tenantID uuid.UUID) ([]Endpoint, error)
	// Subscribed returns the tenant's active endpoints subscribed to event.
	Subscribed(ctx context.Context, tenantID uuid.UUID, event Event) ([]Endpoint, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	RecordDelivery(ctx context.Context, d Delivery) error
	PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is a Store for tests and single-process development.
type MemoryStore struct {
	mu         sync.RWMutex
	endpoints  map[uuid.UUID]Endpoint
	deliveries []Delivery
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{endpoints: make(map[uuid.UUID]Endpoint)}
}

func (s *MemoryStore) Create(_ context.Context, e Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Events = slices.Clone(e.Events)
	s.endpoints[e.ID] = e
	return nil
}

func (s *MemoryStore) List(_ context.Context, tenantID uuid.UUID) ([]Endpoint, error) {
	return s.filter(func(e Endpoint) bool { return e.TenantID == tenantID }), nil
}

func (s *MemoryStore) Subscribed(_ context.Context, tenantID uuid.UUID, event Event) ([]Endpoint, error) {
	return s.filter(func(e Endpoint) bool { return e.TenantID == tenantID && e.Subscribes(event) }), nil
}

func (s *MemoryStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[id]
	if !ok || e.TenantID != tenantID {
		return ErrEndpointNotFound
	}
	delete(s.endpoints, id)
	return nil
}

func (s *MemoryStore) RecordDelivery(_ context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *MemoryStore) PurgeDeliveries(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.deliveries)
	s.deliveries = slices.DeleteFunc(s.deliveries, func(d Delivery) bool {
		return d.DeliveredAt.Before(cutoff)
	})
	return int64(before - len(s.deliveries)), nil
}

// Deliveries returns a copy of the delivery log.
func (s *MemoryStore) Deliveries() []Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.deliveries)
}

func (s *MemoryStore) filter(keep func(Endpoint) bool) []Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Endpoint
	for _, e := range s.endpoints {
		if keep(e) {
			e.Events = slices.Clone(e.Events)
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Endpoint) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
