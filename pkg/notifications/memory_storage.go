package notifications

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps notifications in process memory.
// It has no change trigger; pair it with WithChangePublisher for realtime.
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[uuid.UUID][]Notification
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[uuid.UUID][]Notification),
		now:   time.Now,
	}
}

func (s *MemoryStorage) Create(_ context.Context, n Notification) error {
	if n.ID == uuid.Nil || n.UserID == uuid.Nil {
		return errors.Join(ErrFailedToStore, ErrInvalidNotification)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.users[n.UserID] = append(s.users[n.UserID], n)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, userID, id uuid.UUID) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.users[userID] {
		if n.ID == id {
			return n, nil
		}
	}
	return Notification{}, ErrNotificationNotFound
}

func (s *MemoryStorage) List(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	filtered := make([]Notification, 0, len(s.users[userID]))
	for _, n := range s.users[userID] {
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, n.Type) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, n)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(filtered, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset >= len(filtered) {
		return []Notification{}, nil
	}
	filtered = filtered[opts.Offset:]
	if len(filtered) > opts.limit() {
		filtered = filtered[:opts.limit()]
	}
	return filtered, nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.users[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	return s.markRead(userID, func(n Notification) bool { return slices.Contains(ids, n.ID) }), nil
}

func (s *MemoryStorage) MarkAllRead(_ context.Context, userID uuid.UUID) ([]Notification, error) {
	return s.markRead(userID, func(Notification) bool { return true }), nil
}

func (s *MemoryStorage) Delete(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error) {
	return s.remove(userID, func(n Notification) bool { return slices.Contains(ids, n.ID) }), nil
}

func (s *MemoryStorage) DeleteAll(_ context.Context, userID uuid.UUID) ([]Notification, error) {
	return s.remove(userID, func(Notification) bool { return true }), nil
}

func (s *MemoryStorage) PurgeRead(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for userID, list := range s.users {
		kept := list[:0]
		for _, n := range list {
			if n.Read && n.CreatedAt.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, n)
		}
		s.users[userID] = kept
	}
	return purged, nil
}

func (s *MemoryStorage) markRead(userID uuid.UUID, match func(Notification) bool) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var updated []Notification
	list := s.users[userID]
	for i := range list {
		if list[i].Read || !match(list[i]) {
			continue
		}
		list[i].MarkRead(now)
		updated = append(updated, list[i])
	}
	return updated
}

func (s *MemoryStorage) remove(userID uuid.UUID, match func(Notification) bool) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Notification
	kept := make([]Notification, 0, len(s.users[userID]))
	for _, n := range s.users[userID] {
		if match(n) {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	s.users[userID] = kept
	return removed
}
