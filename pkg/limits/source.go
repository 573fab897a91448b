package limits

import (
	"context"
	"maps"
	"sync"
)

// Source looks up a plan's configured limit for a resource. ok is false when
// no row exists for the pair.
type Source interface {
	Limit(ctx context.Context, planKey string, res Resource) (a Allowance, ok bool, err error)
}

// MemorySource is a Source backed by a map keyed by plan key.
type MemorySource struct {
	mu    sync.RWMutex
	plans map[string]map[Resource]Allowance
}

// NewMemorySource copies plans so later mutation by the caller has no effect.
func NewMemorySource(plans map[string]map[Resource]Allowance) *MemorySource {
	s := &MemorySource{plans: make(map[string]map[Resource]Allowance, len(plans))}
	for key, entries := range plans {
		s.plans[key] = maps.Clone(entries)
	}
	return s
}

func (s *MemorySource) Limit(_ context.Context, planKey string, res Resource) (Allowance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.plans[planKey][res]
	return a, ok, nil
}

// Set stores or replaces one plan limit.
func (s *MemorySource) Set(planKey string, res Resource, a Allowance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plans[planKey] == nil {
		s.plans[planKey] = make(map[Resource]Allowance)
	}
	s.plans[planKey][res] = a
}
