package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps hit logs in process. Counters are not shared between
// instances.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	log := s.hits[key]
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	res := Result{}
	if len(log) < limit {
		log = append(log, now)
		res.Allowed = true
	}
	res.Count = len(log)
	if len(log) > 0 {
		res.Oldest = log[0]
	}

	if len(log) == 0 {
		delete(s.hits, key)
	} else {
		s.hits[key] = log
	}
	return res, nil
}
