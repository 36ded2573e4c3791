package joblock

import (
	"context"
	"sync"
	"time"

	"studiobook/pkg/model"
)

// memoryStore is a single-process fallback with the same semantics as the
// Mongo store. It only protects against overlap between coordinators in
// one process, not between replicas.
type memoryStore struct {
	mu    sync.Mutex
	locks map[string]model.JobLock
}

func NewMemoryStore() Store {
	return &memoryStore{locks: make(map[string]model.JobLock)}
}

func (s *memoryStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.reap(now)

	if held, ok := s.locks[key]; ok && held.Owner != owner && !held.Expired(now) {
		return false, nil
	}
	s.locks[key] = model.JobLock{
		Key:       key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return true, nil
}

func (s *memoryStore) Renew(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	held, ok := s.locks[key]
	if !ok || held.Owner != owner || held.Expired(now) {
		return false, nil
	}
	held.ExpiresAt = now.Add(ttl)
	s.locks[key] = held
	return true, nil
}

func (s *memoryStore) Release(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[key]; ok && held.Owner == owner {
		delete(s.locks, key)
	}
	return nil
}

func (s *memoryStore) IsLocked(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.locks[key]
	return ok && !held.Expired(time.Now().UTC()), nil
}

// reap drops expired entries so the map does not grow with dead keys.
func (s *memoryStore) reap(now time.Time) {
	for key, held := range s.locks {
		if held.Expired(now) {
			delete(s.locks, key)
		}
	}
}
