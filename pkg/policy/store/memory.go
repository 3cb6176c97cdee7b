package store

import (
	"context"
	"sort"
	"sync"

	"codecraft-hq/codecraft/pkg/policy"
)

// MemoryStore is an in-memory policy catalog. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*policy.Profile
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*policy.Profile),
	}
}

// Put inserts a new profile.
func (s *MemoryStore) Put(ctx context.Context, profile *policy.Profile) error {
	if profile == nil || profile.ID == "" {
		return NewStorageError("memory", "put", errNilProfile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.ID]; ok {
		return &AlreadyExistsError{ProfileID: profile.ID}
	}
	s.profiles[profile.ID] = profile
	return nil
}

// Get returns the profile with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return nil, &NotFoundError{ProfileID: id}
	}
	return profile, nil
}

// List returns all profiles ordered by creation time, oldest first.
func (s *MemoryStore) List(ctx context.Context) ([]*policy.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]*policy.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].ID < profiles[j].ID
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
