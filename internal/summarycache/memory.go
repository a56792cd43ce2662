package summarycache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	Entry
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	out := e.Entry
	return &out, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (string, error) {
	body, err := Encode(value)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	etag := ETag(body)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{
		Entry:     Entry{Body: body, ETag: etag},
		expiresAt: now.Add(ttl),
	}
	return etag, nil
}

// HasMatchingETag implements Store.
func (s *MemoryStore) HasMatchingETag(ctx context.Context, key, etag string) (bool, error) {
	return hasMatchingETag(ctx, s, key, etag)
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// Len counts entries, expired ones included until the next Set.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
