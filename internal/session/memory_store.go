package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"refacao/api/internal/form"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the single-process fallback used when Redis is not
// configured. States are stored serialized so Load always hands back an
// independent copy, same as the Redis path.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, state *form.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal form state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[sessionID] = memoryEntry{data: data, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*form.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, sessionID)
		return nil, ErrNotFound
	}

	var state form.State
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal form state: %w", err)
	}
	state.EnsureMaps()

	entry.expiresAt = time.Now().Add(s.ttl)
	s.entries[sessionID] = entry
	return &state, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sweepLocked() {
	now := time.Now()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
