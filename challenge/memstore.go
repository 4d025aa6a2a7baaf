package challenge

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process Store. It suits single-node
// deployments and tests; expired records are dropped lazily on Take.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Put(_ context.Context, scope string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.records[scope] = memoryRecord{value: v, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, scope string) ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[scope]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	delete(s.records, scope)
	return rec.value, rec.expiresAt, nil
}
