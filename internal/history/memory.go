package history

import (
	"context"
	"sync"
)

// memoryStore keeps a bounded in-process journal. It is the default
// driver and the fallback when sqlite is not wanted.
type memoryStore struct {
	mu      sync.Mutex
	records []Record
	maxN    int
}

func newMemory(cfg Config) *memoryStore {
	return &memoryStore{maxN: cfg.maxRecords()}
}

func (s *memoryStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if len(s.records) > s.maxN {
		s.records = s.records[len(s.records)-s.maxN:]
	}
	return nil
}

func (s *memoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
