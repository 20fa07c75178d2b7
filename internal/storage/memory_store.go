package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]Record{}}
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[namespace][key]
	if !ok || expired(rec, time.Now()) {
		return Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *MemoryStore) Load(_ context.Context, namespace string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]Record, 0, len(s.data[namespace]))
	for _, rec := range s.data[namespace] {
		if expired(rec, now) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, namespace string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = map[string]Record{}
		s.data[namespace] = ns
	}
	ns[rec.Key] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneRecord(r Record) Record {
	r.Data = append([]byte(nil), r.Data...)
	return r
}
