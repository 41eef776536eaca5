package memory

import (
	"context"
	"sort"
	"sync"

	"genstrat/internal/store"
)

// Store is an in-process store.Store, used by tests and dry runs.
type Store struct {
	mu      sync.RWMutex
	scalars map[string]string
	records map[string]map[string]string
	sets    map[string]map[string]struct{}
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		scalars: make(map[string]string),
		records: make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scalars[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars[key] = value
	return nil
}

func (s *Store) GetRecord(_ context.Context, key string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true, nil
}

func (s *Store) SetRecord(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := make(map[string]string, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	s.records[key] = rec
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *Store) AddToSet(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.sets[set]
	if !ok {
		members = make(map[string]struct{})
		s.sets[set] = members
	}
	members[member] = struct{}{}
	return nil
}

func (s *Store) RemoveFromSet(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.sets[set]; ok {
		delete(members, member)
	}
	return nil
}

func (s *Store) SetMembers(_ context.Context, set string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.sets[set]
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
