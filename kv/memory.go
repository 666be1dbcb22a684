package kv

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/zhur/message"
)

// MemoryStore keeps everything in a map. For tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[tableKey]map[string][]byte
}

type tableKey struct {
	owner, table string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[tableKey]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, owner, table, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tables[tableKey{owner, table}][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, owner, table, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(owner, table)[key] = append([]byte{}, value...)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, owner, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[tableKey{owner, table}], key)
	return nil
}

func (s *MemoryStore) Scan(_ context.Context, owner, table, prefix string) ([]message.KVPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []message.KVPair
	for k, v := range s.tables[tableKey{owner, table}] {
		if strings.HasPrefix(k, prefix) {
			pairs = append(pairs, message.KVPair{Key: k, Value: append([]byte{}, v...)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, nil
}

func (s *MemoryStore) DelPrefix(_ context.Context, owner, table, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tables[tableKey{owner, table}]
	n := 0
	for k := range t {
		if strings.HasPrefix(k, prefix) {
			delete(t, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetMany(_ context.Context, owner, table string, pairs []message.KVPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(owner, table)
	for _, p := range pairs {
		t[p.Key] = append([]byte{}, p.Value...)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) table(owner, table string) map[string][]byte {
	k := tableKey{owner, table}
	t, ok := s.tables[k]
	if !ok {
		t = make(map[string][]byte)
		s.tables[k] = t
	}
	return t
}
