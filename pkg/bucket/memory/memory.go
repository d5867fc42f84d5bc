package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mandelsoft/vergraph/pkg/bucket"
)

type Store struct {
	lock    sync.RWMutex
	entries map[string][]byte
}

var _ bucket.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: map[string][]byte{}}
}

func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries[id] = slices.Clone(data)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bucket.ErrNotFound, id)
	}
	return slices.Clone(data), nil
}

func (s *Store) Reset(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	clear(s.entries)
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.entries)
}
