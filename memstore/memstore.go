// Package memstore keeps databases in memory. Data is lost when the process
// exits; it backs tests and the "memory" backend.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
)

// Backend holds every database in memory. Safe for concurrent use.
type Backend struct {
	mu        sync.RWMutex
	databases map[string]*Store
}

var _ persistence.Backend = (*Backend)(nil)

func NewBackend() *Backend {
	return &Backend{databases: make(map[string]*Store)}
}

func (b *Backend) Open(_ context.Context, database string) (persistence.Store, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.databases[database]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	return s, nil
}

func (b *Backend) CreateDatabase(_ context.Context, database string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.databases[database]; !ok {
		b.databases[database] = NewStore()
	}
	return nil
}

func (b *Backend) RemoveDatabase(_ context.Context, database string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.databases[database]; !ok {
		return fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	delete(b.databases, database)
	return nil
}

func (b *Backend) DatabaseExists(_ context.Context, database string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.databases[database]
	return ok, nil
}

func (b *Backend) Databases(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.databases))
	for name := range b.databases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Store keeps the collections of one database. Collections are copied on
// the way in and out so callers never share storage with it.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*document.Collection
}

var _ persistence.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string]*document.Collection)}
}

func (s *Store) Load(_ context.Context, collection string) (*document.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
	}
	return coll.Clone(), nil
}

func (s *Store) Save(_ context.Context, collection string, docs *document.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if docs == nil {
		docs = document.NewCollection()
	}
	s.collections[collection] = docs.Clone()
	return nil
}

func (s *Store) Exists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

func (s *Store) Create(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = document.NewCollection()
	}
	return nil
}

func (s *Store) Drop(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
	}
	delete(s.collections, collection)
	return nil
}

func (s *Store) Rename(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[from]
	if !ok {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, from)
	}
	if _, taken := s.collections[to]; taken {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionExists, to)
	}
	s.collections[to] = coll
	delete(s.collections, from)
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) Close() error {
	return nil
}
