// Package jsonfile stores each collection as a JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  shop/               # "shop" database
//	    users.json        # "users" collection, an object keyed by _id
//	    orders.json
//
// Files holding a JSON array of documents, the legacy table format, are
// accepted on load and rewritten as objects on the next save.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

const extension = ".json"

// Backend keeps one directory per database under a root directory.
type Backend struct {
	root   string
	logger *zap.Logger
}

var _ persistence.Backend = (*Backend)(nil)

func NewBackend(root string, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", root, err)
	}
	return &Backend{root: root, logger: logger}, nil
}

func (b *Backend) databasePath(database string) string {
	return filepath.Join(b.root, database)
}

func (b *Backend) Open(ctx context.Context, database string) (persistence.Store, error) {
	exists, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	return NewStore(b.databasePath(database), b.logger.With(zap.String("database", database))), nil
}

func (b *Backend) CreateDatabase(_ context.Context, database string) error {
	return os.MkdirAll(b.databasePath(database), 0o755)
}

func (b *Backend) RemoveDatabase(ctx context.Context, database string) error {
	exists, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	return os.RemoveAll(b.databasePath(database))
}

func (b *Backend) DatabaseExists(_ context.Context, database string) (bool, error) {
	info, err := os.Stat(b.databasePath(database))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (b *Backend) Databases(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || hidden(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// Store reads and rewrites whole collection files. Writes go through a
// temporary file and a rename, so a crash never leaves a torn file behind.
type Store struct {
	mu     sync.RWMutex
	dir    string
	logger *zap.Logger
}

var _ persistence.Store = (*Store)(nil)

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) collectionPath(collection string) string {
	return filepath.Join(s.dir, collection+extension)
}

func (s *Store) Load(_ context.Context, collection string) (*document.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(collection)
}

func (s *Store) load(collection string) (*document.Collection, error) {
	data, err := os.ReadFile(s.collectionPath(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return nil, err
	}
	coll := document.NewCollection()
	if len(bytes.TrimSpace(data)) == 0 {
		return coll, nil
	}
	if err := json.Unmarshal(data, coll); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.collectionPath(collection), err)
	}
	return coll, nil
}

func (s *Store) Save(_ context.Context, collection string, docs *document.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if docs == nil {
		docs = document.NewCollection()
	}
	return s.save(collection, docs)
}

func (s *Store) save(collection string, docs *document.Collection) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encoding collection %s: %w", collection, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	path := s.collectionPath(collection)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Debug("Wrote collection file", zap.String("path", path), zap.Int("count", docs.Len()))
	return nil
}

func (s *Store) Exists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists(collection)
}

func (s *Store) exists(collection string) (bool, error) {
	_, err := os.Stat(s.collectionPath(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Create(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.exists(collection)
	if err != nil || exists {
		return err
	}
	return s.save(collection, document.NewCollection())
}

func (s *Store) Drop(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.collectionPath(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
	}
	return err
}

func (s *Store) Rename(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.exists(from)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, from)
	}
	taken, err := s.exists(to)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionExists, to)
	}
	return atomic.ReplaceFile(s.collectionPath(from), s.collectionPath(to))
}

// List returns the collection names found in the database directory. Files
// starting with "_" or "." are ignored.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || hidden(name) || !strings.HasSuffix(name, extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, extension))
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) Close() error {
	return nil
}
