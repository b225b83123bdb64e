// Package badgerstore stores collections in BadgerDB, one database
// directory per mockdb database.
//
// Key layout:
//
//	c:<collection>                    collection marker
//	d:<collection>\x00<seq uint64>    document JSON, seq keeps insertion order
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	collectionPrefix = "c:"
	documentPrefix   = "d:"
)

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func documentsPrefix(name string) []byte {
	return []byte(documentPrefix + name + "\x00")
}

func documentKey(name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(documentsPrefix(name), seq)
}

// Store provides persistence.Store operations on a BadgerDB instance.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open opens (or creates) the BadgerDB at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func exists(txn *badger.Txn, collection string) (bool, error) {
	_, err := txn.Get(collectionKey(collection))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// keys returns every key under prefix.
func keys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out [][]byte
	for it.Seek(prefix); it.Valid(); it.Next() {
		out = append(out, it.Item().KeyCopy(nil))
	}
	return out
}

func (s *Store) Load(_ context.Context, collection string) (*document.Collection, error) {
	coll := document.NewCollection()
	err := s.db.View(func(txn *badger.Txn) error {
		ok, err := exists(txn, collection)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = documentsPrefix(collection)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				doc, err := document.Parse(val)
				if err != nil {
					return err
				}
				id, ok := doc.ID()
				if !ok {
					return fmt.Errorf("stored document without %s", document.IDField)
				}
				coll.Put(id, doc)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coll, nil
}

// Save replaces the documents of collection in one transaction.
func (s *Store) Save(_ context.Context, collection string, docs *document.Collection) error {
	if docs == nil {
		docs = document.NewCollection()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(collectionKey(collection), nil); err != nil {
			return err
		}
		for _, key := range keys(txn, documentsPrefix(collection)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		var seq uint64
		for id, doc := range docs.All() {
			data, err := doc.MarshalJSON()
			if err != nil {
				return fmt.Errorf("encoding document %s: %w", id, err)
			}
			if err := txn.Set(documentKey(collection, seq), data); err != nil {
				return err
			}
			seq++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving collection %s: %w", collection, err)
	}
	s.logger.Debug("Saved collection", zap.String("collection", collection), zap.Int("count", docs.Len()))
	return nil
}

func (s *Store) Exists(_ context.Context, collection string) (bool, error) {
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, collection)
		return err
	})
	return ok, err
}

func (s *Store) Create(_ context.Context, collection string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionKey(collection), nil)
	})
}

func (s *Store) Drop(_ context.Context, collection string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, collection)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
		}
		for _, key := range keys(txn, documentsPrefix(collection)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(collectionKey(collection))
	})
}

func (s *Store) Rename(_ context.Context, from, to string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, from)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, from)
		}
		taken, err := exists(txn, to)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionExists, to)
		}

		prefix := documentsPrefix(from)
		for _, key := range keys(txn, prefix) {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			moved := append(documentsPrefix(to), key[len(prefix):]...)
			if err := txn.Set(moved, val); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		if err := txn.Delete(collectionKey(from)); err != nil {
			return err
		}
		return txn.Set(collectionKey(to), nil)
	})
}

func (s *Store) List(_ context.Context) ([]string, error) {
	names := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys(txn, []byte(collectionPrefix)) {
			names = append(names, string(key[len(collectionPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Close closes the BadgerDB instance
func (s *Store) Close() error {
	return s.db.Close()
}

// Backend keeps one BadgerDB directory per database under a root directory.
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
	ok, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	return Open(b.databasePath(database), b.logger.With(zap.String("database", database)))
}

func (b *Backend) CreateDatabase(_ context.Context, database string) error {
	return os.MkdirAll(b.databasePath(database), 0o755)
}

func (b *Backend) RemoveDatabase(ctx context.Context, database string) error {
	ok, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return err
	}
	if !ok {
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
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
