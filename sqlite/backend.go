package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/asaidimu/go-mockdb/core/persistence"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const extension = ".db"

// Backend keeps one SQLite file per database under a root directory.
type Backend struct {
	root    string
	logger  *zap.Logger
	options *Options
}

var _ persistence.Backend = (*Backend)(nil)

func NewBackend(root string, logger *zap.Logger, options *Options) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", root, err)
	}
	return &Backend{root: root, logger: logger, options: options}, nil
}

func (b *Backend) databasePath(database string) string {
	return filepath.Join(b.root, database+extension)
}

func (b *Backend) open(ctx context.Context, database string) (*Store, error) {
	db, err := sql.Open("sqlite3", b.databasePath(database))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", database, err)
	}
	// One connection serializes writers and avoids "database is locked".
	db.SetMaxOpenConns(1)
	s, err := NewStore(ctx, db, b.logger.With(zap.String("database", database)), b.options)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (b *Backend) Open(ctx context.Context, database string) (persistence.Store, error) {
	exists, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	return b.open(ctx, database)
}

func (b *Backend) CreateDatabase(ctx context.Context, database string) error {
	s, err := b.open(ctx, database)
	if err != nil {
		return err
	}
	return s.Close()
}

func (b *Backend) RemoveDatabase(ctx context.Context, database string) error {
	exists, err := b.DatabaseExists(ctx, database)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", persistence.ErrDatabaseNotFound, database)
	}
	path := b.databasePath(database)
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return os.Remove(path)
}

func (b *Backend) DatabaseExists(_ context.Context, database string) (bool, error) {
	info, err := os.Stat(b.databasePath(database))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (b *Backend) Databases(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, extension))
	}
	slices.Sort(names)
	return names, nil
}
