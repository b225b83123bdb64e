// Package sqlite provides a concrete implementation of the persistence.Store
// interface for SQLite databases. Each database lives in its own file; the
// documents of every collection share one table and keep their insertion
// order through a sequence column.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures the tables used by a Store.
type Options struct {
	// TablePrefix is prepended to the names of the tables the store creates.
	TablePrefix string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{TablePrefix: "mockdb_"}
}

// Store is a concrete implementation of persistence.Store for SQLite.
type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	options *Options
}

// Ensure Store implements the persistence.Store interface.
var _ persistence.Store = (*Store)(nil)

// NewStore wraps an open database and creates the tables it needs.
func NewStore(ctx context.Context, db *sql.DB, logger *zap.Logger, options *Options) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	s := &Store{db: db, logger: logger, options: options}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// quoteIdentifier safely quotes an identifier such as a table name.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// getTableName constructs the full, quoted table name by applying the configured
// table prefix to the base name.
func (s *Store) getTableName(baseName string) string {
	return quoteIdentifier(s.options.TablePrefix + baseName)
}

func (s *Store) collectionsTable() string { return s.getTableName("collections") }
func (s *Store) documentsTable() string   { return s.getTableName("documents") }

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY)`, s.collectionsTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`, s.documentsTable()),
	}
	for _, stmt := range statements {
		s.logger.Debug("Executing SQL DDL", zap.String("sql", stmt))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
		}
	}
	return nil
}

// transact runs fn inside a transaction, committing when fn succeeds.
func (s *Store) transact(ctx context.Context, fn func(tx dbRunner) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		s.logger.Debug("Rolling back transaction", zap.Error(err))
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) exists(ctx context.Context, r dbRunner, collection string) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE name = ?`, s.collectionsTable())
	var one int
	err := r.QueryRowContext(ctx, q, collection).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up collection %s: %w", collection, err)
	}
	return true, nil
}

func (s *Store) Load(ctx context.Context, collection string) (*document.Collection, error) {
	exists, err := s.exists(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
	}

	q := fmt.Sprintf(`SELECT id, body FROM %s WHERE collection = ? ORDER BY seq`, s.documentsTable())
	s.logger.Debug("Executing SQL SELECT", zap.String("sql", q), zap.String("collection", collection))
	rows, err := s.db.QueryContext(ctx, q, collection)
	if err != nil {
		s.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", q))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	coll := document.NewCollection()
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := document.Parse([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("decoding document %s of %s: %w", id, collection, err)
		}
		coll.Put(id, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return coll, nil
}

// Save rewrites every row of collection inside a single transaction.
func (s *Store) Save(ctx context.Context, collection string, docs *document.Collection) error {
	if docs == nil {
		docs = document.NewCollection()
	}
	return s.transact(ctx, func(tx dbRunner) error {
		create := fmt.Sprintf(`INSERT OR IGNORE INTO %s (name) VALUES (?)`, s.collectionsTable())
		if _, err := tx.ExecContext(ctx, create, collection); err != nil {
			return fmt.Errorf("failed to register collection %s: %w", collection, err)
		}
		truncate := fmt.Sprintf(`DELETE FROM %s WHERE collection = ?`, s.documentsTable())
		if _, err := tx.ExecContext(ctx, truncate, collection); err != nil {
			return fmt.Errorf("failed to execute DELETE query: %w", err)
		}

		insert := fmt.Sprintf(`INSERT INTO %s (collection, id, seq, body) VALUES (?, ?, ?, ?)`, s.documentsTable())
		s.logger.Debug("Executing SQL INSERT", zap.String("sql", insert), zap.Int("rows", docs.Len()))
		seq := 0
		for id, doc := range docs.All() {
			body, err := doc.MarshalJSON()
			if err != nil {
				return fmt.Errorf("encoding document %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, insert, collection, id, seq, string(body)); err != nil {
				s.logger.Error("Failed to execute INSERT query", zap.Error(err), zap.String("sql", insert))
				return fmt.Errorf("failed to execute INSERT query: %w", err)
			}
			seq++
		}
		return nil
	})
}

func (s *Store) Exists(ctx context.Context, collection string) (bool, error) {
	return s.exists(ctx, s.db, collection)
}

func (s *Store) Create(ctx context.Context, collection string) error {
	q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (name) VALUES (?)`, s.collectionsTable())
	if _, err := s.db.ExecContext(ctx, q, collection); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

func (s *Store) Drop(ctx context.Context, collection string) error {
	return s.transact(ctx, func(tx dbRunner) error {
		q := fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, s.collectionsTable())
		result, err := tx.ExecContext(ctx, q, collection)
		if err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", collection, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, collection)
		}
		q = fmt.Sprintf(`DELETE FROM %s WHERE collection = ?`, s.documentsTable())
		_, err = tx.ExecContext(ctx, q, collection)
		return err
	})
}

func (s *Store) Rename(ctx context.Context, from, to string) error {
	return s.transact(ctx, func(tx dbRunner) error {
		exists, err := s.exists(ctx, tx, from)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, from)
		}
		taken, err := s.exists(ctx, tx, to)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", persistence.ErrCollectionExists, to)
		}
		q := fmt.Sprintf(`UPDATE %s SET name = ? WHERE name = ?`, s.collectionsTable())
		if _, err := tx.ExecContext(ctx, q, to, from); err != nil {
			return fmt.Errorf("failed to execute UPDATE query: %w", err)
		}
		q = fmt.Sprintf(`UPDATE %s SET collection = ? WHERE collection = ?`, s.documentsTable())
		if _, err := tx.ExecContext(ctx, q, to, from); err != nil {
			return fmt.Errorf("failed to execute UPDATE query: %w", err)
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, s.collectionsTable())
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
