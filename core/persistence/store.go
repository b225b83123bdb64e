package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/go-playground/validator/v10"
)

// Store persists whole collections for a single database. A Store reads and
// writes a collection as one unit: Load returns the full snapshot and Save
// replaces it.
type Store interface {
	// Load returns the stored collection. A missing collection yields
	// ErrCollectionNotFound.
	Load(ctx context.Context, collection string) (*document.Collection, error)
	// Save replaces the stored collection, creating it when absent.
	Save(ctx context.Context, collection string, docs *document.Collection) error
	Exists(ctx context.Context, collection string) (bool, error)
	// Create makes an empty collection. Creating an existing collection is a no-op.
	Create(ctx context.Context, collection string) error
	Drop(ctx context.Context, collection string) error
	// Rename moves a collection. It fails with ErrCollectionExists when the
	// target is taken and with ErrCollectionNotFound when the source is missing.
	Rename(ctx context.Context, from, to string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Backend manages the databases of one storage engine and opens a Store
// for each of them.
type Backend interface {
	// Open returns the store of an existing database, or ErrDatabaseNotFound.
	Open(ctx context.Context, database string) (Store, error)
	CreateDatabase(ctx context.Context, database string) error
	RemoveDatabase(ctx context.Context, database string) error
	DatabaseExists(ctx context.Context, database string) (bool, error)
	Databases(ctx context.Context) ([]string, error)
}

// nameTag rejects names that are empty, hidden, reserved or unsafe as file names.
const nameTag = `required,max=128,printascii,startsnotwith=.,startsnotwith=_,excludesall=/\:*?"<>0x7C`

var names = validator.New(validator.WithRequiredStructEnabled())

// ValidateName checks that name can be used as a database or collection name
// on every backend.
func ValidateName(name string) error {
	if err := names.Var(name, nameTag); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
