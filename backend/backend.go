// Package backend selects a persistence.Backend by name.
package backend

import (
	"fmt"
	"path/filepath"

	"github.com/asaidimu/go-mockdb/badgerstore"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/jsonfile"
	"github.com/asaidimu/go-mockdb/memstore"
	"github.com/asaidimu/go-mockdb/sqlite"
	"go.uber.org/zap"
)

// Supported backend names.
const (
	JSONFile = "jsonfile"
	SQLite   = "sqlite"
	Badger   = "badger"
	Memory   = "memory"
)

// Names lists the supported backends.
var Names = []string{JSONFile, SQLite, Badger, Memory}

// New creates a Backend based on the backend name.
//
// Supported backends:
//
//	"jsonfile" - one JSON file per collection under dataDir/<db>/ (default)
//	"sqlite"   - one SQLite file per database at dataDir/sqlite/<db>.db
//	"badger"   - one BadgerDB directory per database under dataDir/badger/
//	"memory"   - in-memory (ephemeral, for testing)
func New(name, dataDir string, logger *zap.Logger) (persistence.Backend, error) {
	switch name {
	case JSONFile, "":
		return jsonfile.NewBackend(dataDir, logger)
	case SQLite:
		return sqlite.NewBackend(filepath.Join(dataDir, "sqlite"), logger, nil)
	case Badger:
		return badgerstore.NewBackend(filepath.Join(dataDir, "badger"), logger)
	case Memory:
		return memstore.NewBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: %v)", name, Names)
	}
}
