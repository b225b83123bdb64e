package persistence_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"github.com/asaidimu/go-mockdb/memstore"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk unavailable")

// probeStore wraps a Store to count saves and inject load failures.
type probeStore struct {
	persistence.Store
	saves    atomic.Int32
	failLoad atomic.Bool
}

func (s *probeStore) Load(ctx context.Context, name string) (*document.Collection, error) {
	if s.failLoad.Load() {
		return nil, errDisk
	}
	return s.Store.Load(ctx, name)
}

func (s *probeStore) Save(ctx context.Context, name string, docs *document.Collection) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, name, docs)
}

type probeBackend struct {
	*memstore.Backend
	store *probeStore
}

func (b *probeBackend) Open(ctx context.Context, database string) (persistence.Store, error) {
	s, err := b.Backend.Open(ctx, database)
	if err != nil {
		return nil, err
	}
	b.store = &probeStore{Store: s}
	return b.store, nil
}

func sequentialIDs() persistence.IDGenerator {
	var n atomic.Int64
	return persistence.IDGeneratorFunc(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	})
}

type fixture struct {
	p     *persistence.Persistence
	db    *persistence.Database
	store *probeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := &probeBackend{Backend: memstore.NewBackend()}
	p, err := persistence.NewPersistence(backend, persistence.WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	require.NoError(t, p.CreateDatabase(ctx, "test"))
	db, err := p.Database(ctx, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return &fixture{p: p, db: db, store: backend.store}
}

func (f *fixture) collection(t *testing.T, name string) *persistence.Collection {
	t.Helper()
	c, err := f.db.Collection(context.Background(), name)
	require.NoError(t, err)
	return c
}

func doc(src string) *document.Document {
	return document.MustParse(src)
}

func filter(t *testing.T, src string) *query.QueryFilter {
	t.Helper()
	f, err := query.ParseJSON([]byte(src))
	require.NoError(t, err)
	return f
}

func expr(t *testing.T, src string) *update.Expression {
	t.Helper()
	e, err := update.ParseJSON([]byte(src))
	require.NoError(t, err)
	return e
}

func requireOK(t *testing.T, r *persistence.Response) {
	t.Helper()
	require.Truef(t, r.OK(), "unexpected failure: %v", r.Errors)
}

// assertDocs compares response data with the expected JSON documents.
func assertDocs(t *testing.T, r *persistence.Response, expected ...string) {
	t.Helper()
	want := make([]any, len(expected))
	for i, src := range expected {
		want[i] = document.ToAny(document.Object(doc(src)))
	}
	got := make([]any, len(r.Data))
	for i, d := range r.Data {
		got[i] = document.ToAny(document.Object(d))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response data mismatch (-want +got):\n%s", diff)
	}
}
