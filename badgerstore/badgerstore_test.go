package badgerstore

import (
	"context"
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerBackend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Backend {
		b, err := NewBackend(t.TempDir(), nil)
		require.NoError(t, err)
		return b
	})
}

func TestStore_ReopenKeepsOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	coll := document.NewCollection()
	for _, id := range []string{"k", "b", "x", "a"} {
		coll.Put(id, document.New().SetID(id))
	}
	require.NoError(t, s.Save(ctx, "letters", coll))
	require.NoError(t, s.Close())

	s, err = Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, "letters")
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "b", "x", "a"}, got.IDs())
}

func TestDocumentKey_SortsBySequence(t *testing.T) {
	assert.Less(t, string(documentKey("c", 9)), string(documentKey("c", 10)))
	assert.Less(t, string(documentKey("c", 255)), string(documentKey("c", 256)))
}
