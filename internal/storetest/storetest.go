// Package storetest holds the conformance suite shared by every
// persistence.Backend implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run runs the common test suite against a fresh backend from newBackend.
func Run(t *testing.T, newBackend func(t *testing.T) persistence.Backend) {
	t.Helper()
	ctx := context.Background()

	open := func(t *testing.T) persistence.Store {
		t.Helper()
		b := newBackend(t)
		require.NoError(t, b.CreateDatabase(ctx, "main"))
		s, err := b.Open(ctx, "main")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("databases", func(t *testing.T) {
		b := newBackend(t)
		exists, err := b.DatabaseExists(ctx, "main")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = b.Open(ctx, "main")
		assert.ErrorIs(t, err, persistence.ErrDatabaseNotFound)

		require.NoError(t, b.CreateDatabase(ctx, "main"))
		require.NoError(t, b.CreateDatabase(ctx, "main"))
		require.NoError(t, b.CreateDatabase(ctx, "other"))

		names, err := b.Databases(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"main", "other"}, names)

		require.NoError(t, b.RemoveDatabase(ctx, "other"))
		exists, err = b.DatabaseExists(ctx, "other")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("load missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrCollectionNotFound)
	})

	t.Run("create is empty and idempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "users"))
		require.NoError(t, s.Create(ctx, "users"))

		exists, err := s.Exists(ctx, "users")
		require.NoError(t, err)
		assert.True(t, exists)

		coll, err := s.Load(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, 0, coll.Len())
	})

	t.Run("save and load keep order and content", func(t *testing.T) {
		s := open(t)
		coll := document.NewCollection()
		for _, src := range []string{
			`{"_id":"z","name":"last-inserted-first","n":1.5}`,
			`{"_id":"a","tags":["x","y"],"nested":{"b":2,"a":1}}`,
			`{"_id":"m","flag":true,"nothing":null}`,
		} {
			doc := document.MustParse(src)
			id, _ := doc.ID()
			coll.Put(id, doc)
		}
		require.NoError(t, s.Save(ctx, "users", coll))

		got, err := s.Load(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a", "m"}, got.IDs())
		for id, doc := range coll.All() {
			stored, ok := got.Get(id)
			require.True(t, ok, id)
			assert.Equal(t, doc.String(), stored.String())
		}

		coll.Delete("a")
		require.NoError(t, s.Save(ctx, "users", coll))
		got, err = s.Load(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "m"}, got.IDs())
	})

	t.Run("loaded collections are independent", func(t *testing.T) {
		s := open(t)
		coll := document.NewCollection()
		coll.Put("1", document.MustParse(`{"_id":"1","v":1}`))
		require.NoError(t, s.Save(ctx, "c", coll))

		coll.Put("2", document.MustParse(`{"_id":"2"}`))
		first, err := s.Load(ctx, "c")
		require.NoError(t, err)
		first.Delete("1")

		second, err := s.Load(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, second.IDs())
	})

	t.Run("rename", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "a"))
		require.NoError(t, s.Create(ctx, "b"))

		assert.ErrorIs(t, s.Rename(ctx, "a", "b"), persistence.ErrCollectionExists)
		assert.ErrorIs(t, s.Rename(ctx, "missing", "c"), persistence.ErrCollectionNotFound)

		coll := document.NewCollection()
		coll.Put("1", document.MustParse(`{"_id":"1"}`))
		require.NoError(t, s.Save(ctx, "a", coll))
		require.NoError(t, s.Rename(ctx, "a", "c"))

		exists, err := s.Exists(ctx, "a")
		require.NoError(t, err)
		assert.False(t, exists)
		moved, err := s.Load(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, moved.IDs())
	})

	t.Run("list and drop", func(t *testing.T) {
		s := open(t)
		for _, name := range []string{"orders", "users", "events"} {
			require.NoError(t, s.Create(ctx, name))
		}
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"events", "orders", "users"}, names)

		require.NoError(t, s.Drop(ctx, "orders"))
		assert.ErrorIs(t, s.Drop(ctx, "orders"), persistence.ErrCollectionNotFound)

		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"events", "users"}, names)
	})
}
