package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the events delivered to a subscription.
type recorder struct {
	mu     sync.Mutex
	events []persistence.PersistenceEvent
}

func (r *recorder) callback(_ context.Context, e persistence.PersistenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) snapshot() []persistence.PersistenceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]persistence.PersistenceEvent(nil), r.events...)
}

func TestPersistence_EmitsDocumentEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.collection(t, "items")

	created, failed := &recorder{}, &recorder{}
	label := "audit"
	id := f.p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event:    persistence.DocumentCreateSuccess,
		Label:    &label,
		Callback: created.callback,
	})
	f.p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event:    persistence.DocumentUpdateFailed,
		Callback: failed.callback,
	})

	requireOK(t, c.InsertOne(ctx, doc(`{"_id":"1"}`)))
	c.UpdateByID(ctx, "missing", expr(t, `{"$set":{"a":1}}`))

	assert.Eventually(t, func() bool { return len(created.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(failed.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	ev := created.snapshot()[0]
	assert.Equal(t, "insertOne", ev.Operation)
	require.NotNil(t, ev.Database)
	assert.Equal(t, "test", *ev.Database)
	require.NotNil(t, ev.Collection)
	assert.Equal(t, "items", *ev.Collection)
	assert.NotNil(t, ev.Duration)

	fe := failed.snapshot()[0]
	require.NotNil(t, fe.Error)
	assert.Contains(t, *fe.Error, "missing")
	assert.Equal(t, "missing", fe.Query)

	subs, err := f.p.Subscriptions()
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	f.p.UnregisterSubscription(id)
	subs, err = f.p.Subscriptions()
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	requireOK(t, c.InsertOne(ctx, doc(`{"_id":"2"}`)))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, created.snapshot(), 1)
}

func TestPersistence_DatabaseLifecycle(t *testing.T) {
	ctx := context.Background()
	p, err := persistence.NewPersistence(memstore.NewBackend())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Database(ctx, "shop")
	assert.ErrorIs(t, err, persistence.ErrDatabaseNotFound)
	assert.ErrorIs(t, p.CreateDatabase(ctx, "../escape"), persistence.ErrInvalidName)

	require.NoError(t, p.CreateDatabase(ctx, "shop"))
	exists, err := p.DatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, exists)

	db, err := p.Database(ctx, "shop")
	require.NoError(t, err)
	again, err := p.Database(ctx, "shop")
	require.NoError(t, err)
	assert.Same(t, db, again)
	assert.Equal(t, "shop", db.Name())

	names, err := p.Databases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop"}, names)

	require.NoError(t, p.RemoveDatabase(ctx, "shop"))
	exists, err = p.DatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDatabase_Collections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	drops := &recorder{}
	f.p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event:    persistence.CollectionDeleteSuccess,
		Callback: drops.callback,
	})

	users := f.collection(t, "users")
	requireOK(t, users.InsertMany(ctx, []*document.Document{doc(`{}`), doc(`{}`)}))
	orders := f.collection(t, "orders")
	requireOK(t, orders.InsertOne(ctx, doc(`{}`)))
	f.collection(t, "empty")

	has, err := f.db.HasCollection(ctx, "users")
	require.NoError(t, err)
	assert.True(t, has)

	stats, err := f.db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []persistence.CollectionStats{
		{Name: "empty", Count: 0},
		{Name: "orders", Count: 1},
		{Name: "users", Count: 2},
	}, stats)

	require.NoError(t, f.db.DropCollection(ctx, "orders"))
	assert.ErrorIs(t, f.db.DropCollection(ctx, "orders"), persistence.ErrCollectionNotFound)
	assert.Eventually(t, func() bool { return len(drops.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	names, err := f.db.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "users"}, names)

	_, err = f.db.Collection(ctx, "_private")
	assert.ErrorIs(t, err, persistence.ErrInvalidName)
}

func TestValidateName(t *testing.T) {
	valid := []string{"users", "Orders-2024", "a.b", "with space"}
	for _, name := range valid {
		assert.NoError(t, persistence.ValidateName(name), name)
	}
	invalid := []string{"", ".hidden", "_meta", "a/b", `a\b`, "a:b", "a*b", "a?b", `a"b`, "a<b", "a>b", "a|b", "tab\there", "ünïcode"}
	for _, name := range invalid {
		assert.ErrorIs(t, persistence.ValidateName(name), persistence.ErrInvalidName, name)
	}
}
