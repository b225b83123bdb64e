package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// statsConcurrency bounds the number of collections loaded at once by Stats.
const statsConcurrency = 4

// Database is a named group of collections stored by one Store.
type Database struct {
	name        string
	executor    *Executor
	persistence *Persistence

	mu          sync.Mutex
	collections map[string]*Collection
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Collection returns the collection called name, creating it when it does
// not exist yet.
func (d *Database) Collection(ctx context.Context, name string) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.collections[name]; ok {
		return c, nil
	}

	store := d.executor.Store()
	exists, err := store.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error looking up collection %s: %w", name, err)
	}
	if !exists {
		startTime := time.Now()
		if err := store.Create(ctx, name); err != nil {
			errStr := err.Error()
			d.persistence.emitEvent(createEvent(CollectionCreateFailed, "createCollection", d.name, name, nil, nil, nil, &errStr, startTime))
			return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		d.persistence.logger.Debug("Created collection", zap.String("database", d.name), zap.String("collection", name))
		d.persistence.emitEvent(createEvent(CollectionCreateSuccess, "createCollection", d.name, name, nil, nil, nil, nil, startTime))
	}

	base := newCollectionBase(ctx, d.name, name, d.executor, d.persistence.ids, d.persistence.logger)
	base.renamed = d.renamed
	c := NewEventEmittingCollection(base, d.persistence.bus)
	d.collections[name] = c
	return c, nil
}

func (d *Database) renamed(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.collections[from]; ok {
		delete(d.collections, from)
		d.collections[to] = c
	}
}

// HasCollection reports whether a collection called name exists. An invalid
// name is an error.
func (d *Database) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return d.executor.Store().Exists(ctx, name)
}

// Collections returns the names of all collections in the database.
func (d *Database) Collections(ctx context.Context) ([]string, error) {
	names, err := d.executor.Store().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing collections of %s: %w", d.name, err)
	}
	return names, nil
}

// DropCollection deletes a collection and all of its documents.
func (d *Database) DropCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	startTime := time.Now()
	if err := d.executor.Store().Drop(ctx, name); err != nil {
		errStr := err.Error()
		d.persistence.emitEvent(createEvent(CollectionDeleteFailed, "dropCollection", d.name, name, nil, nil, nil, &errStr, startTime))
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	delete(d.collections, name)
	d.persistence.emitEvent(createEvent(CollectionDeleteSuccess, "dropCollection", d.name, name, nil, nil, nil, nil, startTime))
	return nil
}

// Stats loads every collection concurrently and reports its size.
func (d *Database) Stats(ctx context.Context) ([]CollectionStats, error) {
	names, err := d.Collections(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CollectionStats, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, name := range names {
		g.Go(func() error {
			coll, err := d.executor.Load(gctx, name)
			if err != nil {
				return err
			}
			stats[i] = CollectionStats{Name: name, Count: coll.Len()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Close releases the underlying store.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.collections)
	return d.executor.Store().Close()
}
