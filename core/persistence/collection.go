package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"go.uber.org/zap"
)

// CollectionBase implements the document operations of one collection. Each
// mutating call loads the stored snapshot, transforms it in memory and saves
// it back; calls on the same collection are serialized.
type CollectionBase struct {
	database string
	name     string
	executor *Executor
	ids      IDGenerator
	logger   *zap.Logger
	renamed  func(from, to string)

	mu    sync.Mutex
	count int
}

func newCollectionBase(ctx context.Context, database, name string, executor *Executor, ids IDGenerator, logger *zap.Logger) *CollectionBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	c := &CollectionBase{
		database: database,
		name:     name,
		executor: executor,
		ids:      ids,
		logger:   logger,
		count:    CountUnknown,
	}
	c.refreshCount(ctx)
	return c
}

// refreshCount derives the count from the stored collection. The caller must
// hold c.mu or own c exclusively.
func (c *CollectionBase) refreshCount(ctx context.Context) {
	coll, err := c.executor.Load(ctx, c.name)
	if err != nil {
		c.logger.Warn("Could not determine collection size",
			zap.String("database", c.database),
			zap.String("collection", c.name),
			zap.Error(err),
		)
		c.count = CountUnknown
		return
	}
	c.count = coll.Len()
}

// Name returns the current collection name.
func (c *CollectionBase) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Database returns the name of the owning database.
func (c *CollectionBase) Database() string {
	return c.database
}

// Count returns the number of stored documents, or CountUnknown when the
// collection could not be read.
func (c *CollectionBase) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == CountUnknown {
		c.refreshCount(context.Background())
	}
	return c.count
}

func (c *CollectionBase) notFound(id string) error {
	return fmt.Errorf("%w: could not find document with id '%s' in collection '%s'", ErrNotFound, id, c.name)
}

func (c *CollectionBase) noMatch(filter *query.QueryFilter) error {
	return fmt.Errorf("%w: could not find document matching %s in collection '%s'", ErrNotFound, filter, c.name)
}

func (c *CollectionBase) requireFilter(operation string, filter *query.QueryFilter) error {
	if filter.IsEmpty() {
		return fmt.Errorf("%w: %s on collection '%s' requires a filter", ErrEmptyFilter, operation, c.name)
	}
	return nil
}

// prepare copies doc for insertion, keeping a caller supplied _id and
// generating one otherwise.
func (c *CollectionBase) prepare(doc *document.Document) (*document.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	v, ok := doc.Get(document.IDField)
	if !ok {
		return withID(doc, c.ids.NewID()), nil
	}
	id, ok := v.Str()
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s must be a non-empty string, got %s", ErrInvalidDocument, document.IDField, v)
	}
	return withID(doc, id), nil
}

// InsertOne stores a single document.
func (c *CollectionBase) InsertOne(ctx context.Context, doc *document.Document) ([]*document.Document, error) {
	return c.InsertMany(ctx, []*document.Document{doc})
}

// InsertMany stores docs in order. Either all of them are stored or none.
func (c *CollectionBase) InsertMany(ctx context.Context, docs []*document.Document) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prepared := make([]*document.Document, 0, len(docs))
	for i, doc := range docs {
		p, err := c.prepare(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}

	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		for _, doc := range prepared {
			id, _ := doc.ID()
			if coll.Has(id) {
				return fmt.Errorf("%w: '%s' in collection '%s'", ErrDuplicateID, id, c.name)
			}
			coll.Put(id, doc)
		}
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return cloneAll(prepared), nil
}

// FindByID returns the document stored under id.
func (c *CollectionBase) FindByID(ctx context.Context, id string) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	coll, err := c.executor.Load(ctx, c.name)
	if err != nil {
		c.count = CountUnknown
		return nil, err
	}
	c.count = coll.Len()
	doc, ok := coll.Get(id)
	if !ok {
		return nil, c.notFound(id)
	}
	return []*document.Document{doc.Clone()}, nil
}

// Find returns the documents matching filter in insertion order. A nil or
// empty filter matches everything. With query.LimitOne a miss is ErrNotFound.
func (c *CollectionBase) Find(ctx context.Context, filter *query.QueryFilter, limit query.Limit) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs, count, err := c.executor.Query(ctx, c.name, filter, limit)
	c.count = count
	if err != nil {
		return nil, err
	}
	if limit == query.LimitOne && len(docs) == 0 {
		return nil, c.noMatch(filter)
	}
	return docs, nil
}

// UpdateByID applies expr to the document stored under id. When id is
// missing and expr.Upsert is set a new document is created under id.
func (c *CollectionBase) UpdateByID(ctx context.Context, id string, expr *update.Expression) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expr == nil {
		expr = update.NewExpression()
	}
	var result *document.Document
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		current, ok := coll.Get(id)
		if !ok {
			if !expr.Upsert {
				return c.notFound(id)
			}
			doc, err := c.upsertDocument(id, expr)
			if err != nil {
				return err
			}
			coll.Put(id, doc)
			result = doc
			return nil
		}
		doc, err := c.updateDocument(id, current, expr)
		if err != nil {
			return err
		}
		coll.Put(id, doc)
		result = doc
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return []*document.Document{result.Clone()}, nil
}

// Update applies expr to the documents matching filter. When nothing matches
// and expr.Upsert is set a single document is created with a generated id.
func (c *CollectionBase) Update(ctx context.Context, filter *query.QueryFilter, expr *update.Expression, limit query.Limit) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireFilter("update", filter); err != nil {
		return nil, err
	}
	if expr == nil {
		expr = update.NewExpression()
	}
	var results []*document.Document
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		ids, err := c.executor.SelectIDs(ctx, coll, filter, limit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			if !expr.Upsert {
				return c.noMatch(filter)
			}
			id := c.ids.NewID()
			doc, err := c.upsertDocument(id, expr)
			if err != nil {
				return err
			}
			coll.Put(id, doc)
			results = append(results, doc)
			return nil
		}
		for _, id := range ids {
			current, _ := coll.Get(id)
			doc, err := c.updateDocument(id, current, expr)
			if err != nil {
				return err
			}
			coll.Put(id, doc)
			results = append(results, doc)
		}
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return cloneAll(results), nil
}

func (c *CollectionBase) updateDocument(id string, current *document.Document, expr *update.Expression) (*document.Document, error) {
	doc, err := c.executor.Apply(current, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to update document '%s' in collection '%s': %w", id, c.name, err)
	}
	return doc.SetID(id), nil
}

// upsertDocument builds the document inserted by an update upsert.
func (c *CollectionBase) upsertDocument(id string, expr *update.Expression) (*document.Document, error) {
	doc, err := c.executor.Apply(document.New().SetID(id), expr)
	if err == nil {
		doc, err = c.executor.ApplyInsertOnly(doc, expr.SetOnInsert())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document '%s' in collection '%s': %w", id, c.name, err)
	}
	return doc.SetID(id), nil
}

// ReplaceByID swaps the document stored under id for doc, keeping id.
func (c *CollectionBase) ReplaceByID(ctx context.Context, id string, doc *document.Document, upsert bool) ([]*document.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil replacement", ErrInvalidDocument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	replacement := withID(doc, id)
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		if !coll.Has(id) && !upsert {
			return c.notFound(id)
		}
		coll.Put(id, replacement)
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return []*document.Document{replacement.Clone()}, nil
}

// Replace swaps every document matching filter for a copy of doc carrying
// the matched _id.
func (c *CollectionBase) Replace(ctx context.Context, filter *query.QueryFilter, doc *document.Document, upsert bool, limit query.Limit) ([]*document.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil replacement", ErrInvalidDocument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireFilter("replace", filter); err != nil {
		return nil, err
	}
	var results []*document.Document
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		ids, err := c.executor.SelectIDs(ctx, coll, filter, limit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			if !upsert {
				return c.noMatch(filter)
			}
			ids = []string{c.ids.NewID()}
		}
		for _, id := range ids {
			replacement := withID(doc, id)
			coll.Put(id, replacement)
			results = append(results, replacement)
		}
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return cloneAll(results), nil
}

// RemoveByID deletes the document stored under id and returns it.
func (c *CollectionBase) RemoveByID(ctx context.Context, id string) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed *document.Document
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		doc, ok := coll.Get(id)
		if !ok {
			return c.notFound(id)
		}
		coll.Delete(id)
		removed = doc
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return []*document.Document{removed.Clone()}, nil
}

// Remove deletes the documents matching filter and returns them. A filter
// nobody satisfies removes nothing and succeeds with no documents.
func (c *CollectionBase) Remove(ctx context.Context, filter *query.QueryFilter, limit query.Limit) ([]*document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireFilter("remove", filter); err != nil {
		return nil, err
	}
	var removed []*document.Document
	count, err := c.executor.Mutate(ctx, c.name, func(coll *document.Collection) error {
		ids, err := c.executor.SelectIDs(ctx, coll, filter, limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, _ := coll.Get(id)
			coll.Delete(id)
			removed = append(removed, doc)
		}
		return nil
	})
	c.count = count
	if err != nil {
		return nil, err
	}
	return cloneAll(removed), nil
}

// Rename moves the collection to newName. It fails when newName is invalid
// or already taken.
func (c *CollectionBase) Rename(ctx context.Context, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.name
	if err := c.executor.Store().Rename(ctx, old, newName); err != nil {
		return fmt.Errorf("failed to rename collection '%s' to '%s': %w", old, newName, err)
	}
	c.name = newName
	if c.renamed != nil {
		c.renamed(old, newName)
	}
	c.logger.Debug("Renamed collection", zap.String("from", old), zap.String("to", newName))
	return nil
}

// withID returns a copy of doc whose first field is _id set to id.
func withID(doc *document.Document, id string) *document.Document {
	out := document.New().SetID(id)
	for k, v := range doc.Fields() {
		if k == document.IDField {
			continue
		}
		out.Set(k, v.Clone())
	}
	return out
}

func cloneAll(docs []*document.Document) []*document.Document {
	out := make([]*document.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
