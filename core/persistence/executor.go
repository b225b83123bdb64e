package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"go.uber.org/zap"
)

// Executor orchestrates collection operations by coordinating the Store, the
// DataProcessor and the update Engine. Every mutation follows the same cycle:
// load the snapshot, transform it in memory, persist it only on success.
type Executor struct {
	store         Store
	dataProcessor *query.DataProcessor
	engine        *update.Engine
	logger        *zap.Logger
}

// NewExecutor creates an Executor over store with the built-in filter
// operators and update engine.
func NewExecutor(store Store, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:         store,
		dataProcessor: query.NewDataProcessor(logger),
		engine:        update.NewEngine(logger),
		logger:        logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (e *Executor) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	e.dataProcessor.RegisterFilterFunction(operator, fn)
}

// RegisterFilterFunctions registers multiple filter functions from a map.
func (e *Executor) RegisterFilterFunctions(functionMap map[query.ComparisonOperator]query.PredicateFunction) {
	e.dataProcessor.RegisterFilterFunctions(functionMap)
}

// Store returns the underlying store.
func (e *Executor) Store() Store {
	return e.store
}

// Load reads the current snapshot of a collection.
func (e *Executor) Load(ctx context.Context, collection string) (*document.Collection, error) {
	coll, err := e.store.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection '%s': %w", collection, err)
	}
	e.logger.Debug("Loaded collection", zap.String("collection", collection), zap.Int("count", coll.Len()))
	return coll, nil
}

// Query returns copies of the documents of collection matching filter.
func (e *Executor) Query(ctx context.Context, collection string, filter *query.QueryFilter, limit query.Limit) ([]*document.Document, int, error) {
	coll, err := e.Load(ctx, collection)
	if err != nil {
		return nil, CountUnknown, err
	}
	docs, err := e.dataProcessor.Select(ctx, coll, filter, limit)
	if err != nil {
		return nil, coll.Len(), err
	}
	return docs, coll.Len(), nil
}

// Mutate loads collection, hands the snapshot to fn and saves the result when
// fn succeeds. When fn fails nothing is written. It returns the number of
// documents in the collection afterwards.
func (e *Executor) Mutate(ctx context.Context, collection string, fn func(coll *document.Collection) error) (int, error) {
	coll, err := e.Load(ctx, collection)
	if err != nil {
		return CountUnknown, err
	}
	before := coll.Len()
	if err := fn(coll); err != nil {
		e.logger.Debug("Discarding failed mutation", zap.String("collection", collection), zap.Error(err))
		return before, err
	}
	if err := ctx.Err(); err != nil {
		return before, err
	}
	if err := e.store.Save(ctx, collection, coll); err != nil {
		return CountUnknown, fmt.Errorf("failed to save collection '%s': %w", collection, err)
	}
	e.logger.Debug("Saved collection", zap.String("collection", collection), zap.Int("count", coll.Len()))
	return coll.Len(), nil
}

// SelectIDs evaluates filter against an already loaded snapshot.
func (e *Executor) SelectIDs(ctx context.Context, coll *document.Collection, filter *query.QueryFilter, limit query.Limit) ([]string, error) {
	return e.dataProcessor.SelectIDs(ctx, coll, filter, limit)
}

// Apply runs expr against doc.
func (e *Executor) Apply(doc *document.Document, expr *update.Expression) (*document.Document, error) {
	return e.engine.Apply(doc, expr)
}

// ApplyInsertOnly applies $setOnInsert fields for an upsert.
func (e *Executor) ApplyInsertOnly(doc *document.Document, fields *document.Document) (*document.Document, error) {
	return e.engine.ApplyInsertOnly(doc, fields)
}
