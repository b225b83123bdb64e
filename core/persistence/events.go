package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
)

// Collection wraps a CollectionBase, emits persistence events around every
// operation and reports outcomes through Response envelopes.
type Collection struct {
	collection *CollectionBase
	bus        *events.TypedEventBus[PersistenceEvent]
}

var _ CollectionInterface = (*Collection)(nil)

// NewEventEmittingCollection creates a new event-emitting collection wrapper.
// A nil bus disables event emission.
func NewEventEmittingCollection(collection *CollectionBase, bus *events.TypedEventBus[PersistenceEvent]) *Collection {
	return &Collection{
		collection: collection,
		bus:        bus,
	}
}

// emitEvent is a helper method to emit events
func (e *Collection) emitEvent(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events
func (e *Collection) withEventEmission(
	operation string,
	startEventType PersistenceEventType,
	successEventType PersistenceEventType,
	failedEventType PersistenceEventType,
	input any,
	queryParam any,
	fn func() ([]*document.Document, error),
) *Response {
	startTime := time.Now()
	database, name := e.collection.Database(), e.collection.Name()
	response := newResponse(database, name)

	e.emitEvent(createEvent(startEventType, operation, database, name, input, nil, queryParam, nil, startTime))

	result, err := fn()
	if err != nil {
		errStr := err.Error()
		e.emitEvent(createEvent(failedEventType, operation, database, name, input, nil, queryParam, &errStr, startTime))
		return response.fail(err)
	}

	e.emitEvent(createEvent(successEventType, operation, database, name, input, cloneAll(result), queryParam, nil, startTime))
	return response.succeed(result)
}

func expressionInput(expr *update.Expression) any {
	if expr == nil {
		return nil
	}
	return expr.Document()
}

// InsertOne stores doc. A missing _id is generated.
func (e *Collection) InsertOne(ctx context.Context, doc *document.Document) *Response {
	return e.withEventEmission("insertOne", DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed,
		doc, nil,
		func() ([]*document.Document, error) {
			return e.collection.InsertOne(ctx, doc)
		},
	)
}

// InsertMany stores docs in order, all or nothing.
func (e *Collection) InsertMany(ctx context.Context, docs []*document.Document) *Response {
	return e.withEventEmission("insertMany", DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed,
		docs, nil,
		func() ([]*document.Document, error) {
			return e.collection.InsertMany(ctx, docs)
		},
	)
}

// FindByID looks a document up by its _id.
func (e *Collection) FindByID(ctx context.Context, id string) *Response {
	return e.withEventEmission("findById", DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		nil, id,
		func() ([]*document.Document, error) {
			return e.collection.FindByID(ctx, id)
		},
	)
}

// Find returns every document matching filter. A nil filter matches all.
func (e *Collection) Find(ctx context.Context, filter *query.QueryFilter) *Response {
	return e.withEventEmission("find", DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		nil, filter,
		func() ([]*document.Document, error) {
			return e.collection.Find(ctx, filter, query.LimitAll)
		},
	)
}

// FindOne returns the first document matching filter in insertion order.
func (e *Collection) FindOne(ctx context.Context, filter *query.QueryFilter) *Response {
	return e.withEventEmission("findOne", DocumentReadStart, DocumentReadSuccess, DocumentReadFailed,
		nil, filter,
		func() ([]*document.Document, error) {
			return e.collection.Find(ctx, filter, query.LimitOne)
		},
	)
}

func (e *Collection) UpdateByID(ctx context.Context, id string, expr *update.Expression) *Response {
	return e.withEventEmission("updateById", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed,
		expressionInput(expr), id,
		func() ([]*document.Document, error) {
			return e.collection.UpdateByID(ctx, id, expr)
		},
	)
}

func (e *Collection) Update(ctx context.Context, filter *query.QueryFilter, expr *update.Expression) *Response {
	return e.withEventEmission("update", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed,
		expressionInput(expr), filter,
		func() ([]*document.Document, error) {
			return e.collection.Update(ctx, filter, expr, query.LimitAll)
		},
	)
}

func (e *Collection) UpdateOne(ctx context.Context, filter *query.QueryFilter, expr *update.Expression) *Response {
	return e.withEventEmission("updateOne", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed,
		expressionInput(expr), filter,
		func() ([]*document.Document, error) {
			return e.collection.Update(ctx, filter, expr, query.LimitOne)
		},
	)
}

func (e *Collection) ReplaceByID(ctx context.Context, id string, doc *document.Document, upsert bool) *Response {
	return e.withEventEmission("replaceById", DocumentReplaceStart, DocumentReplaceSuccess, DocumentReplaceFailed,
		doc, id,
		func() ([]*document.Document, error) {
			return e.collection.ReplaceByID(ctx, id, doc, upsert)
		},
	)
}

func (e *Collection) Replace(ctx context.Context, filter *query.QueryFilter, doc *document.Document, upsert bool) *Response {
	return e.withEventEmission("replace", DocumentReplaceStart, DocumentReplaceSuccess, DocumentReplaceFailed,
		doc, filter,
		func() ([]*document.Document, error) {
			return e.collection.Replace(ctx, filter, doc, upsert, query.LimitAll)
		},
	)
}

func (e *Collection) ReplaceOne(ctx context.Context, filter *query.QueryFilter, doc *document.Document, upsert bool) *Response {
	return e.withEventEmission("replaceOne", DocumentReplaceStart, DocumentReplaceSuccess, DocumentReplaceFailed,
		doc, filter,
		func() ([]*document.Document, error) {
			return e.collection.Replace(ctx, filter, doc, upsert, query.LimitOne)
		},
	)
}

func (e *Collection) RemoveByID(ctx context.Context, id string) *Response {
	return e.withEventEmission("removeById", DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		nil, id,
		func() ([]*document.Document, error) {
			return e.collection.RemoveByID(ctx, id)
		},
	)
}

func (e *Collection) Remove(ctx context.Context, filter *query.QueryFilter) *Response {
	return e.withEventEmission("remove", DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		nil, filter,
		func() ([]*document.Document, error) {
			return e.collection.Remove(ctx, filter, query.LimitAll)
		},
	)
}

func (e *Collection) RemoveOne(ctx context.Context, filter *query.QueryFilter) *Response {
	return e.withEventEmission("removeOne", DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed,
		nil, filter,
		func() ([]*document.Document, error) {
			return e.collection.Remove(ctx, filter, query.LimitOne)
		},
	)
}

// Count delegates to the underlying collection (no events needed for counting)
func (e *Collection) Count() int {
	return e.collection.Count()
}

func (e *Collection) Name() string {
	return e.collection.Name()
}

// Database returns the name of the database holding the collection.
func (e *Collection) Database() string {
	return e.collection.Database()
}

// Rename moves the collection to newName and reports whether it succeeded.
// It returns false when newName is invalid or already in use.
func (e *Collection) Rename(ctx context.Context, newName string) bool {
	startTime := time.Now()
	database, old := e.collection.Database(), e.collection.Name()
	input := map[string]any{"from": old, "to": newName}

	if err := e.collection.Rename(ctx, newName); err != nil {
		errStr := err.Error()
		e.emitEvent(createEvent(CollectionRenameFailed, "rename", database, old, input, nil, nil, &errStr, startTime))
		return false
	}
	e.emitEvent(createEvent(CollectionRenameSuccess, "rename", database, newName, input, nil, nil, nil, startTime))
	return true
}
