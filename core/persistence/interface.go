package persistence

import (
	"context"
	"errors"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
)

var (
	// ErrNotFound is returned when a by-id or by-filter operation finds no target.
	ErrNotFound = errors.New("document not found")
	// ErrEmptyFilter is returned when update, replace or remove is called with
	// a filter that would match every document.
	ErrEmptyFilter = errors.New("empty filter")
	// ErrDuplicateID is returned when an insert carries an _id already present.
	ErrDuplicateID = errors.New("duplicate document id")
	// ErrCollectionNotFound is returned by stores for a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when a rename target already exists.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrDatabaseNotFound is returned by backends for a missing database.
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrInvalidDocument is returned for documents that cannot be stored, such
	// as a nil document or one whose _id is not a non-empty string.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidName is returned for database or collection names that cannot
	// be stored safely.
	ErrInvalidName = errors.New("invalid name")
)

// CountUnknown is reported by Count when the collection could not be read.
const CountUnknown = -1

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	DocumentCreateStart     PersistenceEventType = "document:create:start"
	DocumentCreateSuccess   PersistenceEventType = "document:create:success"
	DocumentCreateFailed    PersistenceEventType = "document:create:failed"
	DocumentReadStart       PersistenceEventType = "document:read:start"
	DocumentReadSuccess     PersistenceEventType = "document:read:success"
	DocumentReadFailed      PersistenceEventType = "document:read:failed"
	DocumentUpdateStart     PersistenceEventType = "document:update:start"
	DocumentUpdateSuccess   PersistenceEventType = "document:update:success"
	DocumentUpdateFailed    PersistenceEventType = "document:update:failed"
	DocumentReplaceStart    PersistenceEventType = "document:replace:start"
	DocumentReplaceSuccess  PersistenceEventType = "document:replace:success"
	DocumentReplaceFailed   PersistenceEventType = "document:replace:failed"
	DocumentDeleteStart     PersistenceEventType = "document:delete:start"
	DocumentDeleteSuccess   PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed    PersistenceEventType = "document:delete:failed"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	CollectionDeleteSuccess PersistenceEventType = "collection:delete:success"
	CollectionDeleteFailed  PersistenceEventType = "collection:delete:failed"
	CollectionRenameSuccess PersistenceEventType = "collection:rename:success"
	CollectionRenameFailed  PersistenceEventType = "collection:rename:failed"
	DatabaseCreateSuccess   PersistenceEventType = "database:create:success"
	DatabaseDeleteSuccess   PersistenceEventType = "database:delete:success"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`                 // The type of event (e.g., 'document:create:start').
	Timestamp  int64                `json:"timestamp"`            // Timestamp when the event occurred (Unix milliseconds).
	Operation  string               `json:"operation"`            // The operation being performed (e.g., 'insertOne').
	Database   *string              `json:"database,omitempty"`   // Name of the database affected (if applicable).
	Collection *string              `json:"collection,omitempty"` // Name of the collection affected (if applicable).
	Input      any                  `json:"input,omitempty"`      // Data passed to the operation (if applicable).
	Output     any                  `json:"output,omitempty"`     // Data returned by the operation (if applicable).
	Error      *string              `json:"error,omitempty"`      // Error message if the operation failed.
	Query      any                  `json:"query,omitempty"`      // Filter or id used in the operation (if applicable).
	Duration   *int64               `json:"duration,omitempty"`   // Duration of the operation in milliseconds.
}

// EventCallbackFunction receives persistence events.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	Id          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`                 // The event subscribed to.
	Label       *string              `json:"label,omitempty"`       // Optional short identifier.
	Description *string              `json:"description,omitempty"` // Optional description.
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// CollectionInterface is the public surface of a collection. Every data
// operation reports its outcome through a Response envelope.
type CollectionInterface interface {
	InsertOne(ctx context.Context, doc *document.Document) *Response
	InsertMany(ctx context.Context, docs []*document.Document) *Response

	FindByID(ctx context.Context, id string) *Response
	Find(ctx context.Context, filter *query.QueryFilter) *Response
	FindOne(ctx context.Context, filter *query.QueryFilter) *Response

	UpdateByID(ctx context.Context, id string, expr *update.Expression) *Response
	Update(ctx context.Context, filter *query.QueryFilter, expr *update.Expression) *Response
	UpdateOne(ctx context.Context, filter *query.QueryFilter, expr *update.Expression) *Response

	ReplaceByID(ctx context.Context, id string, doc *document.Document, upsert bool) *Response
	Replace(ctx context.Context, filter *query.QueryFilter, doc *document.Document, upsert bool) *Response
	ReplaceOne(ctx context.Context, filter *query.QueryFilter, doc *document.Document, upsert bool) *Response

	RemoveByID(ctx context.Context, id string) *Response
	Remove(ctx context.Context, filter *query.QueryFilter) *Response
	RemoveOne(ctx context.Context, filter *query.QueryFilter) *Response

	Count() int
	Name() string
	Rename(ctx context.Context, newName string) bool
}
