// Package persistence provides the collection manager of the document store:
// databases, collections, CRUD operations with upsert semantics, and the
// event bus that reports every operation to subscribers.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persistence is the entry point of the store. It opens databases through a
// Backend and handles event subscriptions for observability.
type Persistence struct {
	backend       Backend
	ids           IDGenerator
	filters       map[query.ComparisonOperator]query.PredicateFunction
	logger        *zap.Logger
	subscriptions map[string]*SubscriptionInfo // To store unsubscribe functions
	subMu         sync.RWMutex                 // Mutex to protect subscriptions map
	bus           *events.TypedEventBus[PersistenceEvent]

	mu        sync.Mutex
	databases map[string]*Database
}

// Option configures a Persistence.
type Option func(*Persistence)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Persistence) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIDGenerator replaces the generator used for documents inserted without an _id.
func WithIDGenerator(ids IDGenerator) Option {
	return func(p *Persistence) {
		if ids != nil {
			p.ids = ids
		}
	}
}

// WithFilterFunctions registers custom filter operators for every database.
func WithFilterFunctions(functionMap map[query.ComparisonOperator]query.PredicateFunction) Option {
	return func(p *Persistence) {
		maps.Copy(p.filters, functionMap)
	}
}

// NewPersistence creates a new instance of the Persistence service on top of backend.
func NewPersistence(backend Backend, opts ...Option) (*Persistence, error) {
	if backend == nil {
		return nil, errors.New("persistence requires a backend")
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	p := &Persistence{
		backend:       backend,
		ids:           UUIDGenerator{},
		filters:       make(map[query.ComparisonOperator]query.PredicateFunction),
		logger:        zap.NewNop(),
		subscriptions: make(map[string]*SubscriptionInfo),
		bus:           bus,
		databases:     make(map[string]*Database),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Persistence) emitEvent(event PersistenceEvent) {
	p.bus.Emit(string(event.Type), event)
}

// CreateDatabase creates an empty database. Creating an existing database is a no-op.
func (p *Persistence) CreateDatabase(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := p.backend.CreateDatabase(ctx, name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	p.logger.Info("Created database", zap.String("database", name))
	p.emitEvent(createEvent(DatabaseCreateSuccess, "createDatabase", name, "", nil, nil, nil, nil, time.Time{}))
	return nil
}

// RemoveDatabase closes and deletes a database with all of its collections.
func (p *Persistence) RemoveDatabase(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.databases[name]; ok {
		if err := db.Close(); err != nil {
			p.logger.Warn("Failed to close database before removal", zap.String("database", name), zap.Error(err))
		}
		delete(p.databases, name)
	}
	if err := p.backend.RemoveDatabase(ctx, name); err != nil {
		return fmt.Errorf("failed to remove database %s: %w", name, err)
	}
	p.logger.Info("Removed database", zap.String("database", name))
	p.emitEvent(createEvent(DatabaseDeleteSuccess, "removeDatabase", name, "", nil, nil, nil, nil, time.Time{}))
	return nil
}

// DatabaseExists reports whether a database with the given name exists.
func (p *Persistence) DatabaseExists(ctx context.Context, name string) (bool, error) {
	return p.backend.DatabaseExists(ctx, name)
}

// Databases lists the names of all databases.
func (p *Persistence) Databases(ctx context.Context) ([]string, error) {
	return p.backend.Databases(ctx)
}

// Database connects to an existing database. Handles are shared: calling
// Database twice with the same name returns the same value.
func (p *Persistence) Database(ctx context.Context, name string) (*Database, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.databases[name]; ok {
		return db, nil
	}
	exists, err := p.backend.DatabaseExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error accessing database %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}
	store, err := p.backend.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", name, err)
	}

	executor := NewExecutor(store, p.logger.With(zap.String("database", name)))
	executor.RegisterFilterFunctions(p.filters)
	db := &Database{
		name:        name,
		executor:    executor,
		persistence: p,
		collections: make(map[string]*Collection),
	}
	p.databases[name] = db
	return db, nil
}

// RegisterFilterFunction registers a custom filter operator such as
// "$startsWith" for every open and future database.
func (p *Persistence) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filters[operator] = fn
	for _, db := range p.databases {
		db.executor.RegisterFilterFunction(operator, fn)
	}
}

// Close releases every open database.
func (p *Persistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, db := range p.databases {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database %s: %w", name, err))
		}
		delete(p.databases, name)
	}
	return errors.Join(errs...)
}

// RegisterSubscription registers a callback for a specific persistence event. It returns
// a unique ID that can be used to unregister the subscription later.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	unsubscribe := p.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	data := SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}

	p.subscriptions[id] = &data
	p.emitEvent(createEvent(SubscriptionRegister, "registerSubscription", "", "",
		map[string]any{"event": options.Event, "label": options.Label, "description": options.Description},
		map[string]any{"subscriptionId": id},
		nil, nil, time.Time{},
	))
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if info, ok := p.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(p.subscriptions, id)
		p.emitEvent(createEvent(SubscriptionUnregister, "unregisterSubscription", "", "",
			map[string]any{"subscriptionId": id}, nil, nil, nil, time.Time{},
		))
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (p *Persistence) Subscriptions() ([]SubscriptionInfo, error) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(p.subscriptions))
	for _, sub := range p.subscriptions {
		subs = append(subs, *sub)
	}

	return subs, nil
}
