package query

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/asaidimu/go-mockdb/core/document"
	"go.uber.org/zap"
)

// PredicateFunction is a pure Go function that performs custom filtering logic
// on a document. It receives the document, the field named in the filter and
// the operand, and reports whether the document passes.
type PredicateFunction func(doc *document.Document, field string, operand document.Value) (bool, error)

// DataProcessor evaluates filters against documents in memory.
type DataProcessor struct {
	goFilterFunctions map[ComparisonOperator]PredicateFunction
	mu                sync.RWMutex
	logger            *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		goFilterFunctions: make(map[ComparisonOperator]PredicateFunction),
		logger:            logger,
	}
}

// RegisterFilterFunction registers a Go function for a custom operator such
// as "$startsWith". Built-in operators cannot be overridden.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	if operator.IsStandard() {
		p.logger.Warn("Ignoring filter function for built-in operator", zap.String("operator", string(operator)))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goFilterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterFilterFunctions registers multiple PredicateFunction functions from a map.
func (p *DataProcessor) RegisterFilterFunctions(functionMap map[ComparisonOperator]PredicateFunction) {
	for operator, fn := range functionMap {
		p.RegisterFilterFunction(operator, fn)
	}
}

// Validate walks the filter and reports malformed operands and operators that
// are neither built-in nor registered.
func (p *DataProcessor) Validate(filter *QueryFilter) error {
	if filter == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.validate(filter)
}

func (p *DataProcessor) validate(filter *QueryFilter) error {
	if c := filter.Condition; c != nil {
		if c.Operator.IsStandard() {
			if err := checkOperand(c.Operator, c.Value); err != nil {
				return fmt.Errorf("field %q: %w", c.Field, err)
			}
			return nil
		}
		if _, ok := p.goFilterFunctions[c.Operator]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
		}
		return nil
	}
	if g := filter.Group; g != nil {
		if g.Operator != LogicalOperatorAnd && g.Operator != LogicalOperatorOr {
			return fmt.Errorf("%w: %s", ErrUnknownOperator, g.Operator)
		}
		for i := range g.Conditions {
			if err := p.validate(&g.Conditions[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: empty filter node", ErrInvalidFilter)
}

// Match evaluates a document against a filter. A nil filter matches every
// document.
func (p *DataProcessor) Match(ctx context.Context, filter *QueryFilter, doc *document.Document) (bool, error) {
	if filter == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.validate(filter); err != nil {
		return false, err
	}
	return p.evaluateGoFilter(doc, filter)
}

// evaluateGoFilter recursively evaluates a QueryFilter. Logical groups short
// circuit in declaration order.
func (p *DataProcessor) evaluateGoFilter(doc *document.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.goFilterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("%w: %s", ErrUnknownOperator, filter.Condition.Operator)
			}
			return fn(doc, filter.Condition.Field, filter.Condition.Value)
		}
		return evaluateStandardCondition(doc, filter.Condition)
	}
	if filter.Group != nil {
		switch filter.Group.Operator {
		case LogicalOperatorAnd:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateGoFilter(doc, &filter.Group.Conditions[i])
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case LogicalOperatorOr:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateGoFilter(doc, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if passes {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("%w: %s", ErrUnknownOperator, filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("%w: empty filter node", ErrInvalidFilter)
}

// Scan lazily yields deep copies of the documents matching filter, in
// collection order. With LimitOne it stops after the first match. The first
// error ends the sequence.
func (p *DataProcessor) Scan(ctx context.Context, coll *document.Collection, filter *QueryFilter, limit Limit) iter.Seq2[*document.Document, error] {
	return func(yield func(*document.Document, error) bool) {
		if err := p.Validate(filter); err != nil {
			yield(nil, err)
			return
		}
		for id, doc := range coll.All() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ok, err := p.match(doc, filter)
			if err != nil {
				yield(nil, fmt.Errorf("evaluating filter for document %q: %w", id, err))
				return
			}
			if !ok {
				continue
			}
			if !yield(doc.Clone(), nil) || limit == LimitOne {
				return
			}
		}
	}
}

func (p *DataProcessor) match(doc *document.Document, filter *QueryFilter) (bool, error) {
	if filter == nil {
		return true, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluateGoFilter(doc, filter)
}

// Select returns deep copies of the documents matching filter, in collection
// order. It never returns a nil slice on success.
func (p *DataProcessor) Select(ctx context.Context, coll *document.Collection, filter *QueryFilter, limit Limit) ([]*document.Document, error) {
	out := []*document.Document{}
	for doc, err := range p.Scan(ctx, coll, filter, limit) {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	p.logger.Debug("Selected documents",
		zap.Int("scanned", coll.Len()),
		zap.Int("matched", len(out)),
		zap.Stringer("filter", filter),
	)
	return out, nil
}

// SelectIDs returns the ids of the documents matching filter, in collection
// order, without copying the documents.
func (p *DataProcessor) SelectIDs(ctx context.Context, coll *document.Collection, filter *QueryFilter, limit Limit) ([]string, error) {
	if err := p.Validate(filter); err != nil {
		return nil, err
	}
	var ids []string
	for id, doc := range coll.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := p.match(doc, filter)
		if err != nil {
			return nil, fmt.Errorf("evaluating filter for document %q: %w", id, err)
		}
		if !ok {
			continue
		}
		ids = append(ids, id)
		if limit == LimitOne {
			break
		}
	}
	return ids, nil
}
