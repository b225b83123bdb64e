package update

import (
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
	"go.uber.org/zap"
)

// fieldFunction applies one operator to one field of the working copy.
type fieldFunction func(doc *document.Document, field string, operand document.Value) error

// Engine applies update expressions to documents. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	functions map[Operator]fieldFunction
	logger    *zap.Logger
}

// NewEngine creates a new Engine instance.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		functions: map[Operator]fieldFunction{
			OperatorSet:      applySet,
			OperatorInc:      arithmetic(func(a, b float64) float64 { return a + b }),
			OperatorMul:      arithmetic(func(a, b float64) float64 { return a * b }),
			OperatorMin:      bound(func(operand, current float64) bool { return operand < current }),
			OperatorMax:      bound(func(operand, current float64) bool { return operand > current }),
			OperatorUnset:    applyUnset,
			OperatorRename:   applyRename,
			OperatorAddToSet: applyAddToSet,
			OperatorPop:      applyPop,
			OperatorPush:     applyPush,
			OperatorPullAll:  applyPullAll,
		},
		logger: logger,
	}
}

// Apply returns a new document computed from doc and expr. doc is never
// modified and never shares storage with the result. On error the working
// copy is discarded.
func (e *Engine) Apply(doc *document.Document, expr *Expression) (*document.Document, error) {
	out := doc.Clone()
	if out == nil {
		out = document.New()
	}
	if expr.IsEmpty() {
		return out, nil
	}
	for _, op := range applyOrder {
		fields, ok := expr.operations[op]
		if !ok {
			continue
		}
		fn := e.functions[op]
		for field, operand := range fields.Fields() {
			if err := fn(out, field, operand); err != nil {
				return nil, fmt.Errorf("%s on field %q: %w", op, field, err)
			}
		}
	}
	e.logger.Debug("Applied update", zap.Stringer("update", expr))
	return out, nil
}

// ApplyInsertOnly sets fields on a copy of doc. It is used for $setOnInsert
// when an upsert creates a new document.
func (e *Engine) ApplyInsertOnly(doc *document.Document, fields *document.Document) (*document.Document, error) {
	out := doc.Clone()
	if out == nil {
		out = document.New()
	}
	if fields == nil {
		return out, nil
	}
	for field, operand := range fields.Fields() {
		if err := applySet(out, field, operand); err != nil {
			return nil, fmt.Errorf("%s on field %q: %w", OperatorSetOnInsert, field, err)
		}
	}
	return out, nil
}

func applySet(doc *document.Document, field string, operand document.Value) error {
	doc.Set(field, operand.Clone())
	return nil
}

func applyUnset(doc *document.Document, field string, _ document.Value) error {
	doc.Delete(field)
	return nil
}

// arithmetic builds $inc and $mul. An absent field takes the operand as is.
func arithmetic(combine func(current, operand float64) float64) fieldFunction {
	return func(doc *document.Document, field string, operand document.Value) error {
		n, ok := operand.Number()
		if !ok {
			return fmt.Errorf("%w: operand must be a number, got %s", ErrTypeMismatch, operand.Kind())
		}
		current, present := doc.Get(field)
		if !present {
			doc.Set(field, operand)
			return nil
		}
		switch current.Kind() {
		case document.KindNumber:
			c, _ := current.Number()
			doc.Set(field, document.Number(combine(c, n)))
			return nil
		case document.KindNull:
			return fmt.Errorf("%w: field is null", ErrTypeMismatch)
		default:
			return fmt.Errorf("%w: field must be a number, got %s", ErrTypeMismatch, current.Kind())
		}
	}
}

// bound builds $min and $max. An absent or null field takes the operand.
func bound(replace func(operand, current float64) bool) fieldFunction {
	return func(doc *document.Document, field string, operand document.Value) error {
		n, ok := operand.Number()
		if !ok {
			return fmt.Errorf("%w: operand must be a number, got %s", ErrTypeMismatch, operand.Kind())
		}
		current, present := doc.Get(field)
		if !present {
			doc.Set(field, operand)
			return nil
		}
		switch current.Kind() {
		case document.KindNumber:
			if c, _ := current.Number(); replace(n, c) {
				doc.Set(field, operand)
			}
			return nil
		case document.KindNull:
			doc.Set(field, operand)
			return nil
		default:
			return fmt.Errorf("%w: field must be a number or null, got %s", ErrTypeMismatch, current.Kind())
		}
	}
}

func applyRename(doc *document.Document, field string, operand document.Value) error {
	target, ok := operand.Str()
	if !ok {
		return fmt.Errorf("%w: destination must be a string, got %s", ErrTypeMismatch, operand.Kind())
	}
	if field == document.IDField || target == document.IDField {
		return fmt.Errorf("%w: cannot rename %s", ErrInvalidExpression, document.IDField)
	}
	if target == field {
		return nil
	}
	v, present := doc.Get(field)
	if !present {
		return nil
	}
	doc.Delete(field)
	doc.Set(target, v)
	return nil
}

// arrayField returns the array stored under field or a type error.
func arrayField(doc *document.Document, field string) ([]document.Value, error) {
	current, present := doc.Get(field)
	if !present {
		return nil, fmt.Errorf("%w: field is absent, expected array", ErrTypeMismatch)
	}
	elems, ok := current.Array()
	if !ok {
		return nil, fmt.Errorf("%w: field must be an array, got %s", ErrTypeMismatch, current.Kind())
	}
	return elems, nil
}

func applyAddToSet(doc *document.Document, field string, operand document.Value) error {
	elems, err := arrayField(doc, field)
	if err != nil {
		return err
	}
	for _, e := range elems {
		if e.Equal(operand) {
			return nil
		}
	}
	doc.Set(field, document.Array(append(cloneValues(elems), operand.Clone())...))
	return nil
}

func applyPush(doc *document.Document, field string, operand document.Value) error {
	elems, err := arrayField(doc, field)
	if err != nil {
		return err
	}
	doc.Set(field, document.Array(append(cloneValues(elems), operand.Clone())...))
	return nil
}

// applyPop removes the first element for -1 and the last for 1.
func applyPop(doc *document.Document, field string, operand document.Value) error {
	elems, err := arrayField(doc, field)
	if err != nil {
		return err
	}
	n, ok := operand.Number()
	if !ok {
		return fmt.Errorf("%w: operand must be 1 or -1, got %s", ErrTypeMismatch, operand.Kind())
	}
	if n != 1 && n != -1 {
		return fmt.Errorf("%w: operand must be 1 or -1, got %v", ErrInvalidExpression, n)
	}
	if len(elems) == 0 {
		return nil
	}
	if n == -1 {
		doc.Set(field, document.Array(cloneValues(elems[1:])...))
	} else {
		doc.Set(field, document.Array(cloneValues(elems[:len(elems)-1])...))
	}
	return nil
}

func applyPullAll(doc *document.Document, field string, operand document.Value) error {
	elems, err := arrayField(doc, field)
	if err != nil {
		return err
	}
	remove, ok := operand.Array()
	if !ok {
		return fmt.Errorf("%w: operand must be an array, got %s", ErrTypeMismatch, operand.Kind())
	}
	kept := make([]document.Value, 0, len(elems))
	for _, e := range elems {
		drop := false
		for _, r := range remove {
			if e.Equal(r) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	doc.Set(field, document.Array(kept...))
	return nil
}

func cloneValues(vs []document.Value) []document.Value {
	out := make([]document.Value, len(vs), len(vs)+1)
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
