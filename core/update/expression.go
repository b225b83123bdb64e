// Package update implements the update-operator engine: given a document and
// an update expression such as
//
//	{"$set": {"status": "done"}, "$inc": {"revision": 1}, "upsert": true}
//
// it computes a new document without touching the original.
package update

import (
	"errors"
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
)

var (
	// ErrUnknownOperator is returned for a key that is not a recognized update operator.
	ErrUnknownOperator = errors.New("unknown update operator")
	// ErrTypeMismatch is returned when a field or operand has the wrong type for an operator.
	ErrTypeMismatch = errors.New("update type mismatch")
	// ErrInvalidExpression is returned for structurally malformed update expressions.
	ErrInvalidExpression = errors.New("invalid update expression")
)

// Operator is the name of an update operator.
type Operator string

// Supported update operators.
const (
	OperatorSet         Operator = "$set"
	OperatorInc         Operator = "$inc"
	OperatorMul         Operator = "$mul"
	OperatorMin         Operator = "$min"
	OperatorMax         Operator = "$max"
	OperatorUnset       Operator = "$unset"
	OperatorRename      Operator = "$rename"
	OperatorAddToSet    Operator = "$addToSet"
	OperatorPop         Operator = "$pop"
	OperatorPush        Operator = "$push"
	OperatorPullAll     Operator = "$pullAll"
	OperatorSetOnInsert Operator = "$setOnInsert"
)

// UpsertKey is the expression key carrying the upsert flag.
const UpsertKey = "upsert"

// applyOrder is the order in which Apply processes operators. $setOnInsert is
// deliberately absent.
var applyOrder = []Operator{
	OperatorSet,
	OperatorInc,
	OperatorMul,
	OperatorMin,
	OperatorMax,
	OperatorUnset,
	OperatorRename,
	OperatorAddToSet,
	OperatorPop,
	OperatorPush,
	OperatorPullAll,
}

var knownOperators = map[Operator]struct{}{
	OperatorSet:         {},
	OperatorInc:         {},
	OperatorMul:         {},
	OperatorMin:         {},
	OperatorMax:         {},
	OperatorUnset:       {},
	OperatorRename:      {},
	OperatorAddToSet:    {},
	OperatorPop:         {},
	OperatorPush:        {},
	OperatorPullAll:     {},
	OperatorSetOnInsert: {},
}

// IsKnown reports whether o is a recognized update operator.
func (o Operator) IsKnown() bool {
	_, ok := knownOperators[o]
	return ok
}

// Expression is a parsed update expression: per operator, a mapping from
// field name to operand.
type Expression struct {
	operations map[Operator]*document.Document
	order      []Operator
	Upsert     bool
}

// NewExpression returns an empty expression.
func NewExpression() *Expression {
	return &Expression{operations: make(map[Operator]*document.Document)}
}

// Parse converts an update document into an Expression. Every top-level key
// must be a recognized operator mapping to an object, or the boolean upsert
// flag.
func Parse(doc *document.Document) (*Expression, error) {
	expr := NewExpression()
	if doc == nil {
		return expr, nil
	}
	for key, val := range doc.Fields() {
		if key == UpsertKey {
			b, ok := val.Bool()
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a bool, got %s", ErrInvalidExpression, UpsertKey, val.Kind())
			}
			expr.Upsert = b
			continue
		}
		op := Operator(key)
		if !op.IsKnown() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
		}
		fields, ok := val.Document()
		if !ok {
			return nil, fmt.Errorf("%w: %s expects an object of fields, got %s", ErrInvalidExpression, key, val.Kind())
		}
		for field, operand := range fields.Fields() {
			expr.add(op, field, operand)
		}
	}
	return expr, nil
}

// ParseJSON decodes and parses a JSON update document.
func ParseJSON(data []byte) (*Expression, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return Parse(doc)
}

func (e *Expression) add(op Operator, field string, operand document.Value) {
	fields, ok := e.operations[op]
	if !ok {
		fields = document.New()
		e.operations[op] = fields
		e.order = append(e.order, op)
	}
	fields.Set(field, operand)
}

// Fields returns the operand mapping of op.
func (e *Expression) Fields(op Operator) (*document.Document, bool) {
	fields, ok := e.operations[op]
	return fields, ok
}

// SetOnInsert returns the $setOnInsert fields, or nil when there are none.
func (e *Expression) SetOnInsert() *document.Document {
	return e.operations[OperatorSetOnInsert]
}

// IsEmpty reports whether the expression carries no operators.
func (e *Expression) IsEmpty() bool {
	return e == nil || len(e.operations) == 0
}

// Document renders e back into its document form.
func (e *Expression) Document() *document.Document {
	out := document.New()
	if e == nil {
		return out
	}
	for _, op := range e.order {
		out.Set(string(op), document.Object(e.operations[op].Clone()))
	}
	if e.Upsert {
		out.Set(UpsertKey, document.Bool(true))
	}
	return out
}

// String renders e as JSON for logs and error messages.
func (e *Expression) String() string {
	return e.Document().String()
}
