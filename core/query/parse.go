package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-mockdb/core/document"
)

// Parse converts a filter document into a QueryFilter.
//
// Top-level keys are combined with AND. $and and $or take an array of nested
// filter documents. A field whose value is an object with $-prefixed keys is
// an operator document; any other value is matched by strict equality.
// A nil or empty document yields a filter that matches everything.
//
// Operands of built-in operators are checked here, so a malformed filter is
// rejected even when the collection it is applied to is empty.
func Parse(doc *document.Document) (*QueryFilter, error) {
	if doc == nil || doc.Len() == 0 {
		return MatchAll(), nil
	}

	conditions := make([]QueryFilter, 0, doc.Len())
	for key, val := range doc.Fields() {
		switch {
		case key == string(LogicalOperatorAnd) || key == string(LogicalOperatorOr):
			group, err := parseGroup(LogicalOperator(key), val)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, QueryFilter{Group: group})
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
		default:
			fieldConditions, err := parseField(key, val)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, fieldConditions...)
		}
	}

	if len(conditions) == 1 {
		return &conditions[0], nil
	}
	return &QueryFilter{Group: &FilterGroup{Operator: LogicalOperatorAnd, Conditions: conditions}}, nil
}

// ParseJSON decodes and parses a JSON filter document.
func ParseJSON(data []byte) (*QueryFilter, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return Parse(doc)
}

func parseGroup(op LogicalOperator, val document.Value) (*FilterGroup, error) {
	elems, ok := val.Array()
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an array of filters, got %s", ErrInvalidFilter, op, val.Kind())
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s expects a non-empty array", ErrInvalidFilter, op)
	}
	group := &FilterGroup{Operator: op, Conditions: make([]QueryFilter, 0, len(elems))}
	for i, e := range elems {
		sub, ok := e.Document()
		if !ok {
			return nil, fmt.Errorf("%w: %s element %d is %s, not a filter", ErrInvalidFilter, op, i, e.Kind())
		}
		f, err := Parse(sub)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		group.Conditions = append(group.Conditions, *f)
	}
	return group, nil
}

func parseField(field string, val document.Value) ([]QueryFilter, error) {
	ops, ok := val.Document()
	if !ok || !isOperatorDocument(ops) {
		return []QueryFilter{{Condition: &FilterCondition{
			Field:    field,
			Operator: ComparisonOperatorEq,
			Value:    val,
			Literal:  true,
		}}}, nil
	}

	out := make([]QueryFilter, 0, ops.Len())
	for name, operand := range ops.Fields() {
		if !strings.HasPrefix(name, "$") {
			return nil, fmt.Errorf("%w: field %q mixes operators with plain key %q", ErrInvalidFilter, field, name)
		}
		op := ComparisonOperator(name)
		if op.IsStandard() {
			if err := checkOperand(op, operand); err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
		}
		out = append(out, QueryFilter{Condition: &FilterCondition{Field: field, Operator: op, Value: operand}})
	}
	return out, nil
}

func isOperatorDocument(d *document.Document) bool {
	for k := range d.Fields() {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}
