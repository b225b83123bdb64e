// Package query defines the filter language used to select documents from a
// collection and the processor that evaluates it in memory.
//
// A filter is written as a document, in the familiar MongoDB style:
//
//	{"age": {"$gte": 18}, "$or": [{"role": "admin"}, {"role": "owner"}]}
//
// and is parsed into a small recursive tree of conditions and logical groups.
package query

import (
	"github.com/asaidimu/go-mockdb/core/document"
)

// LogicalOperator combines nested filters.
type LogicalOperator string

// Logical operators for combining filters.
const (
	LogicalOperatorAnd LogicalOperator = "$and"
	LogicalOperatorOr  LogicalOperator = "$or"
)

// ComparisonOperator is the name of a per-field predicate.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq       ComparisonOperator = "$eq"
	ComparisonOperatorNe       ComparisonOperator = "$ne"
	ComparisonOperatorGt       ComparisonOperator = "$gt"
	ComparisonOperatorGte      ComparisonOperator = "$gte"
	ComparisonOperatorLt       ComparisonOperator = "$lt"
	ComparisonOperatorLte      ComparisonOperator = "$lte"
	ComparisonOperatorIn       ComparisonOperator = "$in"
	ComparisonOperatorNin      ComparisonOperator = "$nin"
	ComparisonOperatorExists   ComparisonOperator = "$exists"
	ComparisonOperatorContains ComparisonOperator = "$contains"
)

// Keys of the $contains operand.
const (
	ContainsTerms         = "$terms"
	ContainsCaseSensitive = "$caseSensitive"
)

// FilterCondition is a single predicate applied to one field.
type FilterCondition struct {
	Field    string             // The field to apply the predicate to.
	Operator ComparisonOperator // The predicate to evaluate.
	Value    document.Value     // The operand.
	Literal  bool               // Set when the condition was written as {field: value}.
}

// FilterGroup combines nested filters with a logical operator.
type FilterGroup struct {
	Operator   LogicalOperator
	Conditions []QueryFilter
}

// QueryFilter is a union: exactly one of Condition or Group is set. An empty
// group matches every document.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"`
	Group     *FilterGroup     `json:",omitempty"`
}

// MatchAll returns a filter that matches every document.
func MatchAll() *QueryFilter {
	return &QueryFilter{Group: &FilterGroup{Operator: LogicalOperatorAnd}}
}

// IsEmpty reports whether f places no constraint on documents.
func (f *QueryFilter) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Condition == nil && (f.Group == nil || (f.Group.Operator == LogicalOperatorAnd && len(f.Group.Conditions) == 0))
}

// Limit bounds how many matches a selection returns.
type Limit int

// Selection limits.
const (
	LimitAll Limit = iota
	LimitOne
)

// standardComparisonOperators is the set of built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:       {},
	ComparisonOperatorNe:       {},
	ComparisonOperatorGt:       {},
	ComparisonOperatorGte:      {},
	ComparisonOperatorLt:       {},
	ComparisonOperatorLte:      {},
	ComparisonOperatorIn:       {},
	ComparisonOperatorNin:      {},
	ComparisonOperatorExists:   {},
	ComparisonOperatorContains: {},
}

// IsStandard checks if a comparison operator is one of the built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns the set of built-in comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}

// Document renders f back into its document form.
func (f *QueryFilter) Document() *document.Document {
	out := document.New()
	if f == nil {
		return out
	}
	if f.Condition != nil {
		c := f.Condition
		if c.Literal {
			return out.Set(c.Field, c.Value)
		}
		return out.Set(c.Field, document.Object(document.New().Set(string(c.Operator), c.Value)))
	}
	if f.Group != nil {
		if f.Group.Operator == LogicalOperatorAnd && canInline(f.Group.Conditions) {
			for _, sub := range f.Group.Conditions {
				for k, v := range sub.Document().Fields() {
					out.Set(k, v)
				}
			}
			return out
		}
		elems := make([]document.Value, len(f.Group.Conditions))
		for i := range f.Group.Conditions {
			elems[i] = document.Object(f.Group.Conditions[i].Document())
		}
		out.Set(string(f.Group.Operator), document.Array(elems...))
	}
	return out
}

// canInline reports whether every condition can be written as a distinct
// top-level key without changing meaning.
func canInline(conditions []QueryFilter) bool {
	seen := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		if c.Condition == nil {
			return false
		}
		if _, dup := seen[c.Condition.Field]; dup {
			return false
		}
		seen[c.Condition.Field] = struct{}{}
	}
	return true
}

// String renders f as JSON for logs and error messages.
func (f *QueryFilter) String() string {
	return f.Document().String()
}
