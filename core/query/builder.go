package query

import (
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
)

// FilterBuilder provides a fluent API for building QueryFilter values without
// writing filter documents by hand.
//
//	filter, err := query.NewFilterBuilder().
//		Where("age").Gte(18).
//		WhereGroup(query.LogicalOperatorOr).
//			Where("role").Eq("admin").
//			Where("role").Eq("owner").
//		End().
//		Build()
type FilterBuilder struct {
	conditions []QueryFilter
	err        error
}

// NewFilterBuilder creates a new, empty filter builder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Build returns the constructed filter. Multiple top-level conditions are
// combined with AND; an empty builder yields a filter matching everything.
func (fb *FilterBuilder) Build() (*QueryFilter, error) {
	if fb.err != nil {
		return nil, fb.err
	}
	switch len(fb.conditions) {
	case 0:
		return MatchAll(), nil
	case 1:
		f := fb.conditions[0]
		return &f, nil
	default:
		conditions := make([]QueryFilter, len(fb.conditions))
		copy(conditions, fb.conditions)
		return &QueryFilter{Group: &FilterGroup{Operator: LogicalOperatorAnd, Conditions: conditions}}, nil
	}
}

// MustBuild is like Build but panics on error.
func (fb *FilterBuilder) MustBuild() *QueryFilter {
	f, err := fb.Build()
	if err != nil {
		panic(err)
	}
	return f
}

// Clone creates a copy of the builder so that further conditions do not
// affect the original.
func (fb *FilterBuilder) Clone() *FilterBuilder {
	return &FilterBuilder{
		conditions: append([]QueryFilter(nil), fb.conditions...),
		err:        fb.err,
	}
}

// Reset clears all conditions, returning the builder to its initial state.
func (fb *FilterBuilder) Reset() *FilterBuilder {
	fb.conditions = nil
	fb.err = nil
	return fb
}

// Where begins a condition on field.
func (fb *FilterBuilder) Where(field string) *ConditionBuilder[*FilterBuilder] {
	return &ConditionBuilder[*FilterBuilder]{
		field: field,
		add: func(f QueryFilter) *FilterBuilder {
			fb.conditions = append(fb.conditions, f)
			return fb
		},
		fail: func(err error) *FilterBuilder {
			if fb.err == nil {
				fb.err = err
			}
			return fb
		},
	}
}

// Filter adds an already built filter.
func (fb *FilterBuilder) Filter(f *QueryFilter) *FilterBuilder {
	if f != nil {
		fb.conditions = append(fb.conditions, *f)
	}
	return fb
}

// WhereGroup begins a group of conditions combined with operator.
func (fb *FilterBuilder) WhereGroup(operator LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{parent: fb, operator: operator}
}

// FilterGroupBuilder builds a logical group of conditions.
type FilterGroupBuilder struct {
	parent     *FilterBuilder
	operator   LogicalOperator
	conditions []QueryFilter
}

// Where adds a condition on field to the group.
func (fgb *FilterGroupBuilder) Where(field string) *ConditionBuilder[*FilterGroupBuilder] {
	return &ConditionBuilder[*FilterGroupBuilder]{
		field: field,
		add: func(f QueryFilter) *FilterGroupBuilder {
			fgb.conditions = append(fgb.conditions, f)
			return fgb
		},
		fail: func(err error) *FilterGroupBuilder {
			if fgb.parent.err == nil {
				fgb.parent.err = err
			}
			return fgb
		},
	}
}

// Filter adds an already built filter, such as a nested group, to the group.
func (fgb *FilterGroupBuilder) Filter(f *QueryFilter) *FilterGroupBuilder {
	if f != nil {
		fgb.conditions = append(fgb.conditions, *f)
	}
	return fgb
}

// End closes the group and returns to the parent builder.
func (fgb *FilterGroupBuilder) End() *FilterBuilder {
	if len(fgb.conditions) == 0 {
		if fgb.parent.err == nil {
			fgb.parent.err = fmt.Errorf("%w: %s group has no conditions", ErrInvalidFilter, fgb.operator)
		}
		return fgb.parent
	}
	fgb.parent.conditions = append(fgb.parent.conditions, QueryFilter{Group: &FilterGroup{
		Operator:   fgb.operator,
		Conditions: fgb.conditions,
	}})
	return fgb.parent
}

// ConditionBuilder builds a single condition and hands it back to its parent
// builder P.
type ConditionBuilder[P any] struct {
	field string
	add   func(QueryFilter) P
	fail  func(error) P
}

// Eq adds an equality condition.
func (cb *ConditionBuilder[P]) Eq(value any) P {
	return cb.addCondition(ComparisonOperatorEq, value)
}

// Ne adds a not-equal condition.
func (cb *ConditionBuilder[P]) Ne(value any) P {
	return cb.addCondition(ComparisonOperatorNe, value)
}

// Gt adds a greater-than condition.
func (cb *ConditionBuilder[P]) Gt(value any) P {
	return cb.addCondition(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition.
func (cb *ConditionBuilder[P]) Gte(value any) P {
	return cb.addCondition(ComparisonOperatorGte, value)
}

// Lt adds a less-than condition.
func (cb *ConditionBuilder[P]) Lt(value any) P {
	return cb.addCondition(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition.
func (cb *ConditionBuilder[P]) Lte(value any) P {
	return cb.addCondition(ComparisonOperatorLte, value)
}

// In adds a membership condition.
func (cb *ConditionBuilder[P]) In(values ...any) P {
	return cb.addCondition(ComparisonOperatorIn, values)
}

// Nin adds a non-membership condition.
func (cb *ConditionBuilder[P]) Nin(values ...any) P {
	return cb.addCondition(ComparisonOperatorNin, values)
}

// Exists adds a presence condition.
func (cb *ConditionBuilder[P]) Exists(exists bool) P {
	return cb.addCondition(ComparisonOperatorExists, exists)
}

// Contains adds a case-insensitive substring condition matching any of terms.
func (cb *ConditionBuilder[P]) Contains(terms ...string) P {
	return cb.contains(false, terms)
}

// ContainsCaseSensitive adds a case-sensitive substring condition matching
// any of terms.
func (cb *ConditionBuilder[P]) ContainsCaseSensitive(terms ...string) P {
	return cb.contains(true, terms)
}

func (cb *ConditionBuilder[P]) contains(caseSensitive bool, terms []string) P {
	elems := make([]document.Value, len(terms))
	for i, t := range terms {
		elems[i] = document.String(t)
	}
	operand := document.New().Set(ContainsTerms, document.Array(elems...))
	if caseSensitive {
		operand.Set(ContainsCaseSensitive, document.Bool(true))
	}
	return cb.addCondition(ComparisonOperatorContains, operand)
}

// Custom adds a condition using a registered custom operator.
func (cb *ConditionBuilder[P]) Custom(operator ComparisonOperator, value any) P {
	return cb.addCondition(operator, value)
}

// addCondition is an internal helper to add a filter condition to the parent.
func (cb *ConditionBuilder[P]) addCondition(operator ComparisonOperator, value any) P {
	operand, err := document.FromAny(value)
	if err != nil {
		return cb.fail(fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, cb.field, err))
	}
	if operator.IsStandard() {
		if err := checkOperand(operator, operand); err != nil {
			return cb.fail(fmt.Errorf("field %q: %w", cb.field, err))
		}
	}
	return cb.add(QueryFilter{Condition: &FilterCondition{
		Field:    cb.field,
		Operator: operator,
		Value:    operand,
	}})
}
