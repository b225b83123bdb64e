package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-mockdb/core/document"
	"golang.org/x/text/cases"
)

// checkOperand validates the operand of a built-in operator.
func checkOperand(op ComparisonOperator, operand document.Value) error {
	switch op {
	case ComparisonOperatorEq, ComparisonOperatorNe:
		return nil
	case ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte:
		if operand.IsContainer() {
			return fmt.Errorf("%w: %s cannot compare against %s", ErrTypeMismatch, op, operand.Kind())
		}
		return nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		if _, ok := operand.Array(); !ok {
			return fmt.Errorf("%w: %s expects an array, got %s", ErrTypeMismatch, op, operand.Kind())
		}
		return nil
	case ComparisonOperatorExists:
		if _, ok := operand.Bool(); !ok {
			return fmt.Errorf("%w: %s expects a bool, got %s", ErrTypeMismatch, op, operand.Kind())
		}
		return nil
	case ComparisonOperatorContains:
		_, err := parseContains(operand)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
}

// evaluateStandardCondition performs the in-memory evaluation of a built-in operator.
func evaluateStandardCondition(doc *document.Document, condition *FilterCondition) (bool, error) {
	if err := checkOperand(condition.Operator, condition.Value); err != nil {
		return false, err
	}
	fieldValue, present := doc.Get(condition.Field)

	switch condition.Operator {
	case ComparisonOperatorEq:
		return present && fieldValue.Equal(condition.Value), nil
	case ComparisonOperatorNe:
		return !present || !fieldValue.Equal(condition.Value), nil
	case ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte:
		if !present {
			return false, nil
		}
		if fieldValue.IsContainer() {
			return false, fmt.Errorf("%w: %s on field %q holding %s", ErrTypeMismatch, condition.Operator, condition.Field, fieldValue.Kind())
		}
		c, ok := document.Compare(fieldValue, condition.Value)
		if !ok {
			return false, nil
		}
		switch condition.Operator {
		case ComparisonOperatorGt:
			return c > 0, nil
		case ComparisonOperatorGte:
			return c >= 0, nil
		case ComparisonOperatorLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case ComparisonOperatorIn, ComparisonOperatorNin:
		candidates, _ := condition.Value.Array()
		found := false
		if present {
			for _, candidate := range candidates {
				if fieldValue.Equal(candidate) {
					found = true
					break
				}
			}
		}
		if condition.Operator == ComparisonOperatorIn {
			return found, nil
		}
		return !found, nil
	case ComparisonOperatorExists:
		want, _ := condition.Value.Bool()
		return present == want, nil
	case ComparisonOperatorContains:
		operand, _ := parseContains(condition.Value)
		if !present || fieldValue.IsNull() {
			return false, nil
		}
		s, ok := fieldValue.Str()
		if !ok {
			return false, fmt.Errorf("%w: %s on field %q holding %s", ErrTypeMismatch, condition.Operator, condition.Field, fieldValue.Kind())
		}
		return operand.match(s), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, condition.Operator)
	}
}

// containsOperand is the decoded form of {$terms: [...], $caseSensitive: bool}.
type containsOperand struct {
	terms         []string
	caseSensitive bool
}

func parseContains(v document.Value) (containsOperand, error) {
	var out containsOperand
	d, ok := v.Document()
	if !ok {
		return out, fmt.Errorf("%w: $contains expects {%s: [...]}, got %s", ErrTypeMismatch, ContainsTerms, v.Kind())
	}
	for key, val := range d.Fields() {
		switch key {
		case ContainsTerms:
			elems, ok := val.Array()
			if !ok {
				return out, fmt.Errorf("%w: %s expects an array of strings, got %s", ErrTypeMismatch, ContainsTerms, val.Kind())
			}
			for i, e := range elems {
				s, ok := e.Str()
				if !ok {
					return out, fmt.Errorf("%w: %s[%d] is %s, not a string", ErrTypeMismatch, ContainsTerms, i, e.Kind())
				}
				out.terms = append(out.terms, s)
			}
		case ContainsCaseSensitive:
			b, ok := val.Bool()
			if !ok {
				return out, fmt.Errorf("%w: %s expects a bool, got %s", ErrTypeMismatch, ContainsCaseSensitive, val.Kind())
			}
			out.caseSensitive = b
		default:
			return out, fmt.Errorf("%w: unexpected key %q in $contains", ErrInvalidFilter, key)
		}
	}
	if !d.Has(ContainsTerms) {
		return out, fmt.Errorf("%w: $contains requires %s", ErrInvalidFilter, ContainsTerms)
	}
	return out, nil
}

// match reports whether any term is a substring of s.
func (c containsOperand) match(s string) bool {
	if c.caseSensitive {
		for _, term := range c.terms {
			if strings.Contains(s, term) {
				return true
			}
		}
		return false
	}
	folder := cases.Fold()
	s = folder.String(s)
	for _, term := range c.terms {
		if strings.Contains(s, folder.String(term)) {
			return true
		}
	}
	return false
}
