package query

import (
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonOperator_IsStandard(t *testing.T) {
	for op := range GetStandardComparisonOperators() {
		assert.True(t, op.IsStandard(), op)
	}
	assert.False(t, ComparisonOperator("$near").IsStandard())
}

func TestParse(t *testing.T) {
	t.Run("nil and empty match all", func(t *testing.T) {
		f, err := Parse(nil)
		require.NoError(t, err)
		assert.True(t, f.IsEmpty())

		f, err = Parse(document.New())
		require.NoError(t, err)
		assert.True(t, f.IsEmpty())
	})

	t.Run("literal", func(t *testing.T) {
		f := mustFilter(t, `{"name":"x"}`)
		require.NotNil(t, f.Condition)
		assert.True(t, f.Condition.Literal)
		assert.Equal(t, ComparisonOperatorEq, f.Condition.Operator)
	})

	t.Run("object literal without operators", func(t *testing.T) {
		f := mustFilter(t, `{"meta":{"a":1}}`)
		require.NotNil(t, f.Condition)
		assert.True(t, f.Condition.Literal)
	})

	t.Run("operator document expands per operator", func(t *testing.T) {
		f := mustFilter(t, `{"age":{"$gt":1,"$lt":5}}`)
		require.NotNil(t, f.Group)
		assert.Len(t, f.Group.Conditions, 2)
	})

	t.Run("logical groups", func(t *testing.T) {
		f := mustFilter(t, `{"$or":[{"a":1},{"b":2}]}`)
		require.NotNil(t, f.Group)
		assert.Equal(t, LogicalOperatorOr, f.Group.Operator)
		assert.Len(t, f.Group.Conditions, 2)
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		err    error
	}{
		{"unknown top-level operator", `{"$nor":[{"a":1}]}`, ErrUnknownOperator},
		{"and not an array", `{"$and":{"a":1}}`, ErrInvalidFilter},
		{"or empty", `{"$or":[]}`, ErrInvalidFilter},
		{"or element not a filter", `{"$or":[1]}`, ErrInvalidFilter},
		{"mixed operator document", `{"a":{"$gt":1,"b":2}}`, ErrInvalidFilter},
		{"in not an array", `{"a":{"$in":1}}`, ErrTypeMismatch},
		{"exists not a bool", `{"a":{"$exists":1}}`, ErrTypeMismatch},
		{"gt container operand", `{"a":{"$gt":[1]}}`, ErrTypeMismatch},
		{"contains not an object", `{"a":{"$contains":"x"}}`, ErrTypeMismatch},
		{"contains without terms", `{"a":{"$contains":{}}}`, ErrInvalidFilter},
		{"contains non string term", `{"a":{"$contains":{"$terms":[1]}}}`, ErrTypeMismatch},
		{"contains bad flag", `{"a":{"$contains":{"$terms":["x"],"$caseSensitive":"yes"}}}`, ErrTypeMismatch},
		{"not json", `{"a":`, ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.filter))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestQueryFilter_String(t *testing.T) {
	assert.Equal(t, `{"a":1,"b":{"$gt":2}}`, mustFilter(t, `{"a":1,"b":{"$gt":2}}`).String())
	assert.Equal(t, `{"$or":[{"a":1},{"b":2}]}`, mustFilter(t, `{"$or":[{"a":1},{"b":2}]}`).String())
	assert.Equal(t, `{}`, MatchAll().String())
}
