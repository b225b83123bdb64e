package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustFilter(t *testing.T, src string) *QueryFilter {
	t.Helper()
	f, err := ParseJSON([]byte(src))
	require.NoError(t, err)
	return f
}

func sampleCollection() *document.Collection {
	c := document.NewCollection()
	for _, src := range []string{
		`{"_id":"1","name":"Alice","age":30,"city":"Nairobi","tags":["a","b"]}`,
		`{"_id":"2","name":"bob","age":25,"city":"Mombasa"}`,
		`{"_id":"3","name":"Carol","age":35,"city":null}`,
		`{"_id":"4","name":"Dave","age":"40"}`,
	} {
		d := document.MustParse(src)
		id, _ := d.ID()
		c.Put(id, d)
	}
	return c
}

func TestNewDataProcessor(t *testing.T) {
	p := NewDataProcessor(nil)
	assert.NotNil(t, p)
	assert.NotNil(t, p.goFilterFunctions)
	assert.NotNil(t, p.logger)

	p = NewDataProcessor(zap.NewNop())
	assert.NotNil(t, p)
}

func TestDataProcessor_RegisterFilterFunction(t *testing.T) {
	p := NewDataProcessor(nil)
	fn := func(doc *document.Document, field string, operand document.Value) (bool, error) { return true, nil }
	p.RegisterFilterFunction("$custom", fn)
	assert.Contains(t, p.goFilterFunctions, ComparisonOperator("$custom"))

	p.RegisterFilterFunction(ComparisonOperatorEq, fn)
	assert.NotContains(t, p.goFilterFunctions, ComparisonOperatorEq, "built-in operators cannot be overridden")
}

func TestDataProcessor_Match(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	doc := document.MustParse(`{"_id":"x","name":"Alice","age":30,"city":null,"score":4.5,"tags":["go","db"],"bio":"Loves Gophers"}`)

	tests := []struct {
		name     string
		filter   string
		expected bool
	}{
		{"empty filter", `{}`, true},
		{"literal match", `{"name":"Alice"}`, true},
		{"literal is strict", `{"age":"30"}`, false},
		{"literal array", `{"tags":["go","db"]}`, true},
		{"literal null", `{"city":null}`, true},
		{"missing field literal", `{"missing":1}`, false},
		{"eq", `{"age":{"$eq":30}}`, true},
		{"ne", `{"age":{"$ne":30}}`, false},
		{"ne on missing field", `{"missing":{"$ne":1}}`, true},
		{"gt", `{"age":{"$gt":29}}`, true},
		{"gte boundary", `{"age":{"$gte":30}}`, true},
		{"lt", `{"score":{"$lt":4.5}}`, false},
		{"lte boundary", `{"score":{"$lte":4.5}}`, true},
		{"range", `{"age":{"$gt":20,"$lt":40}}`, true},
		{"string ordering", `{"name":{"$gt":"Aaron"}}`, true},
		{"mixed kinds never order", `{"name":{"$gt":1}}`, false},
		{"gt on missing", `{"missing":{"$gt":1}}`, false},
		{"gt on null", `{"city":{"$gt":1}}`, false},
		{"in", `{"age":{"$in":[1,30]}}`, true},
		{"in strict", `{"age":{"$in":["30"]}}`, false},
		{"nin", `{"age":{"$nin":[1,2]}}`, true},
		{"nin on missing", `{"missing":{"$nin":[1]}}`, true},
		{"exists true", `{"city":{"$exists":true}}`, true},
		{"exists false", `{"missing":{"$exists":false}}`, true},
		{"contains folded", `{"bio":{"$contains":{"$terms":["gopher"]}}}`, true},
		{"contains any term", `{"bio":{"$contains":{"$terms":["rust","LOVES"]}}}`, true},
		{"contains case sensitive", `{"bio":{"$contains":{"$terms":["gopher"],"$caseSensitive":true}}}`, false},
		{"contains on null", `{"city":{"$contains":{"$terms":["x"]}}}`, false},
		{"contains on missing", `{"missing":{"$contains":{"$terms":["x"]}}}`, false},
		{"contains no terms", `{"bio":{"$contains":{"$terms":[]}}}`, false},
		{"and", `{"$and":[{"name":"Alice"},{"age":30}]}`, true},
		{"and one false", `{"$and":[{"name":"Alice"},{"age":31}]}`, false},
		{"or", `{"$or":[{"name":"Bob"},{"age":30}]}`, true},
		{"or none", `{"$or":[{"name":"Bob"},{"age":31}]}`, false},
		{"nested", `{"$or":[{"$and":[{"age":{"$gt":18}},{"city":{"$exists":false}}]},{"tags":{"$in":[["go","db"]]}}]}`, true},
		{"conjunction of keys", `{"name":"Alice","age":31}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.Match(ctx, mustFilter(t, tt.filter), doc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestDataProcessor_MatchErrors(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	doc := document.MustParse(`{"name":"Alice","age":30,"tags":["a"]}`)

	t.Run("unknown operator on field", func(t *testing.T) {
		f := &QueryFilter{Condition: &FilterCondition{Field: "age", Operator: "$near", Value: document.Number(1)}}
		_, err := p.Match(ctx, f, doc)
		assert.True(t, errors.Is(err, ErrUnknownOperator))
	})

	t.Run("compare against container field", func(t *testing.T) {
		_, err := p.Match(ctx, mustFilter(t, `{"tags":{"$gt":1}}`), doc)
		assert.True(t, errors.Is(err, ErrTypeMismatch))
	})

	t.Run("contains on number", func(t *testing.T) {
		_, err := p.Match(ctx, mustFilter(t, `{"age":{"$contains":{"$terms":["3"]}}}`), doc)
		assert.True(t, errors.Is(err, ErrTypeMismatch))
	})

	t.Run("unknown operator is fatal even when an earlier branch fails", func(t *testing.T) {
		f := &QueryFilter{Group: &FilterGroup{Operator: LogicalOperatorAnd, Conditions: []QueryFilter{
			{Condition: &FilterCondition{Field: "age", Operator: ComparisonOperatorEq, Value: document.Number(1)}},
			{Condition: &FilterCondition{Field: "age", Operator: "$near", Value: document.Number(1)}},
		}}}
		_, err := p.Match(ctx, f, doc)
		assert.True(t, errors.Is(err, ErrUnknownOperator))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Match(cctx, mustFilter(t, `{"age":30}`), doc)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDataProcessor_LiteralEquivalentToEq(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	for _, doc := range sampleCollection().All() {
		for _, field := range []string{"name", "age", "city", "missing"} {
			for _, lit := range []string{`"Alice"`, `30`, `null`, `"40"`} {
				a, err := p.Match(ctx, mustFilter(t, `{"`+field+`":`+lit+`}`), doc)
				require.NoError(t, err)
				b, err := p.Match(ctx, mustFilter(t, `{"`+field+`":{"$eq":`+lit+`}}`), doc)
				require.NoError(t, err)
				assert.Equal(t, a, b, "field %s literal %s", field, lit)
			}
		}
	}
}

func TestDataProcessor_LogicalDecomposition(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	f1 := `{"age":{"$gte":30}}`
	f2 := `{"city":{"$exists":true}}`

	for id, doc := range sampleCollection().All() {
		m1, err := p.Match(ctx, mustFilter(t, f1), doc)
		require.NoError(t, err)
		m2, err := p.Match(ctx, mustFilter(t, f2), doc)
		require.NoError(t, err)

		and, err := p.Match(ctx, mustFilter(t, `{"$and":[`+f1+`,`+f2+`]}`), doc)
		require.NoError(t, err)
		or, err := p.Match(ctx, mustFilter(t, `{"$or":[`+f1+`,`+f2+`]}`), doc)
		require.NoError(t, err)

		assert.Equal(t, m1 && m2, and, "document %s", id)
		assert.Equal(t, m1 || m2, or, "document %s", id)
	}
}

func TestDataProcessor_Select(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	coll := sampleCollection()

	t.Run("all in scan order", func(t *testing.T) {
		docs, err := p.Select(ctx, coll, mustFilter(t, `{"age":{"$gte":30}}`), LimitAll)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		id0, _ := docs[0].ID()
		id1, _ := docs[1].ID()
		assert.Equal(t, []string{"1", "3"}, []string{id0, id1})
	})

	t.Run("limit one", func(t *testing.T) {
		docs, err := p.Select(ctx, coll, MatchAll(), LimitOne)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		id, _ := docs[0].ID()
		assert.Equal(t, "1", id)
	})

	t.Run("results are copies", func(t *testing.T) {
		docs, err := p.Select(ctx, coll, mustFilter(t, `{"_id":"1"}`), LimitOne)
		require.NoError(t, err)
		docs[0].Set("name", document.String("changed"))
		orig, _ := coll.Get("1")
		name, _ := orig.Get("name")
		assert.Equal(t, document.String("Alice"), name)
	})

	t.Run("idempotent", func(t *testing.T) {
		f := mustFilter(t, `{"name":{"$contains":{"$terms":["a"]}}}`)
		first, err := p.Select(ctx, coll, f, LimitAll)
		require.NoError(t, err)
		second, err := p.Select(ctx, coll, f, LimitAll)
		require.NoError(t, err)
		require.Len(t, second, len(first))
		for i := range first {
			assert.True(t, first[i].Equal(second[i]))
		}
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		docs, err := p.Select(ctx, coll, mustFilter(t, `{"age":1000}`), LimitAll)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("invalid filter on empty collection", func(t *testing.T) {
		f := &QueryFilter{Condition: &FilterCondition{Field: "a", Operator: "$near"}}
		_, err := p.Select(ctx, document.NewCollection(), f, LimitAll)
		assert.ErrorIs(t, err, ErrUnknownOperator)
	})

	t.Run("error names the document", func(t *testing.T) {
		_, err := p.Select(ctx, coll, mustFilter(t, `{"tags":{"$lt":3}}`), LimitAll)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), `"1"`))
	})
}

func TestDataProcessor_CustomOperator(t *testing.T) {
	p := NewDataProcessor(nil)
	p.RegisterFilterFunctions(map[ComparisonOperator]PredicateFunction{
		"$startsWith": func(doc *document.Document, field string, operand document.Value) (bool, error) {
			v, ok := doc.Get(field)
			if !ok {
				return false, nil
			}
			s, _ := v.Str()
			prefix, _ := operand.Str()
			return strings.HasPrefix(s, prefix), nil
		},
	})

	f := mustFilter(t, `{"name":{"$startsWith":"Ca"}}`)
	docs, err := p.Select(context.Background(), sampleCollection(), f, LimitAll)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	id, _ := docs[0].ID()
	assert.Equal(t, "3", id)

	ids, err := p.SelectIDs(context.Background(), sampleCollection(), f, LimitAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids)
}
