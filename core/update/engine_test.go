package update

import (
	"testing"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExpr(t *testing.T, src string) *Expression {
	t.Helper()
	expr, err := ParseJSON([]byte(src))
	require.NoError(t, err)
	return expr
}

func assertDocJSON(t *testing.T, expected string, doc *document.Document) {
	t.Helper()
	got := document.ToAny(document.Object(doc))
	want := document.ToAny(document.Object(document.MustParse(expected)))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Apply(t *testing.T) {
	e := NewEngine(nil)
	base := `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`

	tests := []struct {
		name     string
		update   string
		expected string
	}{
		{"set existing and new", `{"$set":{"name":"b","new":{"k":1}}}`,
			`{"_id":"1","name":"b","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"],"new":{"k":1}}`},
		{"inc", `{"$inc":{"n":3}}`, `{"_id":"1","name":"a","n":5,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"inc absent takes operand", `{"$inc":{"m":4}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"],"m":4}`},
		{"mul", `{"$mul":{"n":3}}`, `{"_id":"1","name":"a","n":6,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"mul absent takes operand", `{"$mul":{"m":3}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"],"m":3}`},
		{"min lowers", `{"$min":{"n":1}}`, `{"_id":"1","name":"a","n":1,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"min keeps", `{"$min":{"n":9}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"max raises", `{"$max":{"n":9}}`, `{"_id":"1","name":"a","n":9,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"max on null", `{"$max":{"z":7}}`, `{"_id":"1","name":"a","n":2,"z":7,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"min absent", `{"$min":{"m":-1}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"],"m":-1}`},
		{"unset", `{"$unset":{"name":"","missing":""}}`, `{"_id":"1","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
		{"rename overwrites", `{"$rename":{"name":"s"}}`, `{"_id":"1","n":2,"z":null,"s":"a","arr":[1,2,3,2],"set":["a"]}`},
		{"rename absent is no-op", `{"$rename":{"missing":"x"}}`, base},
		{"addToSet new", `{"$addToSet":{"set":"b"}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2],"set":["a","b"]}`},
		{"addToSet existing", `{"$addToSet":{"set":"a"}}`, base},
		{"pop last", `{"$pop":{"arr":1}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3],"set":["a"]}`},
		{"pop first", `{"$pop":{"arr":-1}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[2,3,2],"set":["a"]}`},
		{"push", `{"$push":{"arr":{"k":1}}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,2,3,2,{"k":1}],"set":["a"]}`},
		{"pullAll stable", `{"$pullAll":{"arr":[2,9]}}`, `{"_id":"1","name":"a","n":2,"z":null,"s":"x","arr":[1,3],"set":["a"]}`},
		{"setOnInsert ignored", `{"$setOnInsert":{"created":true}}`, base},
		{"combined in reference order", `{"$rename":{"n":"count"},"$inc":{"n":1}}`,
			`{"_id":"1","name":"a","count":3,"z":null,"s":"x","arr":[1,2,3,2],"set":["a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.MustParse(base)
			out, err := e.Apply(doc, mustExpr(t, tt.update))
			require.NoError(t, err)
			assertDocJSON(t, tt.expected, out)
			assertDocJSON(t, base, doc)
		})
	}
}

func TestEngine_ApplyErrors(t *testing.T) {
	e := NewEngine(nil)
	base := `{"_id":"1","n":2,"z":null,"s":"x","arr":[1]}`

	tests := []struct {
		name   string
		update string
		err    error
	}{
		{"inc non-numeric operand", `{"$inc":{"n":"1"}}`, ErrTypeMismatch},
		{"inc on null", `{"$inc":{"z":1}}`, ErrTypeMismatch},
		{"mul on string", `{"$mul":{"s":2}}`, ErrTypeMismatch},
		{"min on string", `{"$min":{"s":2}}`, ErrTypeMismatch},
		{"max non-numeric operand", `{"$max":{"n":null}}`, ErrTypeMismatch},
		{"rename to non-string", `{"$rename":{"s":1}}`, ErrTypeMismatch},
		{"rename id", `{"$rename":{"_id":"id"}}`, ErrInvalidExpression},
		{"addToSet on scalar", `{"$addToSet":{"n":1}}`, ErrTypeMismatch},
		{"addToSet on absent", `{"$addToSet":{"missing":1}}`, ErrTypeMismatch},
		{"push on string", `{"$push":{"s":1}}`, ErrTypeMismatch},
		{"pop bad operand", `{"$pop":{"arr":2}}`, ErrInvalidExpression},
		{"pop on scalar", `{"$pop":{"n":1}}`, ErrTypeMismatch},
		{"pullAll non-array operand", `{"$pullAll":{"arr":1}}`, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.MustParse(base)
			out, err := e.Apply(doc, mustExpr(t, tt.update))
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, out)
			assertDocJSON(t, base, doc)
		})
	}
}

func TestEngine_ApplyIsPure(t *testing.T) {
	e := NewEngine(nil)
	doc := document.MustParse(`{"_id":"1","nested":{"k":[1,2]}}`)
	out, err := e.Apply(doc, mustExpr(t, `{"$set":{"x":1}}`))
	require.NoError(t, err)

	nested, _ := out.Get("nested")
	nd, _ := nested.Document()
	nd.Set("k", document.Null())

	assertDocJSON(t, `{"_id":"1","nested":{"k":[1,2]}}`, doc)
}

func TestEngine_PopDirection(t *testing.T) {
	e := NewEngine(nil)
	doc := document.MustParse(`{"a":[1,2,3]}`)

	first, err := e.Apply(doc, mustExpr(t, `{"$pop":{"a":-1}}`))
	require.NoError(t, err)
	assertDocJSON(t, `{"a":[2,3]}`, first)

	last, err := e.Apply(doc, mustExpr(t, `{"$pop":{"a":1}}`))
	require.NoError(t, err)
	assertDocJSON(t, `{"a":[1,2]}`, last)

	empty, err := e.Apply(document.MustParse(`{"a":[]}`), mustExpr(t, `{"$pop":{"a":1}}`))
	require.NoError(t, err)
	assertDocJSON(t, `{"a":[]}`, empty)
}

func TestEngine_ApplyInsertOnly(t *testing.T) {
	e := NewEngine(nil)
	expr := mustExpr(t, `{"$set":{"a":1},"$setOnInsert":{"created":"now"},"upsert":true}`)
	assert.True(t, expr.Upsert)

	doc, err := e.Apply(document.New().SetID("x"), expr)
	require.NoError(t, err)
	doc, err = e.ApplyInsertOnly(doc, expr.SetOnInsert())
	require.NoError(t, err)
	assertDocJSON(t, `{"_id":"x","a":1,"created":"now"}`, doc)

	same, err := e.ApplyInsertOnly(doc, nil)
	require.NoError(t, err)
	assert.True(t, same.Equal(doc))
}

func TestParse(t *testing.T) {
	t.Run("unknown operator", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"$currentDate":{"a":true}}`))
		assert.ErrorIs(t, err, ErrUnknownOperator)
	})
	t.Run("plain key", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"name":"x"}`))
		assert.ErrorIs(t, err, ErrUnknownOperator)
	})
	t.Run("operand not an object", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"$set":1}`))
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})
	t.Run("upsert not a bool", func(t *testing.T) {
		_, err := ParseJSON([]byte(`{"upsert":"yes"}`))
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})
	t.Run("round trip", func(t *testing.T) {
		src := `{"$set":{"a":1},"$inc":{"n":2},"upsert":true}`
		assert.Equal(t, src, mustExpr(t, src).String())
	})
}

func TestBuilder(t *testing.T) {
	expr, err := NewBuilder().
		Set("status", "done").
		Inc("revision", 1).
		Unset("draft").
		Rename("old", "new").
		AddToSet("tags", "x").
		PopFirst("queue").
		Push("log", map[string]any{"event": "closed"}).
		PullAll("tags", "y", "z").
		SetOnInsert("created", true).
		Upsert(true).
		Build()
	require.NoError(t, err)
	assert.True(t, expr.Upsert)
	assert.Equal(t,
		`{"$set":{"status":"done"},"$inc":{"revision":1},"$unset":{"draft":""},"$rename":{"old":"new"},"$addToSet":{"tags":"x"},"$pop":{"queue":-1},"$push":{"log":{"event":"closed"}},"$pullAll":{"tags":["y","z"]},"$setOnInsert":{"created":true},"upsert":true}`,
		expr.String())

	_, err = NewBuilder().Set("bad", make(chan int)).Build()
	assert.ErrorIs(t, err, ErrInvalidExpression)
}
