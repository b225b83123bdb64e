package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/memstore"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	DBName         string           `json:"dbName"`
	CollectionName string           `json:"collectionName"`
	Status         string           `json:"status"`
	Data           []map[string]any `json:"data"`
	Errors         []string         `json:"errors"`
	Count          int              `json:"count"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	var n atomic.Int64
	ids := persistence.IDGeneratorFunc(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	})
	p, err := persistence.NewPersistence(memstore.NewBackend(), persistence.WithIDGenerator(ids))
	require.NoError(t, err)
	require.NoError(t, p.CreateDatabase(ctx, "test"))
	db, err := p.Database(ctx, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return NewServer(db, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func ids(env envelope) []string {
	out := make([]string, 0, len(env.Data))
	for _, d := range env.Data {
		out = append(out, fmt.Sprint(d["_id"]))
	}
	return out
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	code, env := do(t, s, http.MethodPost, "/api/users/insert", `[
		{"name": "ada", "age": 36, "tags": ["math"]},
		{"name": "alan", "age": 41},
		{"name": "grace", "age": 85, "tags": ["navy", "cobol"]},
	]`)
	require.Equal(t, http.StatusCreated, code, env.Errors)
	require.Equal(t, []string{"id-1", "id-2", "id-3"}, ids(env))
}

func TestServer_Insert(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodPost, "/api/users/insert", `{"name": "ada"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "SUCCESS", env.Status)
	assert.Equal(t, "test", env.DBName)
	assert.Equal(t, "users", env.CollectionName)
	if diff := cmp.Diff([]map[string]any{{"_id": "id-1", "name": "ada"}}, env.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	code, env = do(t, s, http.MethodPost, "/api/users/insert", `{"_id": "id-1", "name": "again"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ERROR", env.Status)
	assert.Empty(t, env.Data)
	assert.NotEmpty(t, env.Errors)

	code, _ = do(t, s, http.MethodPost, "/api/users/insert", `[{"name": "x"}, 3]`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/users/insert", ``)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Find(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	tests := []struct {
		name     string
		path     string
		body     string
		code     int
		expected []string
	}{
		{"empty body matches all", "/api/users/find", ``, http.StatusOK, []string{"id-1", "id-2", "id-3"}},
		{"comparison", "/api/users/find", `{"filter": {"age": {"$gt": 40}}}`, http.StatusOK, []string{"id-2", "id-3"}},
		{"jsonc comments", "/api/users/find", `{
			// senior members
			"filter": {"age": {"$gte": 85}},
		}`, http.StatusOK, []string{"id-3"}},
		{"no match is success", "/api/users/find", `{"filter": {"name": "nobody"}}`, http.StatusOK, []string{}},
		{"findOne", "/api/users/findOne", `{"filter": {"name": {"$in": ["grace", "linus"]}}}`, http.StatusOK, []string{"id-3"}},
		{"findOne no match", "/api/users/findOne", `{"filter": {"name": "nobody"}}`, http.StatusNotFound, []string{}},
		{"unknown operator", "/api/users/find", `{"filter": {"age": {"$near": 1}}}`, http.StatusBadRequest, []string{}},
		{"filter not an object", "/api/users/find", `{"filter": 1}`, http.StatusBadRequest, []string{}},
		{"malformed body", "/api/users/find", `{"filter":`, http.StatusBadRequest, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, code, env.Errors)
			assert.Equal(t, tt.expected, ids(env))
		})
	}
}

func TestServer_ByID(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	code, env := do(t, s, http.MethodGet, "/api/users/id-2", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"id-2"}, ids(env))

	code, env = do(t, s, http.MethodDelete, "/api/users/id-2", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"id-2"}, ids(env))

	code, env = do(t, s, http.MethodGet, "/api/users/id-2", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ERROR", env.Status)

	code, _ = do(t, s, http.MethodDelete, "/api/users/id-2", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Update(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	code, env := do(t, s, http.MethodPost, "/api/users/update",
		`{"filter": {"age": {"$lt": 50}}, "update": {"$inc": {"age": 1}, "$set": {"active": true}}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-1", "id-2"}, ids(env))
	assert.Equal(t, float64(37), env.Data[0]["age"])
	assert.Equal(t, true, env.Data[1]["active"])

	code, env = do(t, s, http.MethodPost, "/api/users/updateOne",
		`{"filter": {"active": true}, "update": {"$unset": {"active": ""}}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-1"}, ids(env))

	code, env = do(t, s, http.MethodPost, "/api/users/updateOne",
		`{"filter": {"name": "linus"}, "update": {"$set": {"age": 20}, "upsert": true}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-4"}, ids(env))

	code, _ = do(t, s, http.MethodPost, "/api/users/update", `{"filter": {"name": "nobody"}, "update": {"$set": {"a": 1}}}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPost, "/api/users/update", `{"update": {"$set": {"a": 1}}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/users/update", `{"filter": {"name": "ada"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/users/update", `{"filter": {"name": "ada"}, "update": {"$inc": {"name": 1}}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Replace(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	code, env := do(t, s, http.MethodPost, "/api/users/replaceOne",
		`{"filter": {"name": "alan"}, "document": {"name": "turing"}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	if diff := cmp.Diff([]map[string]any{{"_id": "id-2", "name": "turing"}}, env.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	code, env = do(t, s, http.MethodPost, "/api/users/replace",
		`{"filter": {"name": "nobody"}, "document": {"name": "new"}, "upsert": true}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-4"}, ids(env))

	code, _ = do(t, s, http.MethodPost, "/api/users/replace", `{"filter": {"name": "ada"}, "document": {}, "upsert": "yes"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/users/replace", `{"filter": {"name": "ada"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Remove(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	code, _ := do(t, s, http.MethodPost, "/api/users/remove", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, s, http.MethodPost, "/api/users/removeOne", `{"filter": {"age": {"$gt": 0}}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-1"}, ids(env))

	code, env = do(t, s, http.MethodPost, "/api/users/remove", `{"filter": {"age": {"$gt": 0}}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, []string{"id-2", "id-3"}, ids(env))

	code, env = do(t, s, http.MethodPost, "/api/users/remove", `{"filter": {"name": "linus"}}`)
	require.Equal(t, http.StatusOK, code, env.Errors)
	assert.Equal(t, "SUCCESS", env.Status)
	assert.Empty(t, env.Data)

	code, env = do(t, s, http.MethodGet, "/api/users/_count", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Count)
}

func TestServer_Collections(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	code, env := do(t, s, http.MethodGet, "/api/users/_count", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "users", env.CollectionName)
	assert.Equal(t, 3, env.Count)

	reads := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/typo/_count", ""},
		{http.MethodGet, "/api/typo/id-1", ""},
		{http.MethodPost, "/api/typo/find", `{}`},
		{http.MethodPost, "/api/typo/findOne", `{"filter": {"name": "ada"}}`},
	}
	for _, read := range reads {
		t.Run(read.path, func(t *testing.T) {
			code, env := do(t, s, read.method, read.path, read.body)
			assert.Equal(t, http.StatusNotFound, code)
			assert.Equal(t, "ERROR", env.Status)
			assert.Equal(t, "typo", env.CollectionName)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "SUCCESS", list.Status)
	assert.Equal(t, []string{"users"}, list.Data)
}

func TestServer_Routing(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodPost, "/api/_hidden/find", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "_hidden", env.CollectionName)

	code, _ = do(t, s, http.MethodPost, "/api/users/aggregate", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = do(t, s, http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPut, "/api/users/id-1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/find", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
