package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"github.com/go-chi/chi/v5"
	"github.com/tailscale/hujson"
)

// collectionsResponse lists the collections of the served database.
type collectionsResponse struct {
	DBName string             `json:"dbName"`
	Status persistence.Status `json:"status"`
	Data   []string           `json:"data"`
}

// countResponse reports the number of documents in a collection.
type countResponse struct {
	DBName         string             `json:"dbName"`
	CollectionName string             `json:"collectionName"`
	Status         persistence.Status `json:"status"`
	Count          int                `json:"count"`
}

// readBody decodes a JSON or JSONC request body. It reports false for an
// empty body.
func readBody(r *http.Request) (document.Value, bool, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return document.Null(), false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return document.Null(), false, nil
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return document.Null(), false, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	v, err := document.ParseValue(standardized)
	if err != nil {
		return document.Null(), false, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return v, true, nil
}

// request is an operation body such as {"filter": {...}, "update": {...}}.
type request struct {
	body *document.Document
}

func parseRequest(r *http.Request) (*request, error) {
	v, ok, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &request{body: document.New()}, nil
	}
	body, isObject := v.Document()
	if !isObject {
		return nil, fmt.Errorf("%w: request body must be an object", errBadRequest)
	}
	return &request{body: body}, nil
}

func (req *request) object(key string) (*document.Document, bool, error) {
	v, ok := req.body.Get(key)
	if !ok {
		return nil, false, nil
	}
	d, isObject := v.Document()
	if !isObject {
		return nil, false, fmt.Errorf("%w: %q must be an object", errBadRequest, key)
	}
	return d, true, nil
}

// filter returns the "filter" member. A missing filter matches everything.
func (req *request) filter() (*query.QueryFilter, error) {
	d, ok, err := req.object("filter")
	if err != nil {
		return nil, err
	}
	if !ok {
		return query.MatchAll(), nil
	}
	return query.Parse(d)
}

func (req *request) expression() (*update.Expression, error) {
	d, ok, err := req.object("update")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing \"update\"", errBadRequest)
	}
	return update.Parse(d)
}

func (req *request) document() (*document.Document, error) {
	d, ok, err := req.object("document")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing \"document\"", errBadRequest)
	}
	return d, nil
}

func (req *request) upsert() (bool, error) {
	v, ok := req.body.Get("upsert")
	if !ok {
		return false, nil
	}
	b, isBool := v.Bool()
	if !isBool {
		return false, fmt.Errorf("%w: \"upsert\" must be a boolean", errBadRequest)
	}
	return b, nil
}

// collection resolves the {collection} URL parameter, writing an error
// response when it cannot. Writes create a missing collection; reads
// answer ErrCollectionNotFound instead.
func (s *Server) collection(w http.ResponseWriter, r *http.Request, create bool) (*persistence.Collection, bool) {
	name := chi.URLParam(r, "collection")
	if !create {
		exists, err := s.db.HasCollection(r.Context(), name)
		if err == nil && !exists {
			err = fmt.Errorf("%w: '%s' in database '%s'", persistence.ErrCollectionNotFound, name, s.db.Name())
		}
		if err != nil {
			s.writeError(w, name, 0, err)
			return nil, false
		}
	}
	c, err := s.db.Collection(r.Context(), name)
	if err != nil {
		s.writeError(w, name, 0, err)
		return nil, false
	}
	return c, true
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.db.Collections(r.Context())
	if err != nil {
		s.writeError(w, "", http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, collectionsResponse{
		DBName: s.db.Name(),
		Status: persistence.StatusSuccess,
		Data:   names,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r, false)
	if !ok {
		return
	}
	count := c.Count()
	if count == persistence.CountUnknown {
		s.writeError(w, c.Name(), http.StatusInternalServerError, fmt.Errorf("could not count documents in collection '%s'", c.Name()))
		return
	}
	s.writeJSON(w, http.StatusOK, countResponse{
		DBName:         s.db.Name(),
		CollectionName: c.Name(),
		Status:         persistence.StatusSuccess,
		Count:          count,
	})
}

func documentID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

func (s *Server) handleFindByID(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r, false)
	if !ok {
		return
	}
	s.writeResponse(w, http.StatusOK, c.FindByID(r.Context(), documentID(r)))
}

func (s *Server) handleRemoveByID(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r, true)
	if !ok {
		return
	}
	s.writeResponse(w, http.StatusOK, c.RemoveByID(r.Context(), documentID(r)))
}

// handleInsert accepts a single document or an array of documents.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r, true)
	if !ok {
		return
	}
	v, present, err := readBody(r)
	if err != nil {
		s.writeError(w, c.Name(), 0, err)
		return
	}
	if !present {
		s.writeError(w, c.Name(), 0, fmt.Errorf("%w: missing document", errBadRequest))
		return
	}

	if elems, isArray := v.Array(); isArray {
		docs := make([]*document.Document, 0, len(elems))
		for i, elem := range elems {
			d, isObject := elem.Document()
			if !isObject {
				s.writeError(w, c.Name(), 0, fmt.Errorf("%w: element %d is not a document", persistence.ErrInvalidDocument, i))
				return
			}
			docs = append(docs, d)
		}
		s.writeResponse(w, http.StatusCreated, c.InsertMany(r.Context(), docs))
		return
	}

	d, isObject := v.Document()
	if !isObject {
		s.writeError(w, c.Name(), 0, fmt.Errorf("%w: body must be a document or an array of documents", persistence.ErrInvalidDocument))
		return
	}
	s.writeResponse(w, http.StatusCreated, c.InsertOne(r.Context(), d))
}

// decode resolves the collection and parses the operation body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, create bool) (*persistence.Collection, *request, bool) {
	c, ok := s.collection(w, r, create)
	if !ok {
		return nil, nil, false
	}
	req, err := parseRequest(r)
	if err != nil {
		s.writeError(w, c.Name(), 0, err)
		return nil, nil, false
	}
	return c, req, true
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	c, req, ok := s.decode(w, r, false)
	if !ok {
		return
	}
	filter, err := req.filter()
	if err != nil {
		s.writeError(w, c.Name(), 0, err)
		return
	}
	s.writeResponse(w, http.StatusOK, c.Find(r.Context(), filter))
}

func (s *Server) handleFindOne(w http.ResponseWriter, r *http.Request) {
	c, req, ok := s.decode(w, r, false)
	if !ok {
		return
	}
	filter, err := req.filter()
	if err != nil {
		s.writeError(w, c.Name(), 0, err)
		return
	}
	s.writeResponse(w, http.StatusOK, c.FindOne(r.Context(), filter))
}

func (s *Server) handleUpdate(one bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, req, ok := s.decode(w, r, true)
		if !ok {
			return
		}
		filter, err := req.filter()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		expr, err := req.expression()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		if one {
			s.writeResponse(w, http.StatusOK, c.UpdateOne(r.Context(), filter, expr))
			return
		}
		s.writeResponse(w, http.StatusOK, c.Update(r.Context(), filter, expr))
	}
}

func (s *Server) handleReplace(one bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, req, ok := s.decode(w, r, true)
		if !ok {
			return
		}
		filter, err := req.filter()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		doc, err := req.document()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		upsert, err := req.upsert()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		if one {
			s.writeResponse(w, http.StatusOK, c.ReplaceOne(r.Context(), filter, doc, upsert))
			return
		}
		s.writeResponse(w, http.StatusOK, c.Replace(r.Context(), filter, doc, upsert))
	}
}

func (s *Server) handleRemove(one bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, req, ok := s.decode(w, r, true)
		if !ok {
			return
		}
		filter, err := req.filter()
		if err != nil {
			s.writeError(w, c.Name(), 0, err)
			return
		}
		if one {
			s.writeResponse(w, http.StatusOK, c.RemoveOne(r.Context(), filter))
			return
		}
		s.writeResponse(w, http.StatusOK, c.Remove(r.Context(), filter))
	}
}
