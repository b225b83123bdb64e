package persistence

import (
	"errors"

	"github.com/asaidimu/go-mockdb/core/document"
)

// Status is the outcome of a collection operation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Response is the envelope returned by every collection data operation.
// Data always holds copies; mutating them never affects stored documents.
type Response struct {
	DBName         string               `json:"dbName"`
	CollectionName string               `json:"collectionName"`
	Status         Status               `json:"status"`
	Data           []*document.Document `json:"data"`
	Errors         []string             `json:"errors"`

	errs []error
}

func newResponse(db, collection string) *Response {
	return &Response{
		DBName:         db,
		CollectionName: collection,
		Status:         StatusError,
		Data:           []*document.Document{},
		Errors:         []string{},
	}
}

func (r *Response) succeed(docs []*document.Document) *Response {
	r.Status = StatusSuccess
	if docs != nil {
		r.Data = docs
	}
	return r
}

func (r *Response) fail(err error) *Response {
	r.Status = StatusError
	r.Data = []*document.Document{}
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
	return r
}

// OK reports whether the operation succeeded.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// Err returns the errors of a failed operation joined together, or nil.
// The result supports errors.Is against the package sentinels.
func (r *Response) Err() error {
	return errors.Join(r.errs...)
}

// First returns the first document of Data, or nil.
func (r *Response) First() *document.Document {
	if len(r.Data) == 0 {
		return nil
	}
	return r.Data[0]
}

// ErrorResponse builds a failed envelope for errors raised outside a
// collection operation, such as a request that could not be decoded.
func ErrorResponse(db, collection string, err error) *Response {
	return newResponse(db, collection).fail(err)
}
