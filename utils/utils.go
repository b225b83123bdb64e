package utils

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-mockdb/core/document"
)

// StructToDocument converts a Go struct into a Document.
//
// The struct is marshaled with encoding/json, so `json:"tag"` annotations and
// `omitempty` are respected, and the result is decoded with document.Parse,
// which keeps the field order of the struct declaration.
//
// The input `record` must be a struct or a pointer to a struct.
//
// Example:
//
//	type Task struct {
//		Title string `json:"title"`
//		Done  bool   `json:"done"`
//	}
//	doc, err := StructToDocument(Task{Title: "write docs"})
//	// doc is {"title":"write docs","done":false}
func StructToDocument[T any](record T) (*document.Document, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to marshal input record to JSON: %w", err)
	}
	doc, err := document.Parse(jsonBytes)
	if err != nil {
		return nil, fmt.Errorf("StructToDocument: %w", err)
	}
	return doc, nil
}

// DocumentToStruct is the inverse of StructToDocument: it decodes a Document
// into a new instance of the struct type `T`. If `T` is a pointer type, a
// pointer to a freshly decoded struct is returned.
//
// Example:
//
//	task, err := DocumentToStruct[Task](doc)
func DocumentToStruct[T any](doc *document.Document) (T, error) {
	var zero T

	if doc == nil {
		return zero, fmt.Errorf("DocumentToStruct: input document cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("DocumentToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := doc.MarshalJSON()
	if err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to marshal document to JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}
