package document

import (
	"iter"
	"slices"
)

// IDField is the reserved field holding a document's identifier.
const IDField = "_id"

// Document is an insertion-ordered mapping from field name to Value.
//
// The zero Document is not usable; create one with New.
type Document struct {
	keys   []string
	fields map[string]Value
}

// New returns an empty document.
func New() *Document {
	return &Document{fields: make(map[string]Value)}
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (Value, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (d *Document) Set(key string, v Value) *Document {
	if _, ok := d.fields[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = v
	return d
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if _, ok := d.fields[key]; !ok {
		return false
	}
	delete(d.fields, key)
	if i := slices.Index(d.keys, key); i >= 0 {
		d.keys = slices.Delete(d.keys, i, i+1)
	}
	return true
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns a copy of the field names in insertion order.
func (d *Document) Keys() []string {
	return slices.Clone(d.keys)
}

// Fields iterates over the fields in insertion order.
func (d *Document) Fields() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range d.keys {
			if !yield(k, d.fields[k]) {
				return
			}
		}
	}
}

// ID returns the document identifier when it is present and a string.
func (d *Document) ID() (string, bool) {
	v, ok := d.fields[IDField]
	if !ok {
		return "", false
	}
	return v.Str()
}

// SetID stores id under the reserved identifier field.
func (d *Document) SetID(id string) *Document {
	return d.Set(IDField, String(id))
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		keys:   slices.Clone(d.keys),
		fields: make(map[string]Value, len(d.fields)),
	}
	for k, v := range d.fields {
		out.fields[k] = v.Clone()
	}
	return out
}

// Equal reports whether both documents hold the same fields with strictly
// equal values. Field order is ignored.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.fields) != len(other.fields) {
		return false
	}
	for k, v := range d.fields {
		ov, ok := other.fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders d as compact JSON.
func (d *Document) String() string {
	return Object(d).String()
}
