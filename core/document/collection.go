package document

import (
	"iter"
	"slices"
)

// Collection is an insertion-ordered mapping from document id to document.
// Iteration order is the scan order used by queries.
type Collection struct {
	ids  []string
	docs map[string]*Document
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{docs: make(map[string]*Document)}
}

// Get returns the document stored under id. The document is shared with the
// collection.
func (c *Collection) Get(id string) (*Document, bool) {
	d, ok := c.docs[id]
	return d, ok
}

// Has reports whether id is present.
func (c *Collection) Has(id string) bool {
	_, ok := c.docs[id]
	return ok
}

// Put stores doc under id. A new id is appended to the scan order; an
// existing id keeps its position.
func (c *Collection) Put(id string, doc *Document) {
	if _, ok := c.docs[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.docs[id] = doc
}

// Delete removes id and reports whether it was present.
func (c *Collection) Delete(id string) bool {
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	if i := slices.Index(c.ids, id); i >= 0 {
		c.ids = slices.Delete(c.ids, i, i+1)
	}
	return true
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// IDs returns a copy of the ids in scan order.
func (c *Collection) IDs() []string {
	return slices.Clone(c.ids)
}

// All iterates over id and document pairs in scan order.
func (c *Collection) All() iter.Seq2[string, *Document] {
	return func(yield func(string, *Document) bool) {
		for _, id := range c.ids {
			if !yield(id, c.docs[id]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of c.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		ids:  slices.Clone(c.ids),
		docs: make(map[string]*Document, len(c.docs)),
	}
	for id, d := range c.docs {
		out.docs[id] = d.Clone()
	}
	return out
}
