package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Parse decodes a JSON object into a Document, keeping field order.
func Parse(data []byte) (*Document, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, err
	}
	d, ok := v.Document()
	if !ok {
		return nil, fmt.Errorf("document: expected a JSON object, got %s", v.Kind())
	}
	return d, nil
}

// MustParse is like Parse but panics on error. It is intended for literals in
// tests and examples.
func MustParse(data string) *Document {
	d, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return d
}

// ParseValue decodes any JSON value, keeping object field order.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("document: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("document: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("document: invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			elems := []Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("document: %w", err)
			}
			return Array(elems...), nil
		case '{':
			d := New()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("document: %w", err)
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("document: invalid object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				d.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("document: %w", err)
			}
			return Object(d), nil
		}
	}
	return Value{}, fmt.Errorf("document: unexpected token %v", tok)
}

// MarshalJSON encodes v. Objects keep their field order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes any JSON value into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("document: unsupported number %v", v.n)
		}
		b, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.a {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		return v.o.encode(buf)
	default:
		return fmt.Errorf("document: unknown kind %s", v.kind)
	}
	return nil
}

func (d *Document) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := d.fields[k].encode(buf); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// MarshalJSON encodes d as a JSON object in field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	if err := d.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into d, replacing its contents.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// MarshalJSON encodes c as a JSON object keyed by document id, in scan order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := c.docs[id].encode(&buf); err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a collection. Two layouts are accepted: an object
// keyed by document id, and a legacy array of documents each carrying a
// string _id. In the keyed layout the key overrides any stored _id.
func (c *Collection) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	out := NewCollection()
	switch v.Kind() {
	case KindObject:
		root, _ := v.Document()
		for id, entry := range root.Fields() {
			doc, ok := entry.Document()
			if !ok {
				return fmt.Errorf("document: entry %q is %s, not an object", id, entry.Kind())
			}
			out.Put(id, doc.SetID(id))
		}
	case KindArray:
		elems, _ := v.Array()
		for i, entry := range elems {
			doc, ok := entry.Document()
			if !ok {
				return fmt.Errorf("document: element %d is %s, not an object", i, entry.Kind())
			}
			id, ok := doc.ID()
			if !ok {
				return fmt.Errorf("document: element %d has no string %s", i, IDField)
			}
			out.Put(id, doc)
		}
	case KindNull:
	default:
		return fmt.Errorf("document: expected an object or array, got %s", v.Kind())
	}
	*c = *out
	return nil
}
