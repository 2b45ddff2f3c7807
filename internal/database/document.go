package database

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ObjectID is a document id in ObjectId hex form.
type ObjectID string

// String renders the id the way the shell prints it.
func (id ObjectID) String() string {
	return `ObjectId("` + string(id) + `")`
}

// MarshalJSON encodes the id in extended JSON form.
func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$oid": string(id)})
}

// Document is a stored JSON document. Its fields are readable from scripts.
type Document struct {
	raw string
}

// NewDocument wraps raw JSON.
func NewDocument(raw string) *Document {
	return &Document{raw: raw}
}

// JSON returns the document's JSON text.
func (d *Document) JSON() string {
	return d.raw
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return []byte(d.raw), nil
}

// String renders the document on one line in shell notation.
func (d *Document) String() string {
	return formatResult(gjson.Parse(d.raw))
}

// GetProperty implements shelltypes.PropertyGetter.
func (d *Document) GetProperty(name string) (any, bool) {
	r := gjson.Get(d.raw, escapeSegment(name))
	if !r.Exists() {
		return nil, false
	}
	return fromResult(r), true
}

// Map decodes the document into plain values.
func (d *Document) Map() map[string]any {
	m, _ := plainValue(gjson.Parse(d.raw)).(map[string]any)
	return m
}

// fromResult converts a gjson value to the values scripts work with. Nested
// objects stay documents so that field access chains keep working.
func fromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float()
	case gjson.String:
		return r.String()
	}
	if oid, ok := objectIDOf(r); ok {
		return oid
	}
	if r.IsArray() {
		items := r.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromResult(item)
		}
		return out
	}
	return NewDocument(r.Raw)
}

// plainValue converts a gjson value to plain Go data.
func plainValue(r gjson.Result) any {
	if r.IsObject() {
		out := make(map[string]any)
		r.ForEach(func(k, v gjson.Result) bool {
			out[k.String()] = plainValue(v)
			return true
		})
		return out
	}
	if r.IsArray() {
		var out []any
		r.ForEach(func(_, v gjson.Result) bool {
			out = append(out, plainValue(v))
			return true
		})
		return out
	}
	return r.Value()
}

// objectIDOf recognizes {"$oid": "..."}.
func objectIDOf(r gjson.Result) (ObjectID, bool) {
	if !r.IsObject() {
		return "", false
	}
	var oid string
	n := 0
	r.ForEach(func(k, v gjson.Result) bool {
		n++
		if k.String() == "$oid" && v.Type == gjson.String {
			oid = v.String()
		}
		return n < 2
	})
	if n != 1 || oid == "" {
		return "", false
	}
	return ObjectID(oid), true
}

func formatResult(r gjson.Result) string {
	if oid, ok := objectIDOf(r); ok {
		return oid.String()
	}
	switch {
	case r.IsObject():
		var parts []string
		r.ForEach(func(k, v gjson.Result) bool {
			parts = append(parts, k.Raw+" : "+formatResult(v))
			return true
		})
		if len(parts) == 0 {
			return "{ }"
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case r.IsArray():
		var parts []string
		r.ForEach(func(_, v gjson.Result) bool {
			parts = append(parts, formatResult(v))
			return true
		})
		if len(parts) == 0 {
			return "[ ]"
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	}
	return r.Raw
}
