package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// Document is an opaque structured payload (workflow specs, downstream
// responses, audit request/response data). The engine never interprets its
// contents beyond merging.
type Document map[string]interface{}

// Value serializes the document as JSONB for the database driver.
func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan deserializes a JSONB column into the document.
func (d *Document) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into Document", src)
	}
	return json.Unmarshal(data, d)
}

// Merge returns a new document with override applied on top of d. Nested maps
// are merged recursively; override keys win at the leaf level. Neither input
// is modified.
func (d Document) Merge(override Document) Document {
	merged := d.clone()
	if merged == nil {
		merged = Document{}
	}
	for k, v := range override {
		base, ok := merged[k].(map[string]interface{})
		over, ok2 := v.(map[string]interface{})
		if ok && ok2 {
			merged[k] = map[string]interface{}(Document(base).Merge(Document(over)))
			continue
		}
		merged[k] = v
	}
	return merged
}

func (d Document) clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = map[string]interface{}(Document(m).clone())
			continue
		}
		out[k] = v
	}
	return out
}
