package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrVersionConflict is returned by Update when IfVersion does not match.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrInvalidField is returned for filter or order fields that are not
	// plain identifiers.
	ErrInvalidField = errors.New("invalid field name")
)

// Meta carries the system attributes of a stored document. Embedding Meta
// in a record type lets Decode populate them.
type Meta struct {
	ID        string    `json:"$id"`
	CreatedAt time.Time `json:"$createdAt"`
	UpdatedAt time.Time `json:"$updatedAt"`
	Version   int64     `json:"-"`
}

// DocMeta implements Record.
func (m *Meta) DocMeta() *Meta { return m }

// Record is implemented by types embedding Meta.
type Record interface {
	DocMeta() *Meta
}

// Document is a stored JSON object.
type Document struct {
	Meta
	Collection string
	Data       json.RawMessage
}

// Decode unmarshals the document body into v. If v is a Record its Meta
// is filled from the document.
func (d *Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	if r, ok := v.(Record); ok {
		*r.DocMeta() = d.Meta
	}
	return nil
}

// Fields returns the document body merged with its system attributes, the
// shape returned to API clients.
func (d *Document) Fields() (map[string]any, error) {
	out := map[string]any{}
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &out); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
		}
	}
	out["$id"] = d.ID
	out["$createdAt"] = d.CreatedAt
	out["$updatedAt"] = d.UpdatedAt
	return out, nil
}

// Encode marshals v into a JSON object suitable for storage. System
// attributes (keys starting with "$") are dropped.
func Encode(v any) (json.RawMessage, error) {
	var b []byte
	if raw, ok := v.(json.RawMessage); ok {
		b = raw
	} else {
		var err error
		if b, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	if !bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		return nil, fmt.Errorf("encode document: expected a JSON object, got %T", v)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	stripped := false
	for k := range fields {
		if strings.HasPrefix(k, "$") {
			delete(fields, k)
			stripped = true
		}
	}
	if !stripped {
		return b, nil
	}
	return json.Marshal(fields)
}
