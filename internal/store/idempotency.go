package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IdempotencyKey derives a deterministic document id from the parts that
// identify an activity, e.g. (userId, challengeId).
func IdempotencyKey(parts ...string) string {
	return strings.Join(parts, "_")
}

// Claim creates data under key unless a document already exists there.
// created is true when this call wrote the document; otherwise the existing
// document is returned untouched.
func Claim(ctx context.Context, docs Documents, collection, key string, data any) (doc *Document, created bool, err error) {
	doc, err = docs.Create(ctx, collection, key, data)
	if err == nil {
		return doc, true, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return nil, false, err
	}
	doc, err = docs.Get(ctx, collection, key)
	if err != nil {
		return nil, false, fmt.Errorf("load claimed %s/%s: %w", collection, key, err)
	}
	return doc, false, nil
}

// Fetch loads a document into v.
func Fetch(ctx context.Context, docs Documents, collection, id string, v any) error {
	doc, err := docs.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return doc.Decode(v)
}

// FetchAll lists documents and decodes each into a T.
func FetchAll[T any](ctx context.Context, docs Documents, collection string, q Query) ([]*T, error) {
	list, err := docs.List(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(list))
	for _, d := range list {
		v := new(T)
		if err := d.Decode(v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
