package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
)

// Documents is the document store contract consumed by the services.
type Documents interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Create stores data under id. An empty id is replaced by a random one.
	// It fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, collection, id string, data any) (*Document, error)

	// Update merges patch into the stored object and bumps its version.
	Update(ctx context.Context, collection, id string, patch any, opts ...UpdateOption) (*Document, error)

	// Delete removes the document or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// List returns the documents matching q.
	List(ctx context.Context, collection string, q Query) ([]*Document, error)

	// Count returns the number of documents matching all filters.
	Count(ctx context.Context, collection string, filters ...Filter) (int, error)
}

var _ Documents = (*Store)(nil)

type updateOpts struct {
	ifVersion *int64
}

// UpdateOption configures Update.
type UpdateOption func(*updateOpts)

// IfVersion makes Update fail with ErrVersionConflict unless the stored
// version equals v.
func IfVersion(v int64) UpdateOption {
	return func(o *updateOpts) { o.ifVersion = &v }
}

func (s *Store) Get(ctx context.Context, collection, id string) (*Document, error) {
	q := s.rebind(`SELECT data, version, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`)
	var doc *Document
	err := s.conn.query(ctx, q, []any{collection, id}, func(row rowScanner) error {
		d, err := scanDocument(row, collection, id)
		doc = d
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	return doc, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data any) (*Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	body, err := Encode(data)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ms := now.UnixMilli()

	value := "?"
	if s.dialect == dialect.Postgres {
		value = "?::jsonb"
	}
	q := `INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES (?, ?, ` + value + `, 1, ?, ?) ON CONFLICT (collection, id) DO NOTHING`
	n, err := s.conn.exec(ctx, s.rebind(q), collection, id, string(body), ms, ms)
	if err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("create %s/%s: %w", collection, id, ErrAlreadyExists)
	}

	created := time.UnixMilli(ms).UTC()
	return &Document{
		Meta:       Meta{ID: id, CreatedAt: created, UpdatedAt: created, Version: 1},
		Collection: collection,
		Data:       body,
	}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch any, opts ...UpdateOption) (*Document, error) {
	var o updateOpts
	for _, opt := range opts {
		opt(&o)
	}
	body, err := Encode(patch)
	if err != nil {
		return nil, err
	}

	merge := "json_patch(data, ?)"
	if s.dialect == dialect.Postgres {
		merge = "data || ?::jsonb"
	}
	q := "UPDATE documents SET data = " + merge + ", version = version + 1, updated_at = ? WHERE collection = ? AND id = ?"
	args := []any{string(body), s.now().UTC().UnixMilli(), collection, id}
	if o.ifVersion != nil {
		q += " AND version = ?"
		args = append(args, *o.ifVersion)
	}
	q += " RETURNING data, version, created_at, updated_at"

	var doc *Document
	err = s.conn.query(ctx, s.rebind(q), args, func(row rowScanner) error {
		d, err := scanDocument(row, collection, id)
		doc = d
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if doc != nil {
		return doc, nil
	}

	// Nothing matched: tell a missing document apart from a stale version.
	if _, err := s.Get(ctx, collection, id); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrVersionConflict)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	n, err := s.conn.exec(ctx, s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, q Query) ([]*Document, error) {
	query, args, err := selectQuery(s.dialect, collection, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	var docs []*Document
	err = s.conn.query(ctx, query, args, func(row rowScanner) error {
		var id string
		var data []byte
		var version, created, updated int64
		if err := row.Scan(&id, &data, &version, &created, &updated); err != nil {
			return err
		}
		docs = append(docs, newDocument(collection, id, data, version, created, updated))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, filters ...Filter) (int, error) {
	query, args, err := countQuery(s.dialect, collection, filters)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	var n int64
	err = s.conn.query(ctx, query, args, func(row rowScanner) error {
		return row.Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int(n), nil
}

func scanDocument(row rowScanner, collection, id string) (*Document, error) {
	var data []byte
	var version, created, updated int64
	if err := row.Scan(&data, &version, &created, &updated); err != nil {
		return nil, err
	}
	return newDocument(collection, id, data, version, created, updated), nil
}

func newDocument(collection, id string, data []byte, version, created, updated int64) *Document {
	return &Document{
		Meta: Meta{
			ID:        id,
			CreatedAt: time.UnixMilli(created).UTC(),
			UpdatedAt: time.UnixMilli(updated).UTC(),
			Version:   version,
		},
		Collection: collection,
		Data:       append([]byte(nil), data...),
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.dialect != dialect.Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
