// Package store defines the narrow backing-store contract the console talks to.
//
// Every filter and patch passed through a Store is authored by the console's own
// gateways; callers outside those gateways never build filters for tenant-owned
// collections. Row-level security in the store itself is assumed to be disabled.
package store

import (
	"context"
	"errors"
)

// Well-known column names shared by every collection.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

var (
	// ErrNoRows is returned by Update when the filter matched nothing.
	ErrNoRows = errors.New("store: no rows matched")
	// ErrEmptyFilter is returned by Update when called without a filter.
	ErrEmptyFilter = errors.New("store: update requires a filter")
	// ErrUnknownCollection is returned for a collection the store does not hold.
	ErrUnknownCollection = errors.New("store: unknown collection")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Condition is an equality predicate. A nil Value matches NULL.
type Condition struct {
	Field string
	Value any
}

// Filter is a conjunction of equality conditions.
type Filter []Condition

// Eq starts a filter with a single equality condition.
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Value: value}}
}

// And returns a new filter with one more equality condition.
func (f Filter) And(field string, value any) Filter {
	out := make(Filter, 0, len(f)+1)
	out = append(out, f...)
	return append(out, Condition{Field: field, Value: value})
}

// Order is a sort key.
type Order struct {
	Field string
	Desc  bool
}

// FindOptions collects optional Find parameters.
type FindOptions struct {
	OrderBy []Order
	Limit   int
}

type FindOption func(*FindOptions)

// OrderBy appends a sort key.
func OrderBy(field string, desc bool) FindOption {
	return func(o *FindOptions) {
		o.OrderBy = append(o.OrderBy, Order{Field: field, Desc: desc})
	}
}

// Newest orders by creation time, most recent first.
func Newest() FindOption {
	return OrderBy(FieldCreatedAt, true)
}

// Limit caps the number of rows returned. Zero means no limit.
func Limit(n int) FindOption {
	return func(o *FindOptions) {
		o.Limit = n
	}
}

// ApplyFindOptions folds options into a FindOptions value.
func ApplyFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the backing-store collaborator.
//
// Insert assigns FieldID when absent and always stamps FieldCreatedAt. Update
// applies patch to every row matching filter and returns the first updated row.
// Each call is a suspension point; implementations must honour ctx cancellation.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter, opts ...FindOption) ([]Row, error)
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection string, filter Filter, patch Row) (Row, error)
}

// NullString converts an optional string into a row value: nil for NULL.
func NullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
