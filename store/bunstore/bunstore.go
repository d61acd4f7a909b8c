// Package bunstore implements store.Store on top of bun, for PostgreSQL and SQLite.
package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/school-console/store"
	"github.com/uptrace/bun"
)

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by a bun database.
type Store struct {
	db      *bun.DB
	nowTime func() time.Time
}

type Option func(*Store)

// WithNowTime sets the clock used for created_at stamps (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func New(db *bun.DB, options ...Option) *Store {
	s := &Store{db: db, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Open connects to dsn, migrates the schema and returns the store.
func Open(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	db, err := OpenDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, options...), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Find(ctx context.Context, collection string, filter store.Filter, opts ...store.FindOption) ([]store.Row, error) {
	return find(ctx, s.db, collection, filter, store.ApplyFindOptions(opts...))
}

func (s *Store) Insert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	values := make(map[string]interface{}, len(row)+2)
	for k, v := range row {
		values[k] = v
	}
	if id, _ := values[store.FieldID].(string); id == "" {
		values[store.FieldID] = uuid.New().String()
	}
	values[store.FieldCreatedAt] = s.nowTime().UTC()

	if _, err := s.db.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(collection)).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}

	rows, err := find(ctx, s.db, collection, store.Eq(store.FieldID, values[store.FieldID]), store.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s: %w", collection, store.ErrNoRows)
	}
	return rows[0], nil
}

// Update patches every row matching filter inside a transaction and reads the
// first of them back by id, since the filter may no longer match afterwards.
func (s *Store) Update(ctx context.Context, collection string, filter store.Filter, patch store.Row) (store.Row, error) {
	if len(filter) == 0 {
		return nil, store.ErrEmptyFilter
	}
	values := make(map[string]interface{}, len(patch))
	for k, v := range patch {
		if k == store.FieldID || k == store.FieldCreatedAt {
			continue
		}
		values[k] = v
	}

	var updated store.Row
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ids []string
		q := tx.NewSelect().
			TableExpr("?", bun.Ident(collection)).
			Column(store.FieldID)
		if err := where(q, filter).Scan(ctx, &ids); err != nil {
			return fmt.Errorf("select %s: %w", collection, err)
		}
		if len(ids) == 0 {
			return store.ErrNoRows
		}

		if len(values) > 0 {
			u := tx.NewUpdate().
				Model(&values).
				TableExpr("?", bun.Ident(collection))
			for _, c := range filter {
				u = whereCondition(u, c)
			}
			res, err := u.Exec(ctx)
			if err != nil {
				return fmt.Errorf("update %s: %w", collection, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return store.ErrNoRows
			}
		}

		rows, err := find(ctx, &tx, collection, store.Eq(store.FieldID, ids[0]), store.FindOptions{Limit: 1})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return store.ErrNoRows
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func find(ctx context.Context, db bun.IDB, collection string, filter store.Filter, o store.FindOptions) ([]store.Row, error) {
	q := db.NewSelect().
		TableExpr("?", bun.Ident(collection)).
		ColumnExpr("*")
	q = where(q, filter)
	for _, order := range o.OrderBy {
		if order.Desc {
			q = q.OrderExpr("? DESC", bun.Ident(order.Field))
		} else {
			q = q.OrderExpr("? ASC", bun.Ident(order.Field))
		}
	}
	if o.Limit > 0 {
		q = q.Limit(o.Limit)
	}

	var maps []map[string]interface{}
	if err := q.Scan(ctx, &maps); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	rows := make([]store.Row, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, store.Row(m))
	}
	return rows, nil
}

func where(q *bun.SelectQuery, filter store.Filter) *bun.SelectQuery {
	for _, c := range filter {
		q = whereCondition(q, c)
	}
	return q
}

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

func whereCondition[Q whereQuery[Q]](q Q, c store.Condition) Q {
	if c.Value == nil {
		return q.Where("? IS NULL", bun.Ident(c.Field))
	}
	return q.Where("? = ?", bun.Ident(c.Field), c.Value)
}
