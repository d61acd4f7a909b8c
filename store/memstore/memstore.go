// Package memstore is an in-memory store.Store used in tests and DEV mode.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/school-console/store"
)

var _ store.Store = (*MemStore)(nil)

type entry struct {
	seq uint64
	row store.Row
}

type MemStore struct {
	collections map[string][]*entry
	seq         uint64
	nowTime     func() time.Time
	lock        sync.RWMutex
}

type Option func(*MemStore)

// WithNowTime sets the clock used for created_at stamps (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *MemStore) {
		m.nowTime = nowFunc
	}
}

func New(options ...Option) *MemStore {
	m := &MemStore{
		collections: make(map[string][]*entry),
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MemStore) Find(ctx context.Context, collection string, filter store.Filter, opts ...store.FindOption) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := store.ApplyFindOptions(opts...)

	m.lock.RLock()
	matched := make([]*entry, 0)
	for _, e := range m.collections[collection] {
		if matches(e.row, filter) {
			matched = append(matched, &entry{seq: e.seq, row: e.row.Clone()})
		}
	}
	m.lock.RUnlock()

	sortEntries(matched, o.OrderBy)
	if o.Limit > 0 && len(matched) > o.Limit {
		matched = matched[:o.Limit]
	}

	rows := make([]store.Row, 0, len(matched))
	for _, e := range matched {
		rows = append(rows, e.row)
	}
	return rows, nil
}

func (m *MemStore) Insert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, store.ErrUnknownCollection
	}

	r := row.Clone()
	if id, _ := r[store.FieldID].(string); id == "" {
		r[store.FieldID] = uuid.New().String()
	}
	r[store.FieldCreatedAt] = m.nowTime().UTC()

	m.lock.Lock()
	defer m.lock.Unlock()
	for _, e := range m.collections[collection] {
		if e.row[store.FieldID] == r[store.FieldID] {
			return nil, fmt.Errorf("memstore: duplicate id %v in %s", r[store.FieldID], collection)
		}
	}
	m.seq++
	m.collections[collection] = append(m.collections[collection], &entry{seq: m.seq, row: r})
	return r.Clone(), nil
}

func (m *MemStore) Update(ctx context.Context, collection string, filter store.Filter, patch store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, store.ErrEmptyFilter
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	var first store.Row
	for _, e := range m.collections[collection] {
		if !matches(e.row, filter) {
			continue
		}
		for k, v := range patch {
			if k == store.FieldID || k == store.FieldCreatedAt {
				continue
			}
			e.row[k] = v
		}
		if first == nil {
			first = e.row.Clone()
		}
	}
	if first == nil {
		return nil, store.ErrNoRows
	}
	return first, nil
}

func matches(row store.Row, filter store.Filter) bool {
	for _, c := range filter {
		v, ok := row[c.Field]
		if c.Value == nil {
			if ok && !isNil(v) {
				return false
			}
			continue
		}
		if !ok || !reflect.DeepEqual(v, c.Value) {
			return false
		}
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// sortEntries orders by the given keys; ties fall back to insertion order,
// reversed when the first key is descending so equal timestamps still list
// the most recent insert first.
func sortEntries(entries []*entry, order []store.Order) {
	if len(order) == 0 {
		return
	}
	desc := order[0].Desc
	sort.SliceStable(entries, func(i, j int) bool {
		for _, o := range order {
			c := compare(entries[i].row[o.Field], entries[j].row[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		if desc {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].seq < entries[j].seq
	})
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if av {
				return 1
			}
			return -1
		}
	}
	return 0
}
