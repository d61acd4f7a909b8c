// Package storetest provides helpers for testing code that talks to a store.Store.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/school-console/store"
)

var _ store.Store = (*Spy)(nil)

// Call records one request that reached the wrapped store.
type Call struct {
	Op         string
	Collection string
	Filter     store.Filter
	Row        store.Row
}

// Spy wraps a store, records every call and can inject failures.
type Spy struct {
	Inner store.Store

	mu         sync.Mutex
	calls      []Call
	findErr    error
	insertErr  error
	updateErr  error
	beforeFind func(ctx context.Context, collection string)
}

func NewSpy(inner store.Store) *Spy {
	return &Spy{Inner: inner}
}

// FailFind makes every subsequent Find return err. Nil clears it.
func (s *Spy) FailFind(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr = err
}

// FailInsert makes every subsequent Insert return err. Nil clears it.
func (s *Spy) FailInsert(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

// FailUpdate makes every subsequent Update return err. Nil clears it.
func (s *Spy) FailUpdate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// BeforeFind installs a hook run at the start of every Find, outside the spy's lock.
func (s *Spy) BeforeFind(hook func(ctx context.Context, collection string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeFind = hook
}

// Calls returns a copy of the recorded calls.
func (s *Spy) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many calls of op were recorded ("" counts all).
func (s *Spy) Count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if op == "" || c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (s *Spy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Spy) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Spy) Find(ctx context.Context, collection string, filter store.Filter, opts ...store.FindOption) ([]store.Row, error) {
	s.record(Call{Op: "find", Collection: collection, Filter: filter})
	s.mu.Lock()
	hook, err := s.beforeFind, s.findErr
	s.mu.Unlock()
	if hook != nil {
		hook(ctx, collection)
	}
	if err != nil {
		return nil, err
	}
	return s.Inner.Find(ctx, collection, filter, opts...)
}

func (s *Spy) Insert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	s.record(Call{Op: "insert", Collection: collection, Row: row.Clone()})
	s.mu.Lock()
	err := s.insertErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Inner.Insert(ctx, collection, row)
}

func (s *Spy) Update(ctx context.Context, collection string, filter store.Filter, patch store.Row) (store.Row, error) {
	s.record(Call{Op: "update", Collection: collection, Filter: filter, Row: patch.Clone()})
	s.mu.Lock()
	err := s.updateErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Inner.Update(ctx, collection, filter, patch)
}

// TickingClock returns a clock that advances by step on every call.
func TickingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}
