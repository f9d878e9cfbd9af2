// Package memory is an in-process implementation of repository.Store. It
// enforces the same uniqueness rules as the Postgres schema and gives
// WithinTx all-or-nothing semantics, so service tests exercise the real
// transaction boundaries without a database.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lalith-99/bookshare/internal/repository"
)

// Store keeps every table in maps guarded by one mutex. A transaction holds
// the mutex for its whole duration, so transactions are serializable.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

// NewStore returns an empty store using the wall clock for timestamps.
func NewStore() *Store {
	return &Store{data: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

// WithinTx snapshots the tables, runs fn and restores the snapshot if fn
// fails. fn must only use the Repos it is given; calling s.Repos() from
// inside fn would deadlock.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			err = fmt.Errorf("memory tx panic: %v", p)
		}
	}()

	if err := fn(s.repos(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) repos(inTx bool) repository.Repos {
	a := access{s: s, inTx: inTx}
	return repository.Repos{
		Users:    userRepo{a},
		Books:    bookRepo{a},
		Requests: requestRepo{a},
		Messages: messageRepo{a},
		Invites:  inviteRepo{a},
		Contacts: contactRepo{a},
		Reviews:  reviewRepo{a},
	}
}

// access runs table operations either under the store mutex (plain calls)
// or directly (inside WithinTx, which already holds it).
type access struct {
	s    *Store
	inTx bool
}

func (a access) with(fn func(st *state, now time.Time) error) error {
	if !a.inTx {
		a.s.mu.Lock()
		defer a.s.mu.Unlock()
	}
	return fn(a.s.data, a.s.now())
}

// table is an insertion-ordered map. Ordering by insertion stands in for
// ORDER BY created_at, which could tie on a coarse clock.
type table[K comparable, V any] struct {
	rows  map[K]V
	order []K
}

func newTable[K comparable, V any]() table[K, V] {
	return table[K, V]{rows: make(map[K]V)}
}

func (t *table[K, V]) put(k K, v V) {
	if _, ok := t.rows[k]; !ok {
		t.order = append(t.order, k)
	}
	t.rows[k] = v
}

func (t *table[K, V]) get(k K) (V, bool) {
	v, ok := t.rows[k]
	return v, ok
}

func (t *table[K, V]) remove(k K) {
	delete(t.rows, k)
	t.order = slices.DeleteFunc(t.order, func(x K) bool { return x == k })
}

// ascending yields rows oldest first.
func (t *table[K, V]) ascending() []V {
	out := make([]V, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.rows[k])
	}
	return out
}

// descending yields rows newest first.
func (t *table[K, V]) descending() []V {
	out := t.ascending()
	slices.Reverse(out)
	return out
}

func (t table[K, V]) clone() table[K, V] {
	return table[K, V]{rows: maps.Clone(t.rows), order: slices.Clone(t.order)}
}
