// Copyright (C) 2017 ScyllaDB

// Package locktest provides an in-memory lock.Store with the same
// conditional write semantics as the database.
package locktest

import (
	"context"
	"sync"
	"time"

	"github.com/scylladb/scylla-autorepair/pkg/lock"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// Op names a Store operation.
type Op string

// Store operations.
const (
	OpInsert         Op = "insert"
	OpReplace        Op = "replace"
	OpRenew          Op = "renew"
	OpDelete         Op = "delete"
	OpPutPriority    Op = "put_priority"
	OpPriorities     Op = "priorities"
	OpDeletePriority Op = "delete_priority"
)

type priority struct {
	value     int
	expiresAt time.Time
}

// Store is a linearizable in-memory lock.Store. Errors can be injected per
// operation.
type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	locks  map[string]lock.Record
	prios  map[string]map[uuid.UUID]priority
	errs   map[Op]error
	calls  map[Op]int
	onCall func(op Op)
}

var _ lock.Store = &Store{}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:   timeutc.Now,
		locks: make(map[string]lock.Record),
		prios: make(map[string]map[uuid.UUID]priority),
		errs:  make(map[Op]error),
		calls: make(map[Op]int),
	}
}

// SetNow sets the clock used for priority expiry.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetError makes op fail with err, nil err clears the failure.
func (s *Store) SetError(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
	} else {
		s.errs[op] = err
	}
}

// OnCall sets a hook called before every operation, the hook may modify
// the store.
func (s *Store) OnCall(f func(op Op)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCall = f
}

// Calls returns number of op calls.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Record returns the stored record for resource.
func (s *Store) Record(resource string) (lock.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.locks[resource]
	return r, ok
}

// Put overwrites the record unconditionally.
func (s *Store) Put(r lock.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[r.Resource] = r
}

// enter runs the hook and locks the store, the caller must unlock it.
func (s *Store) enter(op Op) error {
	s.mu.Lock()
	hook := s.onCall
	s.mu.Unlock()
	if hook != nil {
		hook(op)
	}

	s.mu.Lock()
	s.calls[op]++
	return s.errs[op]
}

// Insert implements lock.Store.
func (s *Store) Insert(ctx context.Context, r lock.Record) (bool, lock.Record, error) {
	err := s.enter(OpInsert)
	defer s.mu.Unlock()
	if err != nil {
		return false, lock.Record{}, err
	}

	if existing, ok := s.locks[r.Resource]; ok {
		return false, existing, nil
	}
	s.locks[r.Resource] = r
	return true, lock.Record{}, nil
}

// Replace implements lock.Store.
func (s *Store) Replace(ctx context.Context, prev, next lock.Record) (bool, error) {
	err := s.enter(OpReplace)
	defer s.mu.Unlock()
	if err != nil {
		return false, err
	}

	cur, ok := s.locks[prev.Resource]
	if !ok || cur.Holder != prev.Holder || !cur.ExpiresAt.Equal(prev.ExpiresAt) {
		return false, nil
	}
	s.locks[prev.Resource] = next
	return true, nil
}

// Renew implements lock.Store.
func (s *Store) Renew(ctx context.Context, resource string, holder uuid.UUID, expiresAt time.Time) (bool, error) {
	err := s.enter(OpRenew)
	defer s.mu.Unlock()
	if err != nil {
		return false, err
	}

	cur, ok := s.locks[resource]
	if !ok || cur.Holder != holder {
		return false, nil
	}
	cur.ExpiresAt = expiresAt
	s.locks[resource] = cur
	return true, nil
}

// Delete implements lock.Store.
func (s *Store) Delete(ctx context.Context, resource string, holder uuid.UUID) (bool, error) {
	err := s.enter(OpDelete)
	defer s.mu.Unlock()
	if err != nil {
		return false, err
	}

	cur, ok := s.locks[resource]
	if !ok || cur.Holder != holder {
		return false, nil
	}
	delete(s.locks, resource)
	return true, nil
}

// PutPriority implements lock.Store.
func (s *Store) PutPriority(ctx context.Context, resource string, holder uuid.UUID, p int, ttl time.Duration) error {
	err := s.enter(OpPutPriority)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	m, ok := s.prios[resource]
	if !ok {
		m = make(map[uuid.UUID]priority)
		s.prios[resource] = m
	}
	m[holder] = priority{value: p, expiresAt: s.now().Add(ttl)}
	return nil
}

// Priorities implements lock.Store.
func (s *Store) Priorities(ctx context.Context, resource string) (map[uuid.UUID]int, error) {
	err := s.enter(OpPriorities)
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make(map[uuid.UUID]int)
	for h, p := range s.prios[resource] {
		if p.expiresAt.After(now) {
			out[h] = p.value
		}
	}
	return out, nil
}

// DeletePriority implements lock.Store.
func (s *Store) DeletePriority(ctx context.Context, resource string, holder uuid.UUID) error {
	err := s.enter(OpDeletePriority)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	delete(s.prios[resource], holder)
	return nil
}
