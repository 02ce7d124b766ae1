// Copyright (C) 2017 ScyllaDB

package lock

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/scylla-autorepair/pkg/schema/table"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// CQLStore keeps locks in the lock and lock_priority tables, conditional
// writes are lightweight transactions.
type CQLStore struct {
	session gocqlx.Session
	serial  gocql.SerialConsistency
}

var _ Store = &CQLStore{}

// NewCQLStore returns a store using serial consistency for conditional
// writes, use gocql.LocalSerial if all lock contenders share a datacenter.
func NewCQLStore(session gocqlx.Session, serial gocql.SerialConsistency) *CQLStore {
	return &CQLStore{
		session: session,
		serial:  serial,
	}
}

func (s *CQLStore) cas(ctx context.Context, q *gocqlx.Queryx) *gocqlx.Queryx {
	q = q.WithContext(ctx)
	q.SerialConsistency(s.serial)
	return q
}

// Insert implements Store.
func (s *CQLStore) Insert(ctx context.Context, r Record) (bool, Record, error) {
	q := s.cas(ctx, table.Lock.InsertBuilder().Unique().Query(s.session)).BindStruct(r)

	var existing Record
	applied, err := q.GetCASRelease(&existing)
	return applied, existing, err
}

// Replace implements Store.
func (s *CQLStore) Replace(ctx context.Context, prev, next Record) (bool, error) {
	b := table.Lock.UpdateBuilder("holder", "priority", "acquired_at", "expires_at", "metadata").
		If(qb.EqNamed("holder", "prev_holder"), qb.EqNamed("expires_at", "prev_expires_at"))
	q := s.cas(ctx, b.Query(s.session)).BindStructMap(next, qb.M{
		"prev_holder":     prev.Holder,
		"prev_expires_at": prev.ExpiresAt,
	})
	return q.ExecCASRelease()
}

// Renew implements Store.
func (s *CQLStore) Renew(ctx context.Context, resource string, holder uuid.UUID, expiresAt time.Time) (bool, error) {
	b := table.Lock.UpdateBuilder("expires_at").If(qb.Eq("holder"))
	q := s.cas(ctx, b.Query(s.session)).BindMap(qb.M{
		"resource":   resource,
		"holder":     holder,
		"expires_at": expiresAt,
	})
	return q.ExecCASRelease()
}

// Delete implements Store.
func (s *CQLStore) Delete(ctx context.Context, resource string, holder uuid.UUID) (bool, error) {
	b := table.Lock.DeleteBuilder().If(qb.Eq("holder"))
	q := s.cas(ctx, b.Query(s.session)).BindMap(qb.M{
		"resource": resource,
		"holder":   holder,
	})
	return q.ExecCASRelease()
}

// PutPriority implements Store.
func (s *CQLStore) PutPriority(ctx context.Context, resource string, holder uuid.UUID, priority int, ttl time.Duration) error {
	q := table.LockPriority.InsertBuilder().TTL(ttl).Query(s.session).WithContext(ctx).BindMap(qb.M{
		"resource": resource,
		"holder":   holder,
		"priority": priority,
	})
	return q.ExecRelease()
}

// Priorities implements Store.
func (s *CQLStore) Priorities(ctx context.Context, resource string) (map[uuid.UUID]int, error) {
	type row struct {
		Holder   uuid.UUID
		Priority int
	}

	var rows []row
	q := qb.Select(table.LockPriority.Name()).
		Columns("holder", "priority").
		Where(qb.Eq("resource")).
		Query(s.session).
		WithContext(ctx).
		Bind(resource)
	if err := q.SelectRelease(&rows); err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		out[r.Holder] = r.Priority
	}
	return out, nil
}

// DeletePriority implements Store.
func (s *CQLStore) DeletePriority(ctx context.Context, resource string, holder uuid.UUID) error {
	q := table.LockPriority.DeleteQuery(s.session).WithContext(ctx).BindMap(qb.M{
		"resource": resource,
		"holder":   holder,
	})
	return q.ExecRelease()
}
