// Copyright (C) 2017 ScyllaDB

package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"go.uber.org/multierr"
)

// Factory acquires cluster wide locks on behalf of a single holder.
// Mutual exclusion is provided by conditional writes to a Store, held locks
// are renewed in the background until released.
type Factory struct {
	config   Config
	store    Store
	holder   uuid.UUID
	logger   log.Logger
	listener Listener
	failures *ccache.Cache
	now      func() time.Time

	mu     sync.Mutex
	locks  map[string]*Lock
	closed bool
}

// NewFactory returns a factory acquiring locks as holder.
func NewFactory(config Config, store Store, holder uuid.UUID, logger log.Logger) (*Factory, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if store == nil {
		return nil, errors.New("missing store")
	}
	if holder == uuid.Nil {
		return nil, errors.New("missing holder")
	}

	return &Factory{
		config:   config,
		store:    store,
		holder:   holder,
		logger:   logger,
		listener: NopListener,
		failures: ccache.New(ccache.Configure().MaxSize(10000)),
		now:      timeutc.Now,
		locks:    make(map[string]*Lock),
	}, nil
}

// SetListener sets the listener, it must be called before the first lock
// attempt.
func (f *Factory) SetListener(l Listener) {
	f.listener = l
}

// Holder returns identity of the lock holder.
func (f *Factory) Holder() uuid.UUID {
	return f.holder
}

// TryLock makes a single attempt to acquire the resource.
// It returns ErrLockUnavailable if the resource is held by someone else, or
// a holder with a higher priority announced it waits for it.
func (f *Factory) TryLock(ctx context.Context, resource string, priority int, metadata map[string]string) (*Lock, error) {
	l, err := f.tryLock(ctx, resource, priority, metadata)
	if err != nil {
		f.listener.OnLockFailed(resource, err)
		return nil, err
	}
	f.listener.OnLockAcquired(resource)
	return l, nil
}

func (f *Factory) tryLock(ctx context.Context, resource string, priority int, metadata map[string]string) (*Lock, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	_, held := f.locks[resource]
	f.mu.Unlock()
	if held {
		return nil, errors.Wrapf(ErrLockUnavailable, "resource %s held by this process", resource)
	}

	if item := f.failures.Get(resource); item != nil && !item.Expired() {
		return nil, item.Value().(error)
	}

	r, err := f.acquire(ctx, resource, priority, metadata)
	if err != nil {
		if errors.Is(err, ErrLockUnavailable) && f.config.FailureCacheExpiry > 0 {
			f.failures.Set(resource, err, f.config.FailureCacheExpiry)
		}
		return nil, err
	}

	l := newLock(f, r)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		l.Release(ctx) // nolint: errcheck
		return nil, ErrClosed
	}
	f.locks[resource] = l
	f.mu.Unlock()

	l.startRenewal()
	return l, nil
}

func (f *Factory) acquire(ctx context.Context, resource string, priority int, metadata map[string]string) (Record, error) {
	if err := f.store.PutPriority(ctx, resource, f.holder, priority, f.config.LockTime); err != nil {
		return Record{}, errors.Wrapf(err, "put priority of %s", resource)
	}
	prios, err := f.store.Priorities(ctx, resource)
	if err != nil {
		return Record{}, errors.Wrapf(err, "get priorities of %s", resource)
	}
	for h, p := range prios {
		if h != f.holder && p > priority {
			return Record{}, errors.Wrapf(ErrLockUnavailable, "resource %s awaited by %s with priority %d > %d", resource, h, p, priority)
		}
	}

	now := f.now()
	r := Record{
		Resource:   resource,
		Holder:     f.holder,
		Priority:   priority,
		AcquiredAt: timeutc.CQL(now),
		ExpiresAt:  timeutc.CQL(now.Add(f.config.LockTime)),
		Metadata:   metadata,
	}

	applied, existing, err := f.store.Insert(ctx, r)
	if err != nil {
		return Record{}, errors.Wrapf(err, "insert lock %s", resource)
	}
	if !applied && existing.Expired(now) {
		applied, err = f.store.Replace(ctx, existing, r)
		if err != nil {
			return Record{}, errors.Wrapf(err, "replace lock %s", resource)
		}
		if applied {
			f.logger.Info(ctx, "Reclaimed expired lock",
				"resource", resource,
				"previous_holder", existing.Holder,
				"expired_at", existing.ExpiresAt,
			)
		}
	}
	if !applied {
		return Record{}, errors.Wrapf(ErrLockUnavailable, "resource %s held by %s until %s", resource, existing.Holder, existing.ExpiresAt)
	}

	if err := f.store.DeletePriority(ctx, resource, f.holder); err != nil {
		f.logger.Info(ctx, "Failed to remove lock priority", "resource", resource, "error", err)
	}
	return r, nil
}

// TryLockAll acquires all resources or none, resources are acquired in
// sorted order.
func (f *Factory) TryLockAll(ctx context.Context, resources []string, priority int, metadata map[string]string) (*MultiLock, error) {
	sorted := make([]string, 0, len(resources))
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		sorted = append(sorted, r)
	}
	sort.Strings(sorted)

	locks := make([]*Lock, 0, len(sorted))
	for _, r := range sorted {
		l, err := f.TryLock(ctx, r, priority, metadata)
		if err != nil {
			for _, h := range locks {
				if rerr := h.Release(ctx); rerr != nil {
					f.logger.Info(ctx, "Failed to release lock", "resource", h.Resource(), "error", rerr)
				}
			}
			return nil, err
		}
		locks = append(locks, l)
	}
	return newMultiLock(locks), nil
}

// Close releases all locks held by this factory.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	locks := make([]*Lock, 0, len(f.locks))
	for _, l := range f.locks {
		locks = append(locks, l)
	}
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), f.config.LockUpdateTime)
	defer cancel()

	var err error
	for _, l := range locks {
		err = multierr.Append(err, l.Release(ctx))
	}
	f.failures.Stop()
	return err
}

func (f *Factory) forget(l *Lock) {
	f.mu.Lock()
	if f.locks[l.resource] == l {
		delete(f.locks, l.resource)
	}
	f.mu.Unlock()
	f.failures.Delete(l.resource)
}
