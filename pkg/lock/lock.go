// Copyright (C) 2017 ScyllaDB

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/retry"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
	"go.uber.org/multierr"
)

// Lock is a held lock, it is renewed in the background until released or
// lost. Done is closed when the lock is no longer held.
type Lock struct {
	factory  *Factory
	resource string

	mu     sync.Mutex
	record Record
	err    error

	ctx         context.Context // nolint: containedctx
	cancel      context.CancelFunc
	renewDone   chan struct{}
	done        chan struct{}
	doneOnce    sync.Once
	releaseOnce sync.Once
	releaseErr  error
}

func newLock(f *Factory, r Record) *Lock {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lock{
		factory:  f,
		resource: r.Resource,
		record:   r,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Resource returns the locked resource.
func (l *Lock) Resource() string {
	return l.resource
}

// ExpiresAt returns the current lock deadline.
func (l *Lock) ExpiresAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record.ExpiresAt
}

// Done returns a channel that is closed when the lock is released or lost.
func (l *Lock) Done() <-chan struct{} {
	return l.done
}

// Err returns ErrLockLost if the lock could not be renewed.
func (l *Lock) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Lock) startRenewal() {
	l.renewDone = make(chan struct{})
	go l.renewLoop()
}

func (l *Lock) renewLoop() {
	defer close(l.renewDone)

	t := time.NewTicker(l.factory.config.LockUpdateTime)
	defer t.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-t.C:
		}

		if err := l.renew(); err != nil {
			if l.ctx.Err() != nil {
				return
			}
			l.lost(err)
			return
		}
	}
}

func (l *Lock) renew() error {
	f := l.factory
	deadline := l.ExpiresAt()

	b := retry.NewExponentialBackoff(
		f.config.LockUpdateTime/10,
		0,
		f.config.LockUpdateTime,
		2,
		0.1,
	)
	op := func() error {
		now := f.now()
		if !deadline.After(now) {
			return retry.Permanent(errors.Errorf("lock expired at %s before renewal", deadline))
		}
		expiresAt := timeutc.CQL(now.Add(f.config.LockTime))
		applied, err := f.store.Renew(l.ctx, l.resource, f.holder, expiresAt)
		if err != nil {
			return err
		}
		if !applied {
			return retry.Permanent(errors.New("lock taken over"))
		}
		l.mu.Lock()
		l.record.ExpiresAt = expiresAt
		l.mu.Unlock()
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Info(l.ctx, "Lock renewal failed, retrying", "resource", l.resource, "wait", wait, "error", err)
	}
	return retry.WithNotify(l.ctx, op, b, notify)
}

func (l *Lock) lost(cause error) {
	f := l.factory
	f.logger.Error(l.ctx, "Lock lost", "resource", l.resource, "error", cause)

	l.mu.Lock()
	l.err = errors.Wrapf(ErrLockLost, "%s: %s", l.resource, cause)
	l.mu.Unlock()

	f.forget(l)
	l.closeDone()
	f.listener.OnLockLost(l.resource)
}

func (l *Lock) closeDone() {
	l.doneOnce.Do(func() {
		close(l.done)
	})
}

// Release stops renewal and removes the lock record, it is safe to call it
// many times.
func (l *Lock) Release(ctx context.Context) error {
	l.releaseOnce.Do(func() {
		l.cancel()
		if l.renewDone != nil {
			<-l.renewDone
		}

		f := l.factory
		if l.Err() == nil {
			if _, err := f.store.Delete(ctx, l.resource, f.holder); err != nil {
				l.releaseErr = errors.Wrapf(err, "delete lock %s", l.resource)
			}
			f.listener.OnLockReleased(l.resource)
		}
		f.forget(l)
		l.closeDone()
	})
	return l.releaseErr
}

// MultiLock is a set of locks acquired together.
type MultiLock struct {
	locks []*Lock
	done  chan struct{}
	once  sync.Once
}

func newMultiLock(locks []*Lock) *MultiLock {
	m := &MultiLock{
		locks: locks,
		done:  make(chan struct{}),
	}
	for _, l := range locks {
		go func(l *Lock) {
			<-l.Done()
			m.once.Do(func() { close(m.done) })
		}(l)
	}
	return m
}

// Resources returns the locked resources in acquisition order.
func (m *MultiLock) Resources() []string {
	out := make([]string, len(m.locks))
	for i, l := range m.locks {
		out[i] = l.Resource()
	}
	return out
}

// Done returns a channel that is closed when any of the locks is released
// or lost.
func (m *MultiLock) Done() <-chan struct{} {
	return m.done
}

// Err returns the first ErrLockLost reported by the locks.
func (m *MultiLock) Err() error {
	for _, l := range m.locks {
		if err := l.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Release releases all the locks.
func (m *MultiLock) Release(ctx context.Context) error {
	var err error
	for _, l := range m.locks {
		err = multierr.Append(err, l.Release(ctx))
	}
	return err
}
