// Copyright (C) 2017 ScyllaDB

package lock

// Listener is notified about lock state changes.
type Listener interface {
	OnLockAcquired(resource string)
	OnLockFailed(resource string, err error)
	OnLockLost(resource string)
	OnLockReleased(resource string)
}

type nopListener struct{}

func (nopListener) OnLockAcquired(string)      {}
func (nopListener) OnLockFailed(string, error) {}
func (nopListener) OnLockLost(string)          {}
func (nopListener) OnLockReleased(string)      {}

// NopListener ignores all events.
var NopListener Listener = nopListener{}
