// Copyright (C) 2017 ScyllaDB

package schedule

import (
	"context"
	"time"
)

func (m *Manager) Tick(ctx context.Context) {
	m.tick(ctx)
}

func (m *Manager) SetNow(now func() time.Time) {
	m.now = now
}
