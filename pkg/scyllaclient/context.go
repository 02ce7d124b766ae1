// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"context"
	"time"
)

// ctxt is a context key type.
type ctxt byte

// ctxt enumeration.
const (
	ctxHost ctxt = iota
	ctxCustomTimeout
)

// forceHost makes hostPool middleware use the given host instead of selecting
// one.
func forceHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, ctxHost, host)
}

func isForceHost(ctx context.Context) bool {
	_, ok := ctx.Value(ctxHost).(string)
	return ok
}

// customTimeout allows to pass a custom timeout to a single request.
func customTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, ctxCustomTimeout, d)
}

// hasCustomTimeout returns custom timeout attached to ctx.
func hasCustomTimeout(ctx context.Context) (time.Duration, bool) {
	v, ok := ctx.Value(ctxCustomTimeout).(time.Duration)
	return v, ok
}
