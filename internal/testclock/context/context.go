package context

import (
	"context"
	"time"
)

type key string

var simulatedTimeKey key = "simulated_time"

// WithSimulatedTime returns a context whose clock reads t instead of wall time.
func WithSimulatedTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey, t)
}

// FromContext returns the simulated time carried by the context, if any.
func FromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(simulatedTimeKey).(time.Time)
	return t, ok
}
