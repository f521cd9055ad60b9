package perftracker

import (
	"context"
	"time"
)

// Measure times a database operation and records the sample whether it
// succeeds or fails. This is the explicit decorator callers wrap around each
// query; the tracker never hooks into the driver itself.
func (t *Tracker) Measure(ctx context.Context, operation, collection string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	t.TrackQuery(Query{
		Operation:  operation,
		Collection: collection,
		Duration:   time.Since(start),
		Err:        err,
	})
	return err
}

// MeasureResult is the value-returning variant of Measure.
func MeasureResult[T any](ctx context.Context, t *Tracker, operation, collection string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(ctx)
	t.TrackQuery(Query{
		Operation:  operation,
		Collection: collection,
		Duration:   time.Since(start),
		Err:        err,
	})
	return result, err
}
