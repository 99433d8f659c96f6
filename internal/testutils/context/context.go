package context

import (
	"context"
	"testing"
	"time"
)

// ForTest returns a context canceled when t ends.
//
// When the test has a deadline, the context expires a little before it,
// so a loop blocking on the context fails the test instead of hanging it.
func ForTest(t *testing.T) context.Context {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := t.Deadline(); ok {
		ctx, cancel = context.WithDeadline(context.Background(), deadline.Add(-time.Second))
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	t.Cleanup(cancel)
	return ctx
}
