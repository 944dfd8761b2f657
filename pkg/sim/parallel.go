package sim

import (
	"context"
	"testing"

	"github.com/outofforest/parallel"
	"github.com/stretchr/testify/require"
)

// NewParallel returns new parallel group to be used in tests.
// The group is stopped when test finishes and tasks must not fail until then.
func NewParallel(ctx context.Context, t *testing.T) *parallel.Group {
	group := parallel.NewGroup(ctx)
	t.Cleanup(func() {
		group.Exit(nil)
		require.NoError(t, group.Wait())
	})
	return group
}

// Go runs the task in the background and returns channel receiving its result.
func Go(ctx context.Context, task parallel.Task) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- task(ctx)
	}()
	return errCh
}
