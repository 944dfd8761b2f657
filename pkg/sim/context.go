package sim

import (
	"context"
	"testing"

	"github.com/outofforest/logger"
	"go.uber.org/zap/zaptest"
)

// NewContext returns new context for simulations in tests. Logs go to the test output.
func NewContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), zaptest.NewLogger(t)))
	t.Cleanup(cancel)

	return ctx
}
