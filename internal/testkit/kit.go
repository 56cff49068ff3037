package testkit

import (
	"lakeattr/adapters/rng"
	"lakeattr/internal/observability"
	"lakeattr/ports"

	"go.uber.org/zap"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rng     *rng.SeededAdapter
	metrics *observability.Metrics
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{
		rng:     rng.NewSeededAdapter(),
		metrics: observability.NewMetricsForTesting(),
	}
}

// RNGAdapter returns the deterministic RNG adapter used in production.
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// Metrics returns a metrics set on its own registry.
func (t *TestKit) Metrics() *observability.Metrics {
	return t.metrics
}

// Logger returns a logger that discards output.
func (t *TestKit) Logger() *zap.Logger {
	return zap.NewNop()
}
