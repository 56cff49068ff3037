package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates the stream for one indexed unit of work within a stage.
	// The stream depends only on stage, index and baseSeed, so work can be
	// scheduled in any order without changing results.
	Stream(ctx context.Context, stageName string, index int, baseSeed int64) (*rand.Rand, error)
}
