// Package rng provides the deterministic random streams used by resampling.
package rng

import (
	"context"
	"math/rand"
)

// SeededAdapter implements ports.RNGPort with math/rand sources derived from
// a base seed.
type SeededAdapter struct{}

func NewSeededAdapter() *SeededAdapter { return &SeededAdapter{} }

// Stream creates the stream for work item index of stageName.
func (r *SeededAdapter) Stream(ctx context.Context, stageName string, index int, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(DeriveSeed(baseSeed, stageName, uint64(index)+1))), nil
}

// DeriveSeed mixes a base seed, a stage name and an index into one seed.
// Neighbouring indices give unrelated streams.
func DeriveSeed(baseSeed int64, stageName string, index uint64) int64 {
	h := splitmix64(uint64(baseSeed))
	h = splitmix64(h ^ uint64(hashString(stageName)))
	h = splitmix64(h ^ index)
	return int64(h &^ (1 << 63))
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
