package core

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, for display.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// ComputeSeriesHash fingerprints year/value pairs independent of map order.
// Values are encoded by their IEEE-754 bits so the hash is exact.
func ComputeSeriesHash(name string, values map[int]float64) Hash {
	years := make([]int, 0, len(values))
	for y := range values {
		years = append(years, y)
	}
	sort.Ints(years)

	var data strings.Builder
	data.WriteString(name)
	for _, y := range years {
		data.WriteByte('|')
		data.WriteString(strconv.Itoa(y))
		data.WriteByte(':')
		data.WriteString(strconv.FormatUint(math.Float64bits(values[y]), 16))
	}
	return NewHash([]byte(data.String()))
}

// CombineHashes folds several hashes into one, order-sensitive.
func CombineHashes(hashes ...Hash) Hash {
	var data strings.Builder
	for _, h := range hashes {
		data.WriteString(string(h))
		data.WriteByte(';')
	}
	return NewHash([]byte(data.String()))
}
