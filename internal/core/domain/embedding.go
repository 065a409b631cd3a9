package domain

import (
	"math"
	"time"
)

// VectorScale is the rounding scale applied to every stored or compared
// embedding component (6 decimal places).
const VectorScale = 1e6

// EmbeddingRecord is a cached embedding vector.
// Records are keyed by (BodySHA, Model) and shared by every review whose
// normalised body hashes to the same value.
type EmbeddingRecord struct {
	BodySHA   string
	Model     string
	Vector    []float64
	CreatedAt time.Time
}

// Dimensions returns the vector length.
func (r EmbeddingRecord) Dimensions() int {
	return len(r.Vector)
}

// Round6 rounds v to 6 decimal places. Negative zero collapses to zero so
// that serialised vectors hash identically.
func Round6(v float64) float64 {
	r := math.Round(v*VectorScale) / VectorScale
	if r == 0 {
		return 0
	}
	return r
}

// RoundVector returns a copy of vec rounded to 6 decimal places.
func RoundVector(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = Round6(v)
	}
	return out
}
