// Package embedding defines the version-tagged vector contract shared by the
// knowledge bank and the evaluation engine.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelMismatch is returned when two vectors come from different models.
var ErrModelMismatch = errors.New("embedding models differ")

// ErrDimensionMismatch is returned when two same-model vectors differ in length.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Vector is an embedding tagged with the model that produced it.
type Vector struct {
	Model  string    `json:"model"`
	Values []float32 `json:"values"`
}

// IsZero reports whether the vector carries no values.
func (v Vector) IsZero() bool {
	return len(v.Values) == 0
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	return Vector{Model: v.Model, Values: append([]float32(nil), v.Values...)}
}

// Provider turns text into model tagged vectors.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
	Model() string
}

// Compatible reports whether a and b can be compared.
func Compatible(a, b Vector) error {
	if a.Model != b.Model {
		return fmt.Errorf("%w: %q vs %q", ErrModelMismatch, a.Model, b.Model)
	}
	if len(a.Values) != len(b.Values) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a.Values), len(b.Values))
	}
	return nil
}

// Cosine returns the cosine similarity of two compatible vectors. Zero vectors
// yield 0.
func Cosine(a, b Vector) (float64, error) {
	if err := Compatible(a, b); err != nil {
		return 0, err
	}
	var dot, normA, normB float64
	for i := range a.Values {
		x := float64(a.Values[i])
		y := float64(b.Values[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, p Provider, text string) (Vector, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return Vector{}, err
	}
	if len(out) == 0 {
		return Vector{}, errors.New("no embedding returned")
	}
	return out[0], nil
}
