package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
)

// DeterministicEmbedder avoids network calls by hashing words into a
// fixed-size bag-of-words vector. Texts sharing vocabulary land close
// together, which keeps similarity scores meaningful in local runs.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &DeterministicEmbedder{dim: dim}
}

// Model encodes the dimension so vectors of different sizes never mix.
func (e *DeterministicEmbedder) Model() string {
	return fmt.Sprintf("deterministic-%d", e.dim)
}

// Embed converts each text into a pseudo-random vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	model := e.Model()
	vectors := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		values := make([]float32, e.dim)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
			hash := fnv.New64a()
			_, _ = hash.Write([]byte(word))
			seed := hash.Sum64()
			values[seed%uint64(e.dim)] += 1
			seed = seed*1099511628211 + 1469598103934665603
			values[seed%uint64(e.dim)] += 0.5
		}
		vectors[i] = embedding.Vector{Model: model, Values: values}
	}
	return vectors, nil
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

var _ embedding.Provider = (*DeterministicEmbedder)(nil)
