package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, offline embedding provider. Each token is
// hashed into a fixed-dimension bag-of-words vector which is then normalized
// to unit length. Articles sharing most of their wording land close together
// under cosine similarity, which is enough for duplicate detection when the
// remote embedding model is unavailable or unconfigured.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder creates a hashing embedder with the given dimensionality.
// Dimensions below 16 are raised to the default of 256.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim < 16 {
		dim = 256
	}
	return &HashEmbedder{Dim: dim}
}

// Embed produces the hashed bag-of-words vector. It never fails: the empty
// string embeds to a valid (zero-free after smoothing) vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.Dim)

	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vec[int(hasher.Sum32())%h.Dim]++
	}

	// Smooth so that even empty text yields a usable unit vector.
	vec[0] += 1e-3

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
