package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashDimension is used when no dimension is configured for the hash backend
const DefaultHashDimension = 384

// HashEmbedder is an offline embedder based on signed feature hashing of
// word tokens and character trigrams. It needs no network and gives
// identical vectors for identical text, which makes it the backend of
// choice for local catalogs and tests. Lexical overlap stands in for
// semantic similarity.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Model() string { return "hash/v1" }

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkInputs([]string{text}); err != nil {
		return nil, NewError("embed", e.Model(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError("embed", e.Model(), err)
	}
	return e.vector(text), nil
}

func (e *HashEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkInputs(texts); err != nil {
		return nil, NewError("embed", e.Model(), err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, NewError("embed", e.Model(), err)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, tok := range tokenize(text) {
		e.add(vec, "w:"+tok, 1)
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "g:"+string(runes[i:i+3]), 0.5)
		}
	}
	normalize(vec)
	return vec
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
