// Package embedding turns free text into fixed-length vectors.
//
// Every backend is deterministic for a given model and safe for concurrent
// use. Vectors from different models must never be compared; Model and
// Dimension identify what produced a vector so stores can refuse to mix them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Embedder maps text to vectors of a fixed dimension
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

var (
	// ErrEmbedding matches every *Error via errors.Is
	ErrEmbedding = errors.New("embedding error")

	ErrInvalidInput      = errors.New("invalid input text")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrModelMismatch     = errors.New("embedding model mismatch")
	ErrUnavailable       = errors.New("embedding backend unavailable")
)

// Error is returned for every failure to produce a vector.
// Callers never retry on it; the embedder owns its own transport.
type Error struct {
	Op    string
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("embedding %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("embedding %s failed (%s): %v", e.Op, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrEmbedding }

// NewError wraps err as an embedding failure of op under model
func NewError(op, model string, err error) *Error {
	return &Error{Op: op, Model: model, Err: err}
}

// checkInputs rejects texts no backend can embed meaningfully
func checkInputs(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: text %d is empty", ErrInvalidInput, i)
		}
		if !utf8.ValidString(t) {
			return fmt.Errorf("%w: text %d is not valid UTF-8", ErrInvalidInput, i)
		}
	}
	return nil
}

// Validate checks that vec has the expected dimension and only finite components
func Validate(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}

// L2Distance returns the Euclidean distance between a and b.
// Vectors of different length are infinitely far apart.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / n)
	}
}
