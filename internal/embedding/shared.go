package embedding

import (
	"context"
	"fmt"
	"sync"

	"hotelchat/internal/config"
)

// Loader produces an Embedder at most once. Concurrent first callers block
// on a single load and all observe its result, including a failed one.
type Loader struct {
	load func(ctx context.Context) (Embedder, error)

	once sync.Once
	e    Embedder
	err  error
}

func NewLoader(load func(ctx context.Context) (Embedder, error)) *Loader {
	return &Loader{load: load}
}

// Get returns the loaded embedder, loading it on first use
func (l *Loader) Get(ctx context.Context) (Embedder, error) {
	l.once.Do(func() {
		l.e, l.err = l.load(ctx)
	})
	return l.e, l.err
}

var (
	sharedMu     sync.Mutex
	sharedLoader *Loader
)

// Shared returns the process-wide embedder. The configuration of the first
// call wins; later calls reuse the loaded model whatever cfg they pass.
func Shared(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	sharedMu.Lock()
	if sharedLoader == nil {
		sharedLoader = NewLoader(func(ctx context.Context) (Embedder, error) {
			return New(ctx, cfg)
		})
	}
	l := sharedLoader
	sharedMu.Unlock()
	return l.Get(ctx)
}

// New builds the backend named by cfg.Provider
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(ctx, cfg)
	case "gemini":
		return NewGeminiEmbedderFromKey(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.BatchSize)
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, NewError("load", cfg.Provider, fmt.Errorf("%w: unknown provider %q", ErrUnavailable, cfg.Provider))
	}
}
