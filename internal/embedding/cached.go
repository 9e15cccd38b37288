package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"hotelchat/internal/cache"
)

// Cached memoizes single-text embeddings in Redis. Batch calls go straight
// to the wrapped embedder since ingestion text is rarely repeated.
type Cached struct {
	Embedder
	cache *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// WithCache wraps e so repeated queries skip the model call.
// Cache failures are logged and never fail the embed.
func WithCache(e Embedder, c *cache.Cache, ttl time.Duration, l zerolog.Logger) *Cached {
	return &Cached{Embedder: e, cache: c, ttl: ttl, log: l}
}

func (c *Cached) key(text string) string {
	return fmt.Sprintf("emb:%s:%d:%016x", c.Model(), c.Dimension(), xxhash.Sum64String(text))
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	var vec []float32
	ok, err := c.cache.Get(ctx, key, &vec)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("embedding cache read failed")
	} else if ok && Validate(vec, c.Dimension()) == nil {
		return vec, nil
	}

	vec, err = c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("embedding cache write failed")
	}
	return vec, nil
}
