package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"hotelchat/internal/embedding"
	"hotelchat/internal/model"
	"hotelchat/internal/repository"
)

// Ranker answers "which rooms read most like this query" against the catalog
type Ranker struct {
	embedder embedding.Embedder
	catalog  repository.Catalog
	defaultK int
	log      zerolog.Logger
}

// NewRanker creates a ranker. k values of zero or less fall back to defaultK.
func NewRanker(e embedding.Embedder, c repository.Catalog, defaultK int, logger zerolog.Logger) *Ranker {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Ranker{
		embedder: e,
		catalog:  c,
		defaultK: defaultK,
		log:      logger.With().Str("component", "ranker").Logger(),
	}
}

// Search embeds query and returns up to k rooms passing the filters, nearest
// first with ties broken by id. A k above the number of matches returns every
// match. An empty result is not an error.
//
// Embedding failures come back as *embedding.Error, catalog failures as
// *SearchError.
func (r *Ranker) Search(ctx context.Context, query string, k int, maxPrice *float64, location *string) ([]model.RoomListing, error) {
	if k <= 0 {
		k = r.defaultK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	meta, err := r.catalog.CatalogMeta(ctx)
	if err != nil {
		return nil, unavailable("read catalog meta", err)
	}
	if meta == nil {
		// nothing has ever been loaded
		return []model.RoomListing{}, nil
	}
	if err := r.checkMeta(*meta, vec); err != nil {
		return nil, err
	}

	rooms, err := r.catalog.SearchSimilar(ctx, repository.Query{
		Vector:   vec,
		K:        k,
		MaxPrice: maxPrice,
		Location: location,
	})
	if err != nil {
		return nil, unavailable("similarity search", err)
	}

	r.log.Debug().
		Int("k", k).
		Int("results", len(rooms)).
		Bool("location_filter", location != nil).
		Bool("price_filter", maxPrice != nil).
		Msg("ranked rooms")

	return rooms, nil
}

// checkMeta refuses to compare a query vector with a catalog built by another model
func (r *Ranker) checkMeta(meta model.CatalogMeta, vec []float32) error {
	if len(vec) != meta.Dimension {
		return embedding.NewError("search", r.embedder.Model(),
			fmt.Errorf("%w: query has %d components, catalog has %d", embedding.ErrDimensionMismatch, len(vec), meta.Dimension))
	}
	if meta.EmbeddingModel != r.embedder.Model() {
		return embedding.NewError("search", r.embedder.Model(),
			fmt.Errorf("%w: catalog was embedded with %s", embedding.ErrModelMismatch, meta.EmbeddingModel))
	}
	return nil
}
