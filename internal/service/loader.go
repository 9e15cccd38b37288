package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hotelchat/internal/embedding"
	"hotelchat/internal/model"
	"hotelchat/internal/repository"
	"hotelchat/internal/utils"
)

// Invalidator drops cached catalog-derived state after a write
type Invalidator interface {
	Invalidate()
}

// CatalogLoader embeds room descriptions and writes them to the catalog.
// Every call is all-or-nothing.
type CatalogLoader struct {
	embedder    embedding.Embedder
	catalog     repository.Catalog
	batchSize   int
	concurrency int
	invalidate  []Invalidator
	log         zerolog.Logger
}

func NewCatalogLoader(e embedding.Embedder, c repository.Catalog, batchSize int, logger zerolog.Logger, invalidate ...Invalidator) *CatalogLoader {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &CatalogLoader{
		embedder:    e,
		catalog:     c,
		batchSize:   batchSize,
		concurrency: 4,
		invalidate:  invalidate,
		log:         logger.With().Str("component", "loader").Logger(),
	}
}

// Load validates, embeds and inserts rooms, returning their ids in input
// order. A catalog built by a different embedder is refused before any
// embedding work is done.
func (l *CatalogLoader) Load(ctx context.Context, inputs []model.RoomInput) ([]int64, error) {
	if len(inputs) == 0 {
		return nil, model.Errorf(model.EINVALID, "no rooms to load")
	}

	start := time.Now()
	listings := make([]model.RoomListing, len(inputs))
	texts := make([]string, len(inputs))
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, model.Errorf(model.EINVALID, "room %d: %s", i, model.ErrorMessage(err))
		}
		listings[i] = inputs[i].Listing()
		listings[i].Amenities = utils.NormalizeAmenities(listings[i].Amenities)
		// a private kitchen listed as an amenity implies the flag
		if utils.HasAmenity(listings[i].Amenities, "kitchen") {
			listings[i].HasKitchen = true
		}
		texts[i] = listings[i].Description
	}

	meta := l.meta()
	if err := l.checkCatalog(ctx, meta); err != nil {
		return nil, err
	}
	if err := l.foldLocationCase(ctx, listings); err != nil {
		return nil, err
	}

	vecs, err := l.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Embedding = pgvector.NewVector(vecs[i])
		listings[i].EmbeddingModel = meta.EmbeddingModel
	}

	ids, err := l.catalog.InsertRooms(ctx, meta, listings)
	if err != nil {
		return nil, fmt.Errorf("failed to store rooms: %w", err)
	}
	l.changed()

	l.log.Info().
		Int("rooms", len(ids)).
		Str("model", meta.EmbeddingModel).
		Dur("took", time.Since(start)).
		Msg("loaded rooms")

	return ids, nil
}

// foldLocationCase rewrites each location to the spelling already in the
// catalog (or first seen in this batch) when they differ only by case, so an
// exact location filter finds every room of a place
func (l *CatalogLoader) foldLocationCase(ctx context.Context, listings []model.RoomListing) error {
	known, err := l.catalog.KnownLocations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list locations: %w", err)
	}
	spelling := make(map[string]string, len(known))
	for _, k := range known {
		if _, ok := spelling[strings.ToLower(k)]; !ok {
			spelling[strings.ToLower(k)] = k
		}
	}
	for i := range listings {
		key := strings.ToLower(listings[i].Location)
		if s, ok := spelling[key]; ok {
			listings[i].Location = s
		} else {
			spelling[key] = listings[i].Location
		}
	}
	return nil
}

// Reembed recomputes every vector with the current embedder and switches the
// catalog to it in one write. It returns the number of rooms re-embedded.
func (l *CatalogLoader) Reembed(ctx context.Context) (int, error) {
	start := time.Now()
	rooms, err := l.catalog.ListRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list rooms: %w", err)
	}

	meta := l.meta()
	if len(rooms) == 0 {
		return 0, nil
	}

	texts := make([]string, len(rooms))
	for i := range rooms {
		texts[i] = rooms[i].Description
	}
	vecs, err := l.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	byID := make(map[int64][]float32, len(rooms))
	for i := range rooms {
		byID[rooms[i].ID] = vecs[i]
	}
	if err := l.catalog.ReplaceEmbeddings(ctx, meta, byID); err != nil {
		return 0, fmt.Errorf("failed to replace embeddings: %w", err)
	}
	l.changed()

	l.log.Info().
		Int("rooms", len(rooms)).
		Str("model", meta.EmbeddingModel).
		Dur("took", time.Since(start)).
		Msg("re-embedded catalog")

	return len(rooms), nil
}

func (l *CatalogLoader) meta() model.CatalogMeta {
	return model.CatalogMeta{EmbeddingModel: l.embedder.Model(), Dimension: l.embedder.Dimension()}
}

// checkCatalog fails fast when the catalog was embedded by another model.
// Stores enforce the same rule inside the insert transaction.
func (l *CatalogLoader) checkCatalog(ctx context.Context, meta model.CatalogMeta) error {
	stored, err := l.catalog.CatalogMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog meta: %w", err)
	}
	if stored == nil || stored.Matches(meta) {
		return nil
	}
	sentinel := embedding.ErrModelMismatch
	if stored.Dimension != meta.Dimension {
		sentinel = embedding.ErrDimensionMismatch
	}
	return embedding.NewError("load", meta.EmbeddingModel,
		fmt.Errorf("%w: catalog holds %s (dim %d), re-embed it first", sentinel, stored.EmbeddingModel, stored.Dimension))
}

// embedAll embeds texts in batches, a few batches at a time, keeping input order
func (l *CatalogLoader) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := 0; i < len(texts); i += l.batchSize {
		start, end := i, min(i+l.batchSize, len(texts))
		g.Go(func() error {
			batch, err := l.embedder.EmbedMany(ctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return embedding.NewError("embed", l.embedder.Model(),
					fmt.Errorf("got %d vectors for %d texts", len(batch), end-start))
			}
			for j, v := range batch {
				if err := embedding.Validate(v, l.embedder.Dimension()); err != nil {
					return embedding.NewError("embed", l.embedder.Model(), err)
				}
				vecs[start+j] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (l *CatalogLoader) changed() {
	for _, inv := range l.invalidate {
		inv.Invalidate()
	}
}
