package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/embedding"
	"hotelchat/internal/model"
	"hotelchat/internal/repository"
	"hotelchat/internal/seed"
)

var errDown = errors.New("connection refused")

func ptr[T any](v T) *T { return &v }

// seededCatalog loads the demo rooms with the hash embedder
func seededCatalog(t *testing.T) (*repository.MemoryRepository, embedding.Embedder) {
	t.Helper()
	rooms, err := seed.Rooms()
	require.NoError(t, err)

	e := embedding.NewHashEmbedder(256)
	c := repository.NewMemoryRepository()
	_, err = NewCatalogLoader(e, c, 4, zerolog.Nop()).Load(context.Background(), rooms)
	require.NoError(t, err)
	return c, e
}

func newTool(c repository.Catalog, e embedding.Embedder) *RoomSearchTool {
	return NewRoomSearchTool(NewRanker(e, c, 5, zerolog.Nop()), c, zerolog.Nop())
}

// brokenCatalog fails every read
type brokenCatalog struct {
	repository.Catalog
}

func (brokenCatalog) KnownLocations(context.Context) ([]string, error) { return nil, errDown }

func (brokenCatalog) CatalogMeta(context.Context) (*model.CatalogMeta, error) { return nil, errDown }

func (brokenCatalog) SearchSimilar(context.Context, repository.Query) ([]model.RoomListing, error) {
	return nil, errDown
}

// failingSearch has readable meta but a failing similarity query
type failingSearch struct {
	*repository.MemoryRepository
}

func (failingSearch) SearchSimilar(context.Context, repository.Query) ([]model.RoomListing, error) {
	return nil, errDown
}

// stubEmbedder returns a fixed error or panics
type stubEmbedder struct {
	embedding.Embedder
	err   error
	panic string
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.panic != "" {
		panic(s.panic)
	}
	return nil, s.err
}
