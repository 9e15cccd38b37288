package repository

import (
	"context"
	"sort"

	"hotelchat/internal/embedding"
	"hotelchat/internal/model"
)

// Catalog is the persistent set of room listings.
//
// Writes are all-or-nothing: either every room in a call is stored or none
// is. Every write carries the CatalogMeta of the embedder that produced its
// vectors and is refused with ECONFLICT when it disagrees with the stored one,
// so one catalog never mixes vectors from different models.
type Catalog interface {
	// KnownLocations returns the distinct locations, sorted.
	KnownLocations(ctx context.Context) ([]string, error)
	// SearchSimilar returns up to q.K rooms passing the filters, nearest first,
	// ties broken by ascending id. Distance is set on every result.
	SearchSimilar(ctx context.Context, q Query) ([]model.RoomListing, error)
	// InsertRooms stores new rooms and returns their ids in input order.
	InsertRooms(ctx context.Context, meta model.CatalogMeta, rooms []model.RoomListing) ([]int64, error)
	// ListRooms returns every room ordered by id.
	ListRooms(ctx context.Context) ([]model.RoomListing, error)
	// ReplaceEmbeddings swaps every room's vector and the catalog meta at once.
	// vecs must cover every stored room.
	ReplaceEmbeddings(ctx context.Context, meta model.CatalogMeta, vecs map[int64][]float32) error
	// CatalogMeta returns nil for a catalog that has never been written.
	CatalogMeta(ctx context.Context) (*model.CatalogMeta, error)
	Ping(ctx context.Context) error
	Close() error
}

// Query is a filtered nearest-neighbour lookup
type Query struct {
	Vector   []float32
	K        int
	MaxPrice *float64
	Location *string
}

// Matches reports whether r passes the location and price filters
func (q Query) Matches(r *model.RoomListing) bool {
	if q.Location != nil && r.Location != *q.Location {
		return false
	}
	if q.MaxPrice != nil && r.Price > *q.MaxPrice {
		return false
	}
	return true
}

// RankByDistance orders rooms by L2 distance to vec, ties by ascending id,
// and keeps the first k. Distance is filled in on the returned rooms.
func RankByDistance(rooms []model.RoomListing, vec []float32, k int) []model.RoomListing {
	for i := range rooms {
		rooms[i].Distance = embedding.L2Distance(rooms[i].Embedding.Slice(), vec)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Distance != rooms[j].Distance {
			return rooms[i].Distance < rooms[j].Distance
		}
		return rooms[i].ID < rooms[j].ID
	})

	if k >= 0 && len(rooms) > k {
		rooms = rooms[:k]
	}
	return rooms
}

// checkMeta enforces the single-model invariant for a write
func checkMeta(stored *model.CatalogMeta, incoming model.CatalogMeta) error {
	if stored == nil || stored.Matches(incoming) {
		return nil
	}
	return model.Errorf(model.ECONFLICT,
		"catalog was embedded with %s (dim %d), refusing vectors from %s (dim %d); re-embed the catalog first",
		stored.EmbeddingModel, stored.Dimension, incoming.EmbeddingModel, incoming.Dimension)
}

// checkCoverage verifies a re-embedding covers exactly the stored rooms
func checkCoverage(ids []int64, vecs map[int64][]float32, dim int) error {
	if len(ids) != len(vecs) {
		return model.Errorf(model.ECONFLICT, "re-embedding covers %d rooms, catalog has %d", len(vecs), len(ids))
	}
	for _, id := range ids {
		v, ok := vecs[id]
		if !ok {
			return model.Errorf(model.ECONFLICT, "re-embedding is missing room %d", id)
		}
		if len(v) != dim {
			return model.Errorf(model.EINVALID, "room %d vector has dimension %d, want %d", id, len(v), dim)
		}
	}
	return nil
}
