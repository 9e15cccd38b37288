package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"hotelchat/internal/model"
)

// MemoryRepository keeps the catalog in process memory
type MemoryRepository struct {
	mu     sync.RWMutex
	rooms  []model.RoomListing
	nextID int64
	meta   *model.CatalogMeta
}

var _ Catalog = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (r *MemoryRepository) KnownLocations(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	locs := []string{}
	for _, room := range r.rooms {
		if !seen[room.Location] {
			seen[room.Location] = true
			locs = append(locs, room.Location)
		}
	}
	sort.Strings(locs)
	return locs, nil
}

func (r *MemoryRepository) SearchSimilar(ctx context.Context, q Query) ([]model.RoomListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]model.RoomListing, 0, len(r.rooms))
	for i := range r.rooms {
		if q.Matches(&r.rooms[i]) {
			matched = append(matched, r.rooms[i])
		}
	}
	r.mu.RUnlock()

	return RankByDistance(matched, q.Vector, q.K), nil
}

func (r *MemoryRepository) InsertRooms(ctx context.Context, meta model.CatalogMeta, rooms []model.RoomListing) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkMeta(r.meta, meta); err != nil {
		return nil, err
	}
	for i := range rooms {
		if len(rooms[i].Embedding.Slice()) != meta.Dimension {
			return nil, model.Errorf(model.EINVALID, "room %d vector has dimension %d, want %d", i, len(rooms[i].Embedding.Slice()), meta.Dimension)
		}
	}

	now := time.Now().UTC()
	ids := make([]int64, len(rooms))
	for i, room := range rooms {
		room.ID = r.nextID
		room.EmbeddingModel = meta.EmbeddingModel
		room.CreatedAt, room.UpdatedAt = now, now
		room.Distance = 0
		r.nextID++
		r.rooms = append(r.rooms, room)
		ids[i] = room.ID
	}
	if r.meta == nil && len(rooms) > 0 {
		m := meta
		r.meta = &m
	}
	return ids, nil
}

func (r *MemoryRepository) ListRooms(ctx context.Context) ([]model.RoomListing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RoomListing, len(r.rooms))
	copy(out, r.rooms)
	return out, nil
}

func (r *MemoryRepository) ReplaceEmbeddings(ctx context.Context, meta model.CatalogMeta, vecs map[int64][]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, len(r.rooms))
	for i, room := range r.rooms {
		ids[i] = room.ID
	}
	if err := checkCoverage(ids, vecs, meta.Dimension); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range r.rooms {
		r.rooms[i].Embedding = pgvector.NewVector(vecs[r.rooms[i].ID])
		r.rooms[i].EmbeddingModel = meta.EmbeddingModel
		r.rooms[i].UpdatedAt = now
	}
	m := meta
	r.meta = &m
	return nil
}

func (r *MemoryRepository) CatalogMeta(ctx context.Context) (*model.CatalogMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.meta == nil {
		return nil, nil
	}
	m := *r.meta
	return &m, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
