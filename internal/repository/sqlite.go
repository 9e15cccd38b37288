package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pgvector/pgvector-go"

	"hotelchat/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	description     TEXT NOT NULL,
	price           REAL NOT NULL,
	location        TEXT NOT NULL,
	amenities       TEXT NOT NULL DEFAULT '[]',
	beds            INTEGER NOT NULL DEFAULT 1,
	max_guests      INTEGER NOT NULL DEFAULT 2,
	room_type       TEXT NOT NULL DEFAULT 'standard',
	has_kitchen     INTEGER NOT NULL DEFAULT 0,
	available_from  TEXT,
	available_to    TEXT,
	embedding       TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS rooms_location_idx ON rooms (location);

CREATE TABLE IF NOT EXISTS catalog_meta (
	singleton       INTEGER PRIMARY KEY CHECK (singleton = 1),
	embedding_model TEXT NOT NULL,
	dimension       INTEGER NOT NULL
);`

// timestamps are stored as RFC 3339 text and parsed on the way out
const sqliteRoomColumns = `
	id, description, price, location, amenities, beds, max_guests, room_type,
	has_kitchen, available_from, available_to, embedding, embedding_model,
	created_at AS created_at_text, updated_at AS updated_at_text`

// SQLiteRepository stores the catalog in a single SQLite file. Filters run in
// SQL and distance ranking runs in process.
type SQLiteRepository struct {
	db   *sqlx.DB
	path string
}

var _ Catalog = (*SQLiteRepository)(nil)

type sqliteRoom struct {
	model.RoomListing
	CreatedAtText string `db:"created_at_text"`
	UpdatedAtText string `db:"updated_at_text"`
}

func (r sqliteRoom) listing() model.RoomListing {
	l := r.RoomListing
	l.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAtText)
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAtText)
	return l
}

// NewSQLiteRepository opens (creating if needed) the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRepository{db: db, path: path}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *SQLiteRepository) KnownLocations(ctx context.Context) ([]string, error) {
	locs := []string{}
	if err := r.db.SelectContext(ctx, &locs, `SELECT DISTINCT location FROM rooms ORDER BY location`); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locs, nil
}

func (r *SQLiteRepository) SearchSimilar(ctx context.Context, q Query) ([]model.RoomListing, error) {
	var rows []sqliteRoom
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteRoomColumns+`
		FROM rooms
		WHERE (?1 IS NULL OR location = ?1)
			AND (?2 IS NULL OR price <= ?2)
		ORDER BY id`, q.Location, q.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to search rooms: %w", err)
	}

	rooms := make([]model.RoomListing, len(rows))
	for i, row := range rows {
		rooms[i] = row.listing()
	}
	return RankByDistance(rooms, q.Vector, q.K), nil
}

func (r *SQLiteRepository) InsertRooms(ctx context.Context, meta model.CatalogMeta, rooms []model.RoomListing) ([]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := sqliteMeta(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := checkMeta(stored, meta); err != nil {
		return nil, err
	}
	if stored == nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_meta (singleton, embedding_model, dimension) VALUES (1, ?, ?)`,
			meta.EmbeddingModel, meta.Dimension); err != nil {
			return nil, fmt.Errorf("failed to record catalog meta: %w", err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO rooms (
			description, price, location, amenities, beds, max_guests, room_type,
			has_kitchen, available_from, available_to, embedding, embedding_model,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]int64, len(rooms))
	for i, room := range rooms {
		if n := len(room.Embedding.Slice()); n != meta.Dimension {
			return nil, model.Errorf(model.EINVALID, "room %d vector has dimension %d, want %d", i, n, meta.Dimension)
		}
		res, err := stmt.ExecContext(ctx,
			room.Description, room.Price, room.Location, room.Amenities, room.Beds, room.MaxGuests,
			room.RoomType, room.HasKitchen, room.AvailableFrom, room.AvailableTo, room.Embedding,
			meta.EmbeddingModel, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert room %d: %w", i, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read id of room %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]model.RoomListing, error) {
	var rows []sqliteRoom
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+sqliteRoomColumns+` FROM rooms ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms := make([]model.RoomListing, len(rows))
	for i, row := range rows {
		rooms[i] = row.listing()
	}
	return rooms, nil
}

func (r *SQLiteRepository) ReplaceEmbeddings(ctx context.Context, meta model.CatalogMeta, vecs map[int64][]float32) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM rooms ORDER BY id`); err != nil {
		return fmt.Errorf("failed to list room ids: %w", err)
	}
	if err := checkCoverage(ids, vecs, meta.Dimension); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `UPDATE rooms SET embedding = ?, embedding_model = ?, updated_at = ? WHERE id = ?`,
			pgvector.NewVector(vecs[id]), meta.EmbeddingModel, now, id)
		if err != nil {
			return fmt.Errorf("failed to update room %d: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (singleton, embedding_model, dimension) VALUES (1, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET embedding_model = excluded.embedding_model, dimension = excluded.dimension`,
		meta.EmbeddingModel, meta.Dimension)
	if err != nil {
		return fmt.Errorf("failed to update catalog meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CatalogMeta(ctx context.Context) (*model.CatalogMeta, error) {
	return sqliteMeta(ctx, r.db)
}

func sqliteMeta(ctx context.Context, q sqlx.QueryerContext) (*model.CatalogMeta, error) {
	var meta model.CatalogMeta
	err := sqlx.GetContext(ctx, q, &meta, `SELECT embedding_model, dimension FROM catalog_meta WHERE singleton = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	return &meta, nil
}
