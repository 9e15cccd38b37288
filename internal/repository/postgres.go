package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"hotelchat/internal/model"
)

const roomColumns = `
	id, description, price, location, amenities, beds, max_guests, room_type,
	has_kitchen, available_from, available_to, embedding, embedding_model,
	created_at, updated_at`

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS rooms (
	id              BIGSERIAL PRIMARY KEY,
	description     TEXT NOT NULL CHECK (description <> ''),
	price           DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	location        TEXT NOT NULL CHECK (location <> ''),
	amenities       JSONB NOT NULL DEFAULT '[]',
	beds            INTEGER NOT NULL DEFAULT 1 CHECK (beds > 0),
	max_guests      INTEGER NOT NULL DEFAULT 2 CHECK (max_guests > 0),
	room_type       TEXT NOT NULL DEFAULT 'standard',
	has_kitchen     BOOLEAN NOT NULL DEFAULT FALSE,
	available_from  DATE,
	available_to    DATE,
	embedding       vector NOT NULL,
	embedding_model TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (available_from IS NULL OR available_to IS NULL OR available_from <= available_to)
);

CREATE INDEX IF NOT EXISTS rooms_location_idx ON rooms (location);
CREATE INDEX IF NOT EXISTS rooms_price_idx ON rooms (price);

CREATE TABLE IF NOT EXISTS catalog_meta (
	singleton       BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	embedding_model TEXT NOT NULL,
	dimension       INTEGER NOT NULL CHECK (dimension > 0),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// PostgresRepository stores the catalog in PostgreSQL with pgvector
type PostgresRepository struct {
	db *sqlx.DB
}

var _ Catalog = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Migrate creates the extension, tables and indexes if they are missing
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// KnownLocations returns the distinct room locations
func (r *PostgresRepository) KnownLocations(ctx context.Context) ([]string, error) {
	locs := []string{}
	if err := r.db.SelectContext(ctx, &locs, `SELECT DISTINCT location FROM rooms ORDER BY location`); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locs, nil
}

// SearchSimilar runs the filtered nearest-neighbour query in one statement
func (r *PostgresRepository) SearchSimilar(ctx context.Context, q Query) ([]model.RoomListing, error) {
	query := `
		SELECT ` + roomColumns + `,
			embedding <-> $1::vector AS distance
		FROM rooms
		WHERE ($2::text IS NULL OR location = $2)
			AND ($3::float8 IS NULL OR price <= $3)
		ORDER BY distance, id
		LIMIT $4`

	rooms := []model.RoomListing{}
	err := r.db.SelectContext(ctx, &rooms, query, pgvector.NewVector(q.Vector), q.Location, q.MaxPrice, q.K)
	if err != nil {
		return nil, fmt.Errorf("failed to search rooms: %w", err)
	}
	return rooms, nil
}

// InsertRooms inserts all rooms in one transaction
func (r *PostgresRepository) InsertRooms(ctx context.Context, meta model.CatalogMeta, rooms []model.RoomListing) ([]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockMeta(ctx, tx, meta); err != nil {
		return nil, err
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO rooms (
			description, price, location, amenities, beds, max_guests, room_type,
			has_kitchen, available_from, available_to, embedding, embedding_model
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(rooms))
	for i, room := range rooms {
		if n := len(room.Embedding.Slice()); n != meta.Dimension {
			return nil, model.Errorf(model.EINVALID, "room %d vector has dimension %d, want %d", i, n, meta.Dimension)
		}
		err := stmt.QueryRowxContext(ctx,
			room.Description, room.Price, room.Location, room.Amenities, room.Beds, room.MaxGuests,
			room.RoomType, room.HasKitchen, room.AvailableFrom, room.AvailableTo, room.Embedding,
			meta.EmbeddingModel,
		).Scan(&ids[i])
		if err != nil {
			return nil, fmt.Errorf("failed to insert room %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

// lockMeta records meta for an empty catalog, or checks it against the stored
// one while holding the row lock for the rest of the transaction
func lockMeta(ctx context.Context, tx *sqlx.Tx, meta model.CatalogMeta) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (embedding_model, dimension) VALUES ($1, $2)
		ON CONFLICT (singleton) DO NOTHING`, meta.EmbeddingModel, meta.Dimension)
	if err != nil {
		return fmt.Errorf("failed to record catalog meta: %w", err)
	}

	var stored model.CatalogMeta
	err = tx.GetContext(ctx, &stored, `SELECT embedding_model, dimension FROM catalog_meta FOR UPDATE`)
	if err != nil {
		return fmt.Errorf("failed to read catalog meta: %w", err)
	}
	return checkMeta(&stored, meta)
}

// ListRooms returns every room
func (r *PostgresRepository) ListRooms(ctx context.Context) ([]model.RoomListing, error) {
	rooms := []model.RoomListing{}
	if err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// ReplaceEmbeddings rewrites every vector and the catalog meta in one transaction
func (r *PostgresRepository) ReplaceEmbeddings(ctx context.Context, meta model.CatalogMeta, vecs map[int64][]float32) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// block concurrent inserts for the duration of the swap
	if _, err := tx.ExecContext(ctx, `LOCK TABLE rooms IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("failed to lock rooms: %w", err)
	}

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM rooms ORDER BY id`); err != nil {
		return fmt.Errorf("failed to list room ids: %w", err)
	}
	if err := checkCoverage(ids, vecs, meta.Dimension); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `UPDATE rooms SET embedding = $1, embedding_model = $2, updated_at = NOW() WHERE id = $3`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, pgvector.NewVector(vecs[id]), meta.EmbeddingModel, id); err != nil {
			return fmt.Errorf("failed to update room %d: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (embedding_model, dimension) VALUES ($1, $2)
		ON CONFLICT (singleton) DO UPDATE
		SET embedding_model = EXCLUDED.embedding_model, dimension = EXCLUDED.dimension, updated_at = NOW()`,
		meta.EmbeddingModel, meta.Dimension)
	if err != nil {
		return fmt.Errorf("failed to update catalog meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CatalogMeta returns the stored meta, or nil for a fresh catalog
func (r *PostgresRepository) CatalogMeta(ctx context.Context) (*model.CatalogMeta, error) {
	var meta model.CatalogMeta
	err := r.db.GetContext(ctx, &meta, `SELECT embedding_model, dimension FROM catalog_meta`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	return &meta, nil
}
