package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// DateLayout is the wire and storage format for availability dates
const DateLayout = "2006-01-02"

// Defaults applied to ingestion records that leave these fields empty
const (
	DefaultBeds     = 1
	DefaultGuests   = 2
	DefaultRoomType = "standard"
)

// RoomListing represents a bookable room in the catalog
type RoomListing struct {
	ID             int64           `json:"id" db:"id"`
	Description    string          `json:"description" db:"description"`
	Price          float64         `json:"price" db:"price"`
	Location       string          `json:"location" db:"location"`
	Amenities      JSONArray       `json:"amenities" db:"amenities"`
	Beds           int             `json:"beds" db:"beds"`
	MaxGuests      int             `json:"max_guests" db:"max_guests"`
	RoomType       string          `json:"room_type" db:"room_type"`
	HasKitchen     bool            `json:"has_kitchen" db:"has_kitchen"`
	AvailableFrom  *Date           `json:"available_from,omitempty" db:"available_from"`
	AvailableTo    *Date           `json:"available_to,omitempty" db:"available_to"`
	Embedding      pgvector.Vector `json:"-" db:"embedding"`
	EmbeddingModel string          `json:"-" db:"embedding_model"`
	Distance       float64         `json:"distance,omitempty" db:"distance"` // set by similarity search only
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// RoomInput is a single ingestion record. Everything except the embedding
// and store-assigned fields comes from the caller.
type RoomInput struct {
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	Location      string   `json:"location"`
	Amenities     []string `json:"amenities,omitempty"`
	Beds          int      `json:"beds,omitempty"`
	MaxGuests     int      `json:"max_guests,omitempty"`
	RoomType      string   `json:"room_type,omitempty"`
	HasKitchen    bool     `json:"has_kitchen,omitempty"`
	AvailableFrom *Date    `json:"available_from,omitempty"`
	AvailableTo   *Date    `json:"available_to,omitempty"`
}

// Validate checks the catalog invariants for a single record
func (in *RoomInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return Errorf(EINVALID, "room description required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return Errorf(EINVALID, "room location required")
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || in.Price < 0 {
		return Errorf(EINVALID, "room price must be a non-negative number, got %v", in.Price)
	}
	if in.Beds < 0 {
		return Errorf(EINVALID, "room beds must be positive, got %d", in.Beds)
	}
	if in.MaxGuests < 0 {
		return Errorf(EINVALID, "room max_guests must be positive, got %d", in.MaxGuests)
	}
	if in.AvailableFrom != nil && in.AvailableTo != nil && in.AvailableFrom.After(in.AvailableTo.Time) {
		return Errorf(EINVALID, "room available_from (%s) is after available_to (%s)", in.AvailableFrom, in.AvailableTo)
	}
	return nil
}

// Listing converts the record into a listing with defaults applied.
// The embedding is left empty.
func (in *RoomInput) Listing() RoomListing {
	r := RoomListing{
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price,
		Location:      strings.TrimSpace(in.Location),
		Amenities:     JSONArray(in.Amenities),
		Beds:          in.Beds,
		MaxGuests:     in.MaxGuests,
		RoomType:      strings.TrimSpace(in.RoomType),
		HasKitchen:    in.HasKitchen,
		AvailableFrom: in.AvailableFrom,
		AvailableTo:   in.AvailableTo,
	}
	if r.Beds == 0 {
		r.Beds = DefaultBeds
	}
	if r.MaxGuests == 0 {
		r.MaxGuests = DefaultGuests
	}
	if r.RoomType == "" {
		r.RoomType = DefaultRoomType
	}
	if r.Amenities == nil {
		r.Amenities = JSONArray{}
	}
	return r
}

// CatalogMeta records which embedding model populated a catalog
type CatalogMeta struct {
	EmbeddingModel string `json:"embedding_model" db:"embedding_model"`
	Dimension      int    `json:"dimension" db:"dimension"`
}

// Matches reports whether vectors produced under other can be mixed with this catalog
func (m CatalogMeta) Matches(other CatalogMeta) bool {
	return m.EmbeddingModel == other.EmbeddingModel && m.Dimension == other.Dimension
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported amenities type %T", value)
	}
}

// Date is a calendar day without time of day
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer interface
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner interface
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*d = Date{time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)}
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("unsupported date type %T", value)
	}
}

func (d *Date) scanString(s string) error {
	// drivers may hand back a full timestamp for DATE columns
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
