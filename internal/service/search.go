package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/location"
	"hotelchat/internal/model"
	"hotelchat/internal/observability"
	"hotelchat/internal/utils"
)

const (
	// SearchToolName is the function name the chat model calls
	SearchToolName = "search_rooms"

	// NoRoomsSentinel is returned when nothing matches
	NoRoomsSentinel = "No matching rooms found."

	// ErrorPrefix starts every failure message handed to the model
	ErrorPrefix = "Error searching for rooms: "

	searchToolDescription = "Search hotel rooms by semantic similarity and optional filters like location and price."
)

// RoomSearchTool is the single capability exposed to the chat model. It
// always answers with text: listings, the no-match sentinel, or an error
// message. Errors never escape as Go errors or panics.
type RoomSearchTool struct {
	ranker    *Ranker
	locations location.Source
	log       zerolog.Logger
}

func NewRoomSearchTool(ranker *Ranker, locations location.Source, logger zerolog.Logger) *RoomSearchTool {
	return &RoomSearchTool{
		ranker:    ranker,
		locations: locations,
		log:       logger.With().Str("component", "search_tool").Logger(),
	}
}

// FindRooms resolves the location against the catalog, ranks rooms and
// renders one "[location] description - $price" line per result.
func (t *RoomSearchTool) FindRooms(ctx context.Context, query string, loc *string, maxPrice *float64) (out string) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			t.log.Error().Interface("panic", p).Str("query", query).Msg("room search panicked")
			observability.ObserveSearch("error", time.Since(start))
			out = ErrorPrefix + fmt.Sprint(p)
		}
	}()

	text, err := t.find(ctx, query, loc, maxPrice)
	if err != nil {
		t.log.Warn().Err(err).Str("query", query).Msg("room search failed")
		observability.ObserveSearch("error", time.Since(start))
		return ErrorPrefix + err.Error()
	}
	if text == NoRoomsSentinel {
		observability.ObserveSearch("empty", time.Since(start))
	} else {
		observability.ObserveSearch("results", time.Since(start))
	}
	return text
}

func (t *RoomSearchTool) find(ctx context.Context, query string, loc *string, maxPrice *float64) (string, error) {
	resolved, err := t.resolveLocation(ctx, loc)
	if err != nil {
		return "", err
	}

	rooms, err := t.ranker.Search(ctx, query, 0, maxPrice, resolved)
	if err != nil {
		return "", err
	}
	if len(rooms) == 0 {
		return NoRoomsSentinel, nil
	}

	lines := make([]string, len(rooms))
	for i := range rooms {
		lines[i] = FormatRoom(&rooms[i])
	}
	return strings.Join(lines, "\n"), nil
}

// resolveLocation maps the requested place onto a stored spelling. An
// unrecognised place drops the filter instead of matching nothing.
func (t *RoomSearchTool) resolveLocation(ctx context.Context, loc *string) (*string, error) {
	if loc == nil || strings.TrimSpace(*loc) == "" {
		return nil, nil
	}

	known, err := t.locations.KnownLocations(ctx)
	if err != nil {
		return nil, unavailable("list locations", err)
	}

	resolved := location.Normalize(loc, known)
	if resolved == nil {
		t.log.Info().Str("location", *loc).Msg("no catalog location resembles request, searching everywhere")
	} else if *resolved != *loc {
		t.log.Debug().Str("requested", *loc).Str("resolved", *resolved).Msg("normalized location")
	}
	return resolved, nil
}

// FormatRoom renders one result line
func FormatRoom(r *model.RoomListing) string {
	return fmt.Sprintf("[%s] %s - $%s", r.Location, r.Description, formatPrice(r.Price))
}

// formatPrice prints the shortest form of p that still carries a decimal
// point: 35 -> "35.0", 99.5 -> "99.5"
func formatPrice(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (t *RoomSearchTool) Name() string { return SearchToolName }

// Call runs the tool with the JSON arguments a chat model produced
func (t *RoomSearchTool) Call(ctx context.Context, rawArgs string) string {
	var intent model.SearchIntent
	if err := utils.DecodeModelJSON(rawArgs, &intent); err != nil {
		t.log.Warn().Err(err).Msg("undecodable tool arguments")
		return ErrorPrefix + "invalid arguments: " + err.Error()
	}
	intent.Normalize()
	return t.FindRooms(ctx, intent.Query, intent.Location, intent.MaxPrice)
}

// Definition describes the tool to a chat model, listing the stored location
// spellings when the catalog can be read
func (t *RoomSearchTool) Definition(ctx context.Context) ToolDefinition {
	known, err := t.locations.KnownLocations(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("tool description without location list")
		known = nil
	}
	return ToolDefinition{
		Name:        SearchToolName,
		Description: DescribeWith(known),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What the guest is looking for, in their own words.",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "City or region to search in. Misspellings are corrected.",
				},
				"max_price": map[string]any{
					"type":        "number",
					"description": "Highest acceptable nightly price in USD.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// DescribeWith returns the tool description, naming the known locations
func DescribeWith(known []string) string {
	if len(known) == 0 {
		return searchToolDescription
	}
	return searchToolDescription + " Known locations: " + strings.Join(known, ", ") + "."
}
