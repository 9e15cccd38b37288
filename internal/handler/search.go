package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hotelchat/internal/location"
	"hotelchat/internal/model"
	"hotelchat/internal/service"
)

// SearchHandler exposes the room search tool over HTTP
type SearchHandler struct {
	tool      *service.RoomSearchTool
	locations location.Source
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(tool *service.RoomSearchTool, locations location.Source) *SearchHandler {
	return &SearchHandler{
		tool:      tool,
		locations: locations,
	}
}

// Search handles POST /api/v1/search. The body mirrors the tool arguments
// and the reply carries the same text the model would see.
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	intent := model.SearchIntent{Query: req.Query, Location: req.Location, MaxPrice: req.MaxPrice}
	intent.Normalize()

	start := time.Now()
	result := h.tool.FindRooms(c.Request.Context(), intent.Query, intent.Location, intent.MaxPrice)

	c.JSON(http.StatusOK, model.SearchResponse{
		Result: result,
		Took:   time.Since(start).Milliseconds(),
	})
}

// Locations handles GET /api/v1/locations
func (h *SearchHandler) Locations(c *gin.Context) {
	locs, err := h.locations.KnownLocations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.LocationsResponse{Locations: locs})
}
