package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hotelchat/internal/model"
	"hotelchat/internal/service"
)

// RoomHandler handles catalog ingestion requests
type RoomHandler struct {
	loader   *service.CatalogLoader
	maxBatch int
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(loader *service.CatalogLoader, maxBatch int) *RoomHandler {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &RoomHandler{loader: loader, maxBatch: maxBatch}
}

// BatchInsert handles POST /api/v1/rooms/batch. Either every room is stored
// or none is.
func (h *RoomHandler) BatchInsert(c *gin.Context) {
	var req model.RoomBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Rooms) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No rooms provided"})
		return
	}
	if len(req.Rooms) > h.maxBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many rooms in one batch"})
		return
	}

	ids, err := h.loader.Load(c.Request.Context(), req.Rooms)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.RoomBatchResponse{Inserted: len(ids), IDs: ids})
}

// Reembed handles POST /api/v1/rooms/reembed
func (h *RoomHandler) Reembed(c *gin.Context) {
	n, err := h.loader.Reembed(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reembedded": n})
}
