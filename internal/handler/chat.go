package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"hotelchat/internal/model"
	"hotelchat/internal/service"
)

// ChatHandler runs chat turns against the agent
type ChatHandler struct {
	agent    *service.Agent
	sessions *service.SessionStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(agent *service.Agent, sessions *service.SessionStore) *ChatHandler {
	return &ChatHandler{agent: agent, sessions: sessions}
}

// Chat handles POST /api/v1/chat. An empty or expired session_id starts a
// new conversation; the reply always carries the id to continue with.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	start := time.Now()
	conv := h.sessions.Open(req.SessionID)
	reply, err := h.agent.Reply(c.Request.Context(), conv, req.Message)
	if err != nil {
		log.Error().Err(err).Str("session_id", conv.ID).Msg("chat turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Chat failed: " + err.Error(), "session_id": conv.ID})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		SessionID: conv.ID,
		Reply:     reply,
		Took:      time.Since(start).Milliseconds(),
	})
}

// Reset handles DELETE /api/v1/chat/:session_id
func (h *ChatHandler) Reset(c *gin.Context) {
	id := c.Param("session_id")
	if !h.sessions.Delete(id) {
		writeError(c, model.Errorf(model.ENOTFOUND, "session %q not found", id))
		return
	}
	c.Status(http.StatusNoContent)
}
