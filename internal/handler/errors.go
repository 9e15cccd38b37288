package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"hotelchat/internal/embedding"
	"hotelchat/internal/model"
	"hotelchat/internal/service"
)

// errorStatus maps an error to the HTTP status and message returned to clients
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, embedding.ErrModelMismatch), errors.Is(err, embedding.ErrDimensionMismatch):
		return http.StatusConflict, err.Error()
	case errors.Is(err, embedding.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, embedding.ErrEmbedding):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, service.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	}

	switch model.ErrorCode(err) {
	case model.EINVALID:
		return http.StatusBadRequest, model.ErrorMessage(err)
	case model.ECONFLICT:
		return http.StatusConflict, model.ErrorMessage(err)
	case model.ENOTFOUND:
		return http.StatusNotFound, model.ErrorMessage(err)
	}
	return http.StatusInternalServerError, model.ErrorMessage(err)
}

// writeError logs internal failures and writes the JSON error body
func writeError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}
