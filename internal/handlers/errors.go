package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"genimage/internal/middleware"
	"genimage/internal/service"
)

// writeError maps service errors onto status codes. Store failures keep
// their cause out of the response body.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var (
		verr *service.ValidationError
		uerr *service.UpstreamFetchError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "details": verr.Fields})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, service.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "reaction_in_progress"})
	case errors.As(err, &uerr):
		body := gin.H{"error": "upstream_fetch_failed"}
		if uerr.StatusCode != 0 {
			body["upstreamStatus"] = uerr.StatusCode
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		h.log.Error().
			Err(err).
			Str("route", c.FullPath()).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": err.Error()})
}
