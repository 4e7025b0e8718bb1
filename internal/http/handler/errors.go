package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfindr.app/relay/internal/service"
	"wayfindr.app/relay/internal/stream"
)

// abortWithError maps service sentinels to client errors. Anything else is
// logged and reported as a 500 without leaking details.
func abortWithError(c *gin.Context, err error, op string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrMissingRobotID),
		errors.Is(err, service.ErrInvalidChannel),
		errors.Is(err, stream.ErrUnknownOrigin):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTelemetryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(ctx, op+" failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}

func badRequest(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request", "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
