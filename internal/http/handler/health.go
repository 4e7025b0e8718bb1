package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfindr.app/relay/internal/service"
)

type HealthHandler struct {
	health service.HealthService
}

func NewHealthHandler(health service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Check answers 200 even when degraded; the body says which component is down.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}
