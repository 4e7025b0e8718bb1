package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfindr.app/relay/internal/http/dto"
	"wayfindr.app/relay/internal/service"
)

type TelemetryHandler struct {
	telemetry service.TelemetryService
}

func NewTelemetryHandler(telemetry service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry}
}

// Ingest accepts the robot's telemetry body as-is; fields are normalized by
// the service so older robot firmware keeps working.
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	robotID, _ := payload["robot_id"].(string)
	rec, err := h.telemetry.Ingest(c.Request.Context(), service.TelemetryIngestParams{
		RobotID: robotID,
		Payload: payload,
	})
	if err != nil {
		abortWithError(c, err, "telemetry ingest")
		return
	}

	c.JSON(http.StatusOK, dto.TelemetryAcceptedResponse{
		Accepted: true,
		RecordID: rec.ID,
		RobotID:  rec.RobotID,
	})
}

func (h *TelemetryHandler) Status(c *gin.Context) {
	var q dto.TelemetryStatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	records, err := h.telemetry.Status(c.Request.Context(), q.RobotID)
	if err != nil {
		abortWithError(c, err, "telemetry status")
		return
	}

	c.JSON(http.StatusOK, dto.ToTelemetryList(records))
}

func (h *TelemetryHandler) History(c *gin.Context) {
	var q dto.TelemetryHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	records, err := h.telemetry.History(c.Request.Context(), c.Param("robot_id"), q.Limit)
	if err != nil {
		abortWithError(c, err, "telemetry history")
		return
	}

	c.JSON(http.StatusOK, dto.ToTelemetryList(records))
}
