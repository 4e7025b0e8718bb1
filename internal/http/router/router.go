package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wayfindr.app/relay/internal/http/handler"
	"wayfindr.app/relay/internal/service"
)

type RouterConfig struct {
	AllowedOrigins []string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(services.Health())
	router.GET("/health", healthHandler.Check)

	v1 := router.Group("/api/v1")
	{
		chatHandler := handler.NewChatHandler(services.Chat())
		ChatRouter(v1, chatHandler)

		telemetryHandler := handler.NewTelemetryHandler(services.Telemetry())
		TelemetryRouter(v1.Group("/telemetry"), telemetryHandler)

		streamHandler := handler.NewStreamHandler(services.Stream(), cfg.AllowedOrigins)
		StreamRouter(v1, streamHandler)
	}
}

func ChatRouter(rg *gin.RouterGroup, h *handler.ChatHandler) {
	rg.POST("/chat", h.OperatorChat)
	rg.POST("/robot_chat", h.RobotChat)
	rg.POST("/messages", h.PostMessage)
}

func TelemetryRouter(rg *gin.RouterGroup, h *handler.TelemetryHandler) {
	rg.POST("", h.Ingest)
	rg.GET("/status", h.Status)
	rg.GET("/history/:robot_id", h.History)
}

func StreamRouter(rg *gin.RouterGroup, h *handler.StreamHandler) {
	rg.GET("/stream", h.SSE)
	rg.GET("/stream/ws", h.WebSocket)
	rg.GET("/data/:origin", h.Snapshot)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
