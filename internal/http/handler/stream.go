package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wayfindr.app/relay/internal/http/dto"
	"wayfindr.app/relay/internal/model"
)

const (
	sseHeartbeat = 15 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMsgSize = 4096

	defaultSnapshotLimit = 100
)

// Streamer is the live log the stream endpoints expose.
type Streamer interface {
	Origins() []model.Origin
	Subscribe(ctx context.Context, origins ...model.Origin) (<-chan model.StreamEvent, error)
	Snapshot(ctx context.Context, origin model.Origin, limit int) ([]model.StreamEvent, error)
}

type StreamHandler struct {
	streamer Streamer
	upgrader websocket.Upgrader
}

func NewStreamHandler(streamer Streamer, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// SSE writes one StreamEvent per data frame until the client goes away.
func (h *StreamHandler) SSE(c *gin.Context) {
	origins, ok := h.bindOrigins(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, err := h.streamer.Subscribe(ctx, origins...)
	if err != nil {
		abortWithError(c, err, "stream subscribe")
		return
	}

	// The server write timeout applies to chat requests, not to this stream.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		slog.DebugContext(ctx, "cannot clear write deadline", "error", err)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	slog.InfoContext(ctx, "stream client connected", "transport", "sse", "origins", origins)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stream client disconnected", "transport", "sse")
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.WarnContext(ctx, "skipping unencodable stream event",
					"source", ev.Origin, "source_id", ev.SourceID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
				slog.WarnContext(ctx, "sse write failed", "error", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

// WebSocket sends the same sequence as SSE, one JSON text frame per event.
// Inbound frames are read only to process pongs and detect close.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	origins, ok := h.bindOrigins(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.streamer.Subscribe(ctx, origins...)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, err.Error()),
			time.Now().Add(wsWriteWait))
		return
	}

	slog.InfoContext(ctx, "stream client connected", "transport", "websocket", "origins", origins)

	go readPump(conn, cancel)
	writePump(ctx, conn, events)

	slog.InfoContext(ctx, "stream client disconnected", "transport", "websocket")
}

func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(wsMaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, events <-chan model.StreamEvent) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.WarnContext(ctx, "skipping unencodable stream event",
					"source", ev.Origin, "source_id", ev.SourceID, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.WarnContext(ctx, "websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Snapshot returns the latest batch of one origin without dedup state.
func (h *StreamHandler) Snapshot(c *gin.Context) {
	var q dto.SnapshotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultSnapshotLimit
	}

	origin := model.Origin(c.Param("origin"))
	events, err := h.streamer.Snapshot(c.Request.Context(), origin, q.Limit)
	if err != nil {
		abortWithError(c, err, "snapshot")
		return
	}
	if events == nil {
		events = []model.StreamEvent{}
	}

	c.JSON(http.StatusOK, dto.SnapshotResponse{Origin: origin, Events: events, Count: len(events)})
}

func (h *StreamHandler) bindOrigins(c *gin.Context) ([]model.Origin, bool) {
	var q dto.StreamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return nil, false
	}
	if q.Origin == "" {
		return h.streamer.Origins(), true
	}
	return []model.Origin{model.Origin(q.Origin)}, true
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
