package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/store"
)

var ErrTelemetryNotFound = errors.New("no telemetry for robot")

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type TelemetryIngestParams struct {
	RobotID string
	// Payload is the robot's JSON body as decoded by the handler.
	Payload map[string]any
}

type TelemetryService interface {
	Ingest(ctx context.Context, params TelemetryIngestParams) (*model.TelemetryRecord, error)
	// Status returns the latest record of robotID, or of every active robot
	// when robotID is empty.
	Status(ctx context.Context, robotID string) ([]model.TelemetryRecord, error)
	History(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error)
}

type TelemetryConfig struct {
	ActiveWindow time.Duration
	MaxRobots    int
	// Dimensions is the collection vector size, used for the placeholder
	// vector when embedding is unavailable.
	Dimensions int
}

type telemetryService struct {
	store    store.TelemetryStore
	embedder llm.Embedder
	cfg      TelemetryConfig
	now      func() time.Time
}

func NewTelemetryService(s store.TelemetryStore, embedder llm.Embedder, cfg TelemetryConfig) TelemetryService {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 24 * time.Hour
	}
	if cfg.MaxRobots <= 0 {
		cfg.MaxRobots = 10
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	return &telemetryService{store: s, embedder: embedder, cfg: cfg, now: time.Now}
}

func (s *telemetryService) Ingest(ctx context.Context, params TelemetryIngestParams) (*model.TelemetryRecord, error) {
	robotID := strings.TrimSpace(params.RobotID)
	if robotID == "" {
		if v, ok := params.Payload["robot_id"].(string); ok {
			robotID = strings.TrimSpace(v)
		}
	}
	if robotID == "" {
		return nil, ErrMissingRobotID
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RobotID:   logger.Ptr(robotID),
		Component: "relay.service.telemetry",
	})

	rec := NormalizeTelemetry(robotID, params.Payload, s.now())
	rec.ID = uint64(id.New())

	if err := s.store.Upsert(ctx, rec, s.vector(ctx, rec.Text())); err != nil {
		return nil, fmt.Errorf("storing telemetry: %w", err)
	}

	slog.DebugContext(ctx, "telemetry stored",
		"record_id", rec.ID,
		"status", rec.Status,
		"battery", rec.Battery)

	return rec, nil
}

// vector embeds the record summary. The collection requires a vector on every
// point, so an embedding failure stores a fixed unit vector and the point is
// still reachable by payload filters.
func (s *telemetryService) vector(ctx context.Context, text string) []float32 {
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return vec
		}
		slog.WarnContext(ctx, "telemetry embedding failed, storing placeholder vector", "error", err)
	}
	return PlaceholderVector(s.cfg.Dimensions)
}

func (s *telemetryService) Status(ctx context.Context, robotID string) ([]model.TelemetryRecord, error) {
	robotID = strings.TrimSpace(robotID)
	if robotID == "" {
		records, err := s.store.LatestPerRobot(ctx, s.now().Add(-s.cfg.ActiveWindow), s.cfg.MaxRobots)
		if err != nil {
			return nil, fmt.Errorf("listing active robots: %w", err)
		}
		return records, nil
	}

	rec, err := s.store.Latest(ctx, robotID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTelemetryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest telemetry: %w", err)
	}
	return []model.TelemetryRecord{*rec}, nil
}

func (s *telemetryService) History(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error) {
	robotID = strings.TrimSpace(robotID)
	if robotID == "" {
		return nil, ErrMissingRobotID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.store.ScrollByRobot(ctx, robotID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading telemetry history: %w", err)
	}
	return records, nil
}

// NormalizeTelemetry maps a loosely typed robot payload onto a record.
// Missing or malformed fields get zero values; the timestamp falls back to
// receivedAt.
func NormalizeTelemetry(robotID string, payload map[string]any, receivedAt time.Time) *model.TelemetryRecord {
	rec := &model.TelemetryRecord{
		RobotID:         robotID,
		Status:          stringField(payload, "status"),
		Battery:         clampBattery(floatField(payload, "battery")),
		CurrentLocation: stringField(payload, "current_location", "location"),
		Destination:     stringField(payload, "destination"),
		Timestamp:       model.NormalizeTimestamp(payload["timestamp"], receivedAt),
		Raw:             payload,
	}

	if pos, ok := payload["position"].(map[string]any); ok {
		x, xok := toFloat(pos["x"])
		y, yok := toFloat(pos["y"])
		if xok && yok {
			rec.Position = &model.Position{X: x, Y: y}
		}
	}

	return rec
}

func PlaceholderVector(dims int) []float32 {
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = 1
	}
	return v
}

func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func floatField(payload map[string]any, key string) float64 {
	f, _ := toFloat(payload[key])
	return f
}

// toFloat rejects NaN and infinities; they cannot be encoded as JSON.
func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clampBattery(b float64) float64 {
	switch {
	case b < 0:
		return 0
	case b > 100:
		return 100
	default:
		return b
	}
}
