package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/core/vectordb"
	"wayfindr.app/relay/internal/model"
)

const (
	fieldRobotID     = "robot_id"
	fieldTimestampMS = "timestamp_ms"

	// latestScanBatch bounds how many points LatestPerRobot inspects.
	latestScanBatch = 1000
)

type telemetryStore struct {
	client *vectordb.Client
}

func newTelemetryStore(client *vectordb.Client) TelemetryStore {
	return &telemetryStore{client: client}
}

func (s *telemetryStore) Upsert(ctx context.Context, rec *model.TelemetryRecord, vector []float32) error {
	if rec.ID == 0 {
		rec.ID = uint64(id.New())
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	payload, err := qdrant.TryValueMap(telemetryPayload(rec))
	if err != nil {
		return fmt.Errorf("building telemetry payload: %w", err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.client.Collection(),
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(rec.ID),
			Vectors: qdrant.NewVectorsDense(vector),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting telemetry point: %w", err)
	}
	return nil
}

func (s *telemetryStore) ScrollRecent(ctx context.Context, limit int) ([]model.TelemetryRecord, error) {
	return s.scroll(ctx, nil, limit)
}

func (s *telemetryStore) ScrollByRobot(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error) {
	return s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(fieldRobotID, robotID)},
	}, limit)
}

func (s *telemetryStore) Latest(ctx context.Context, robotID string) (*model.TelemetryRecord, error) {
	records, err := s.ScrollByRobot(ctx, robotID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func (s *telemetryStore) LatestPerRobot(ctx context.Context, since time.Time, limit int) ([]model.TelemetryRecord, error) {
	records, err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewRange(fieldTimestampMS, &qdrant.Range{Gte: qdrant.PtrOf(float64(epochMillis(since)))}),
		},
	}, latestScanBatch)
	if err != nil {
		return nil, err
	}
	return latestPerRobot(records, limit), nil
}

func (s *telemetryStore) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.client.Collection(),
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewRange(fieldTimestampMS, &qdrant.Range{Lt: qdrant.PtrOf(float64(epochMillis(cutoff)))}),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("deleting telemetry before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return nil
}

// scroll returns points newest first, ordered by the timestamp_ms payload index.
func (s *telemetryStore) scroll(ctx context.Context, filter *qdrant.Filter, limit int) ([]model.TelemetryRecord, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.client.Collection(),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(clampLimit(limit))),
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       fieldTimestampMS,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scrolling telemetry: %w", err)
	}

	out := make([]model.TelemetryRecord, 0, len(points))
	for _, p := range points {
		out = append(out, toTelemetryRecord(p.GetId(), p.GetPayload()))
	}
	return out, nil
}

// latestPerRobot keeps the first record per robot from a newest-first slice.
func latestPerRobot(records []model.TelemetryRecord, limit int) []model.TelemetryRecord {
	seen := make(map[string]bool)
	out := make([]model.TelemetryRecord, 0)
	for _, r := range records {
		if seen[r.RobotID] {
			continue
		}
		seen[r.RobotID] = true
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func telemetryPayload(rec *model.TelemetryRecord) map[string]any {
	payload := map[string]any{
		"robot_id":         rec.RobotID,
		"status":           rec.Status,
		"battery":          rec.Battery,
		"current_location": rec.CurrentLocation,
		"destination":      rec.Destination,
		"timestamp":        rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"timestamp_ms":     epochMillis(rec.Timestamp),
		"text":             rec.Text(),
	}
	if rec.Position != nil {
		payload["position"] = map[string]any{"x": rec.Position.X, "y": rec.Position.Y}
	}
	if len(rec.Raw) > 0 {
		payload["raw"] = rec.Raw
	}
	return payload
}

func toTelemetryRecord(pointID *qdrant.PointId, payload map[string]*qdrant.Value) model.TelemetryRecord {
	rec := model.TelemetryRecord{
		ID:              pointID.GetNum(),
		RobotID:         payload["robot_id"].GetStringValue(),
		Status:          payload["status"].GetStringValue(),
		Battery:         numberValue(payload["battery"]),
		CurrentLocation: payload["current_location"].GetStringValue(),
		Destination:     payload["destination"].GetStringValue(),
	}

	if ms := payload[fieldTimestampMS]; ms != nil {
		rec.Timestamp = time.UnixMilli(int64(numberValue(ms))).UTC()
	} else {
		rec.Timestamp = model.NormalizeTimestamp(payload["timestamp"].GetStringValue(), time.Time{})
	}

	if pos := payload["position"].GetStructValue(); pos != nil {
		fields := pos.GetFields()
		rec.Position = &model.Position{X: numberValue(fields["x"]), Y: numberValue(fields["y"])}
	}

	if raw := payload["raw"].GetStructValue(); raw != nil {
		rec.Raw = structToMap(raw)
	}

	return rec
}

// numberValue reads a payload number regardless of whether Qdrant kept it as int or double.
func numberValue(v *qdrant.Value) float64 {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(k.IntegerValue)
	case *qdrant.Value_StringValue:
		f, _ := strconv.ParseFloat(k.StringValue, 64)
		return f
	default:
		return 0
	}
}

func structToMap(s *qdrant.Struct) map[string]any {
	out := make(map[string]any, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return structToMap(k.StructValue)
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

func epochMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
