package service_test

import (
	"context"
	"time"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
	"wayfindr.app/relay/internal/store"
)

type mockRunner struct {
	runFn func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	reqs  []pipeline.Request
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	m.reqs = append(m.reqs, req)
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &pipeline.Result{Reply: "ok", ConversationID: req.ConversationID}, nil
}

type mockTelemetryStore struct {
	upsertFn         func(ctx context.Context, rec *model.TelemetryRecord, vector []float32) error
	scrollByRobotFn  func(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error)
	latestFn         func(ctx context.Context, robotID string) (*model.TelemetryRecord, error)
	latestPerRobotFn func(ctx context.Context, since time.Time, limit int) ([]model.TelemetryRecord, error)
}

func (m *mockTelemetryStore) Upsert(ctx context.Context, rec *model.TelemetryRecord, vector []float32) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec, vector)
	}
	return nil
}

func (m *mockTelemetryStore) ScrollRecent(context.Context, int) ([]model.TelemetryRecord, error) {
	return nil, nil
}

func (m *mockTelemetryStore) ScrollByRobot(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error) {
	if m.scrollByRobotFn != nil {
		return m.scrollByRobotFn(ctx, robotID, limit)
	}
	return nil, nil
}

func (m *mockTelemetryStore) Latest(ctx context.Context, robotID string) (*model.TelemetryRecord, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, robotID)
	}
	return nil, store.ErrNotFound
}

func (m *mockTelemetryStore) LatestPerRobot(ctx context.Context, since time.Time, limit int) ([]model.TelemetryRecord, error) {
	if m.latestPerRobotFn != nil {
		return m.latestPerRobotFn(ctx, since, limit)
	}
	return nil, nil
}

func (m *mockTelemetryStore) DeleteBefore(context.Context, time.Time) error {
	return nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{0.5, 0.5}, nil
}

func (m *mockEmbedder) Dimensions() int {
	return 2
}
