package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/store"
)

type RetentionConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	MaxAge   time.Duration
}

// RetentionJob deletes telemetry older than MaxAge on a cron schedule.
type RetentionJob struct {
	telemetry store.TelemetryStore
	cfg       RetentionConfig
	now       func() time.Time
	cron      *cron.Cron
}

func NewRetentionJob(telemetry store.TelemetryStore, cfg RetentionConfig) (*RetentionJob, error) {
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive")
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parsing retention schedule %q: %w", cfg.Schedule, err)
	}
	return &RetentionJob{telemetry: telemetry, cfg: cfg, now: time.Now}, nil
}

// Start schedules the job; Stop ends it.
func (j *RetentionJob) Start(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.worker.retention"})

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		if err := j.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "telemetry retention failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling retention: %w", err)
	}
	j.cron.Start()

	slog.InfoContext(ctx, "telemetry retention scheduled",
		"schedule", j.cfg.Schedule,
		"max_age", j.cfg.MaxAge)
	return nil
}

// Stop waits for a running pass to finish.
func (j *RetentionJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *RetentionJob) RunOnce(ctx context.Context) error {
	cutoff := j.now().Add(-j.cfg.MaxAge)
	if err := j.telemetry.DeleteBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("deleting telemetry before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.InfoContext(ctx, "old telemetry deleted", "cutoff", cutoff)
	return nil
}
