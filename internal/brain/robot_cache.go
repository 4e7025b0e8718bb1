package brain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wayfindr.app/relay/internal/model"
)

const robotCacheLoadTimeout = 10 * time.Second

// robotCache holds the active-robot snapshot. Reads under the mutex are short.
// Once a snapshot exists, an expired entry is served as-is while one
// background refresh runs; only the very first load blocks callers.
// Concurrent refreshes collapse into one through singleflight, and a failed
// refresh keeps serving the last snapshot.
type robotCache struct {
	mu        sync.Mutex
	records   []model.TelemetryRecord
	fetchedAt time.Time

	ttl   time.Duration
	load  func(ctx context.Context) ([]model.TelemetryRecord, error)
	now   func() time.Time
	group singleflight.Group
}

const robotCacheKey = "active_robots"

func newRobotCache(ttl time.Duration, load func(ctx context.Context) ([]model.TelemetryRecord, error)) *robotCache {
	return &robotCache{ttl: ttl, load: load, now: time.Now}
}

func (c *robotCache) Get(ctx context.Context) ([]model.TelemetryRecord, error) {
	c.mu.Lock()
	hasSnapshot := !c.fetchedAt.IsZero()
	fresh := hasSnapshot && c.now().Sub(c.fetchedAt) < c.ttl
	snapshot := c.records
	c.mu.Unlock()

	if fresh {
		return cloneRecords(snapshot), nil
	}

	if hasSnapshot {
		// DoChan buffers its result, so nobody has to read it.
		c.group.DoChan(robotCacheKey, func() (any, error) {
			records, err := c.refresh(ctx)
			if err != nil {
				slog.WarnContext(ctx, "active robot refresh failed, serving stale snapshot", "error", err)
			}
			return records, err
		})
		return cloneRecords(snapshot), nil
	}

	v, err, _ := c.group.Do(robotCacheKey, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cloneRecords(v.([]model.TelemetryRecord)), nil
}

// refresh loads a new snapshot on a context detached from the caller, so one
// caller's cancellation does not fail the shared load.
func (c *robotCache) refresh(ctx context.Context) ([]model.TelemetryRecord, error) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), robotCacheLoadTimeout)
	defer cancel()

	records, err := c.load(loadCtx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.records = records
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return records, nil
}

func cloneRecords(in []model.TelemetryRecord) []model.TelemetryRecord {
	return append([]model.TelemetryRecord{}, in...)
}
