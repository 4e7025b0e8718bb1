package brain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/store"
)

type AggregatorConfig struct {
	HistoryLimit int
	RecallLimit  int
	MaxRobots    int
	// ActiveWindow is how far back telemetry counts a robot as active.
	ActiveWindow time.Duration
	// CacheTTL is how long the active-robot snapshot is reused.
	CacheTTL time.Duration
}

// ContextAggregator gathers conversation history, similar past messages and
// robot status for one request. It never fails; a broken source contributes
// an empty section.
type ContextAggregator struct {
	messages  store.MessageStore
	telemetry store.TelemetryStore
	embedder  llm.Embedder
	robots    *robotCache
	cfg       AggregatorConfig
}

// NewContextAggregator builds an aggregator. embedder may be nil, in which
// case recall uses text search.
func NewContextAggregator(messages store.MessageStore, telemetry store.TelemetryStore, embedder llm.Embedder, cfg AggregatorConfig) *ContextAggregator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.RecallLimit <= 0 {
		cfg.RecallLimit = 2
	}
	if cfg.MaxRobots <= 0 {
		cfg.MaxRobots = 10
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}

	a := &ContextAggregator{
		messages:  messages,
		telemetry: telemetry,
		embedder:  embedder,
		cfg:       cfg,
	}
	a.robots = newRobotCache(cfg.CacheTTL, a.loadActiveRobots)
	return a
}

func (a *ContextAggregator) Build(ctx context.Context, query, conversationID, robotID string) model.ConversationContext {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.brain.context"})

	cc := model.ConversationContext{
		RecentHistory:        []model.Message{},
		RelevantPastMessages: []model.Message{},
		RobotStatus:          []model.TelemetryRecord{},
	}

	// Each fetch swallows its own error so the others still complete.
	var g errgroup.Group

	g.Go(func() error {
		history, err := a.messages.ListByConversation(ctx, conversationID, a.cfg.HistoryLimit)
		if err != nil {
			slog.WarnContext(ctx, "conversation history unavailable", "error", err)
			return nil
		}
		if history != nil {
			cc.RecentHistory = history
		}
		return nil
	})

	g.Go(func() error {
		recall, err := a.recall(ctx, query)
		if err != nil {
			slog.WarnContext(ctx, "message recall unavailable", "error", err)
			return nil
		}
		if recall != nil {
			cc.RelevantPastMessages = recall
		}
		return nil
	})

	g.Go(func() error {
		status, err := a.robotStatus(ctx, robotID)
		if err != nil {
			slog.WarnContext(ctx, "robot status unavailable", "error", err)
			return nil
		}
		if status != nil {
			cc.RobotStatus = status
		}
		return nil
	})

	_ = g.Wait()

	slog.DebugContext(ctx, "context built",
		"history", len(cc.RecentHistory),
		"recall", len(cc.RelevantPastMessages),
		"robots", len(cc.RobotStatus))

	return cc
}

func (a *ContextAggregator) recall(ctx context.Context, query string) ([]model.Message, error) {
	if query == "" {
		return []model.Message{}, nil
	}

	if a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, query)
		if err == nil {
			return a.messages.SimilaritySearch(ctx, vec, a.cfg.RecallLimit)
		}
		slog.WarnContext(ctx, "query embedding failed, falling back to text search", "error", err)
	}

	return a.messages.SearchText(ctx, query, a.cfg.RecallLimit)
}

func (a *ContextAggregator) robotStatus(ctx context.Context, robotID string) ([]model.TelemetryRecord, error) {
	if robotID == "" {
		return a.robots.Get(ctx)
	}

	latest, err := a.telemetry.Latest(ctx, robotID)
	if errors.Is(err, store.ErrNotFound) {
		return []model.TelemetryRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []model.TelemetryRecord{*latest}, nil
}

func (a *ContextAggregator) loadActiveRobots(ctx context.Context) ([]model.TelemetryRecord, error) {
	since := time.Now().Add(-a.cfg.ActiveWindow)
	return a.telemetry.LatestPerRobot(ctx, since, a.cfg.MaxRobots)
}
