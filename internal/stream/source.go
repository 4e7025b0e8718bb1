package stream

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/store"
)

// Source polls one backing store for its newest events.
type Source interface {
	Origin() model.Origin
	Interval() time.Duration
	// Fetch returns at most limit events, newest first.
	Fetch(ctx context.Context, limit int) ([]model.StreamEvent, error)
}

type TelemetrySource struct {
	store    store.TelemetryStore
	interval time.Duration
}

func NewTelemetrySource(s store.TelemetryStore, interval time.Duration) *TelemetrySource {
	if interval <= 0 {
		interval = time.Second
	}
	return &TelemetrySource{store: s, interval: interval}
}

func (s *TelemetrySource) Origin() model.Origin    { return model.OriginTelemetry }
func (s *TelemetrySource) Interval() time.Duration { return s.interval }

func (s *TelemetrySource) Fetch(ctx context.Context, limit int) ([]model.StreamEvent, error) {
	records, err := s.store.ScrollRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("scrolling telemetry: %w", err)
	}

	events := make([]model.StreamEvent, 0, len(records))
	for _, rec := range records {
		sourceID := strconv.FormatUint(rec.ID, 10)
		meta := map[string]any{
			"robot_id":         rec.RobotID,
			"status":           rec.Status,
			"battery":          rec.Battery,
			"current_location": rec.CurrentLocation,
		}
		if rec.Destination != "" {
			meta["destination"] = rec.Destination
		}
		if rec.Position != nil {
			meta["position"] = map[string]any{"x": rec.Position.X, "y": rec.Position.Y}
		}

		events = append(events, model.StreamEvent{
			SourceID:  sourceID,
			LogID:     model.ShortID(sourceID),
			Text:      rec.Text(),
			Metadata:  meta,
			CreatedAt: rec.Timestamp,
			Origin:    model.OriginTelemetry,
		})
	}
	return events, nil
}

// ConversationSource merges the newest messages of every message type.
type ConversationSource struct {
	store    store.MessageStore
	interval time.Duration
}

func NewConversationSource(s store.MessageStore, interval time.Duration) *ConversationSource {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ConversationSource{store: s, interval: interval}
}

func (s *ConversationSource) Origin() model.Origin    { return model.OriginConversation }
func (s *ConversationSource) Interval() time.Duration { return s.interval }

func (s *ConversationSource) Fetch(ctx context.Context, limit int) ([]model.StreamEvent, error) {
	var messages []model.Message
	for _, t := range model.MessageTypes {
		batch, err := s.store.ListRecent(ctx, t, limit)
		if err != nil {
			return nil, fmt.Errorf("listing %s messages: %w", t, err)
		}
		messages = append(messages, batch...)
	}

	slices.SortFunc(messages, func(a, b model.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(messages) > limit {
		messages = messages[:limit]
	}

	events := make([]model.StreamEvent, 0, len(messages))
	for _, msg := range messages {
		sourceID := strconv.FormatInt(msg.ID, 10)
		events = append(events, model.StreamEvent{
			SourceID:  sourceID,
			LogID:     model.ShortID(sourceID),
			Text:      msg.Text,
			Metadata:  messageMetadata(msg),
			CreatedAt: msg.CreatedAt,
			Origin:    model.OriginConversation,
		})
	}
	return events, nil
}

func messageMetadata(msg model.Message) map[string]any {
	var meta map[string]any
	if len(msg.Metadata) > 0 {
		// a JSON null or a non-object leaves meta nil or partial
		if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
			meta = nil
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["conversation_id"] = msg.ConversationID
	meta["role"] = msg.Role
	meta["channel"] = msg.Channel
	meta["message_type"] = msg.Type
	if msg.ParticipantID != "" {
		meta["participant_id"] = msg.ParticipantID
	}
	return meta
}
