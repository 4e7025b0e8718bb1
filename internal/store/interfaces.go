package store

import (
	"context"
	"errors"
	"time"

	"wayfindr.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// MessageStore is the append-only conversation log.
type MessageStore interface {
	// Append persists msg, assigning ID (when zero) and CreatedAt.
	// A nil embedding leaves the message out of similarity search.
	Append(ctx context.Context, msg *model.Message, embedding []float32) error
	// ListByConversation returns the newest limit messages, oldest first.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	// ListRecent returns the newest limit messages of a type, newest first.
	ListRecent(ctx context.Context, msgType model.MessageType, limit int) ([]model.Message, error)
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]model.Message, error)
	SearchText(ctx context.Context, query string, k int) ([]model.Message, error)
}

// DeliveryStore records which robot commands have already been relayed.
type DeliveryStore interface {
	Claim(ctx context.Context, commandID int64) (bool, error)
}

// TelemetryStore is the append-only robot telemetry log.
type TelemetryStore interface {
	Upsert(ctx context.Context, rec *model.TelemetryRecord, vector []float32) error
	ScrollRecent(ctx context.Context, limit int) ([]model.TelemetryRecord, error)
	ScrollByRobot(ctx context.Context, robotID string, limit int) ([]model.TelemetryRecord, error)
	Latest(ctx context.Context, robotID string) (*model.TelemetryRecord, error)
	// LatestPerRobot returns one record per robot seen since the cutoff, newest
	// robots first, at most limit robots.
	LatestPerRobot(ctx context.Context, since time.Time, limit int) ([]model.TelemetryRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) error
}
