package model

import "time"

// Origin names the backing store a stream event was polled from.
type Origin string

const (
	OriginTelemetry    Origin = "telemetry"
	OriginConversation Origin = "conversation"
)

func (o Origin) Valid() bool {
	return o == OriginTelemetry || o == OriginConversation
}

// StreamEvent is one entry of the live log. (Origin, SourceID) is its dedup key.
type StreamEvent struct {
	SourceID  string         `json:"source_id"`
	LogID     string         `json:"log_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	Origin    Origin         `json:"source"`
}

// ShortID is the 8-character display form of a source ID.
func ShortID(sourceID string) string {
	if len(sourceID) <= 8 {
		return sourceID
	}
	return sourceID[:8]
}
