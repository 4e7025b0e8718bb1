package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// A chat request sets ConversationID and Channel once at the handler; every stage of the
// pipeline below it then logs with those fields without passing them explicitly.
type LogFields struct {
	ConversationID *string // Conversation the message belongs to
	RobotID        *string // Robot the message or telemetry concerns
	MessageID      *int64  // Persisted message ID
	CommandID      *int64  // Navigate/alert command ID
	StreamID       *string // Redis stream entry ID
	Channel        *string // "web" or "robot"
	Component      string  // Component name, e.g. "relay.brain.classifier"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ConversationID != nil {
		result.ConversationID = next.ConversationID
	}
	if next.RobotID != nil {
		result.RobotID = next.RobotID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.CommandID != nil {
		result.CommandID = next.CommandID
	}
	if next.StreamID != nil {
		result.StreamID = next.StreamID
	}
	if next.Channel != nil {
		result.Channel = next.Channel
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RobotID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Useful for logging user messages and model output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
