package model

// ConversationContext is assembled per request and discarded after the reply.
type ConversationContext struct {
	RecentHistory        []Message         `json:"recent_history"`
	RelevantPastMessages []Message         `json:"relevant_past_messages"`
	RobotStatus          []TelemetryRecord `json:"robot_status"`
}
