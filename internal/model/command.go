package model

import "time"

type CommandKind string

const (
	CommandNavigate CommandKind = "navigate"
	CommandAlert    CommandKind = "alert"
)

// RobotCommand is what dispatched functions publish for the command relay.
type RobotCommand struct {
	ID             int64       `json:"id"`
	Kind           CommandKind `json:"kind"`
	RobotID        string      `json:"robot_id,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Waypoints      []string    `json:"waypoints,omitempty"`
	Message        string      `json:"message,omitempty"`
	Priority       string      `json:"priority,omitempty"`
	TraceID        string      `json:"trace_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
