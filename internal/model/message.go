package model

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleRobot     Role = "robot"
)

// Channel identifies which client class a message arrived from.
type Channel string

const (
	ChannelWeb   Channel = "web"
	ChannelRobot Channel = "robot"
)

func (c Channel) Valid() bool {
	return c == ChannelWeb || c == ChannelRobot
}

// MessageType classifies a conversation log entry for the live stream.
type MessageType string

const (
	MessageTypeCommand      MessageType = "command"
	MessageTypeResponse     MessageType = "response"
	MessageTypeNotification MessageType = "notification"
	MessageTypeError        MessageType = "error"
)

// MessageTypes lists every type in stream polling order.
var MessageTypes = []MessageType{
	MessageTypeCommand,
	MessageTypeResponse,
	MessageTypeNotification,
	MessageTypeError,
}

// Message is immutable once persisted. ID and CreatedAt are assigned by the store.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           Role            `json:"role"`
	Channel        Channel         `json:"channel"`
	ParticipantID  string          `json:"participant_id"`
	Type           MessageType     `json:"message_type"`
	Text           string          `json:"text"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
