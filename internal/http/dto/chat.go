package dto

import (
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
)

type ChatRequest struct {
	Message        string `json:"message" binding:"required,max=4000"`
	UserID         string `json:"user_id,omitempty" binding:"omitempty,max=255"`
	ConversationID string `json:"conversation_id,omitempty" binding:"omitempty,max=255"`
}

type RobotChatRequest struct {
	Message        string `json:"message" binding:"required,max=4000"`
	RobotID        string `json:"robot_id" binding:"required,max=255"`
	UserID         string `json:"user_id,omitempty" binding:"omitempty,max=255"`
	ConversationID string `json:"conversation_id,omitempty" binding:"omitempty,max=255"`
}

type PostMessageRequest struct {
	Text           string `json:"text" binding:"required,max=4000"`
	ConversationID string `json:"conversation_id,omitempty" binding:"omitempty,max=255"`
	ParticipantID  string `json:"participant_id" binding:"required,max=255"`
	Channel        string `json:"channel" binding:"required,oneof=web robot"`
	RobotID        string `json:"robot_id,omitempty" binding:"omitempty,max=255"`
}

type ChatResponse struct {
	Reply           string                 `json:"reply"`
	ReplySource     string                 `json:"reply_source"`
	ConversationID  string                 `json:"conversation_id"`
	IntentType      model.IntentType       `json:"intent_type"`
	Urgency         model.Urgency          `json:"urgency"`
	Waypoints       []string               `json:"waypoints"`
	FunctionResults []model.FunctionResult `json:"function_results"`
	Degraded        bool                   `json:"degraded"`
}

func ToChatResponse(r *pipeline.Result) ChatResponse {
	waypoints := r.Intent.Waypoints
	if waypoints == nil {
		waypoints = []string{}
	}
	results := r.FunctionResults
	if results == nil {
		results = []model.FunctionResult{}
	}

	return ChatResponse{
		Reply:           r.Reply,
		ReplySource:     r.ReplySource,
		ConversationID:  r.ConversationID,
		IntentType:      r.Intent.Type,
		Urgency:         r.Intent.Urgency,
		Waypoints:       waypoints,
		FunctionResults: results,
		Degraded:        r.Degraded,
	}
}
