package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
)

var (
	ErrEmptyMessage   = pipeline.ErrEmptyMessage
	ErrMissingRobotID = errors.New("robot_id is required")
	ErrInvalidChannel = errors.New("channel must be web or robot")
)

// ChatRunner is the pipeline entry point the chat service drives.
type ChatRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type OperatorChatParams struct {
	Message        string
	UserID         string
	ConversationID string
}

type RobotChatParams struct {
	Message        string
	RobotID        string
	UserID         string
	ConversationID string
}

type PostMessageParams struct {
	Text           string
	ConversationID string
	ParticipantID  string
	Channel        model.Channel
	RobotID        string
}

type ChatService interface {
	// OperatorChat handles a message from the fleet console.
	OperatorChat(ctx context.Context, params OperatorChatParams) (*pipeline.Result, error)
	// RobotChat handles a visitor speaking to a robot.
	RobotChat(ctx context.Context, params RobotChatParams) (*pipeline.Result, error)
	PostMessage(ctx context.Context, params PostMessageParams) (*pipeline.Result, error)
}

type chatService struct {
	runner ChatRunner
}

func NewChatService(runner ChatRunner) ChatService {
	return &chatService{runner: runner}
}

func (s *chatService) OperatorChat(ctx context.Context, params OperatorChatParams) (*pipeline.Result, error) {
	return s.PostMessage(ctx, PostMessageParams{
		Text:           params.Message,
		ConversationID: params.ConversationID,
		ParticipantID:  params.UserID,
		Channel:        model.ChannelWeb,
	})
}

func (s *chatService) RobotChat(ctx context.Context, params RobotChatParams) (*pipeline.Result, error) {
	return s.PostMessage(ctx, PostMessageParams{
		Text:           params.Message,
		ConversationID: params.ConversationID,
		ParticipantID:  params.UserID,
		Channel:        model.ChannelRobot,
		RobotID:        params.RobotID,
	})
}

func (s *chatService) PostMessage(ctx context.Context, params PostMessageParams) (*pipeline.Result, error) {
	if strings.TrimSpace(params.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if !params.Channel.Valid() {
		return nil, ErrInvalidChannel
	}
	robotID := strings.TrimSpace(params.RobotID)
	if params.Channel == model.ChannelRobot && robotID == "" {
		return nil, ErrMissingRobotID
	}

	conversationID := strings.TrimSpace(params.ConversationID)
	if conversationID == "" {
		conversationID = NewConversationID(params.Channel, params.ParticipantID, robotID)
	}

	participant := strings.TrimSpace(params.ParticipantID)
	if participant == "" {
		participant = defaultParticipant(params.Channel)
	}

	res, err := s.runner.Run(ctx, pipeline.Request{
		Text:           params.Text,
		ConversationID: conversationID,
		ParticipantID:  participant,
		Channel:        params.Channel,
		RobotID:        robotID,
	})
	if err != nil {
		return nil, fmt.Errorf("running chat pipeline: %w", err)
	}
	return res, nil
}

// NewConversationID starts a conversation: operator_{user|anon}_{hex8} on the
// console, robot_{robotID}_{hex8} on a robot.
func NewConversationID(channel model.Channel, userID, robotID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if channel == model.ChannelRobot {
		return fmt.Sprintf("robot_%s_%s", robotID, suffix)
	}

	user := strings.TrimSpace(userID)
	if user == "" {
		user = "anon"
	}
	return fmt.Sprintf("operator_%s_%s", user, suffix)
}

func defaultParticipant(channel model.Channel) string {
	if channel == model.ChannelRobot {
		return "visitor"
	}
	return "operator"
}
