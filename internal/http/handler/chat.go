package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/http/dto"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/service"
)

type ChatHandler struct {
	chat service.ChatService
}

func NewChatHandler(chat service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) OperatorChat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Channel:   logger.Ptr(string(model.ChannelWeb)),
		Component: "relay.http.chat",
	})

	res, err := h.chat.OperatorChat(ctx, service.OperatorChatParams{
		Message:        req.Message,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		abortWithError(c, err, "chat")
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(res))
}

func (h *ChatHandler) RobotChat(c *gin.Context) {
	var req dto.RobotChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Channel:   logger.Ptr(string(model.ChannelRobot)),
		RobotID:   logger.Ptr(req.RobotID),
		Component: "relay.http.chat",
	})

	res, err := h.chat.RobotChat(ctx, service.RobotChatParams{
		Message:        req.Message,
		RobotID:        req.RobotID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		abortWithError(c, err, "robot chat")
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(res))
}

func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Channel:   logger.Ptr(req.Channel),
		Component: "relay.http.chat",
	})

	res, err := h.chat.PostMessage(ctx, service.PostMessageParams{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		ParticipantID:  req.ParticipantID,
		Channel:        model.Channel(req.Channel),
		RobotID:        req.RobotID,
	})
	if err != nil {
		abortWithError(c, err, "post message")
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(res))
}
