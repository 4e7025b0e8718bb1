package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/http/handler"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
	"wayfindr.app/relay/internal/service"
)

var _ = Describe("ChatHandler", func() {
	var (
		router *gin.Engine
		svc    *mockChatService
	)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		router = gin.New()
		svc = &mockChatService{}
		h := handler.NewChatHandler(svc)
		router.POST("/chat", h.OperatorChat)
		router.POST("/robot_chat", h.RobotChat)
		router.POST("/messages", h.PostMessage)
	})

	It("returns the reply, intent and function results", func() {
		svc.operatorChatFn = func(_ context.Context, p service.OperatorChatParams) (*pipeline.Result, error) {
			Expect(p.Message).To(Equal("send robot to cafeteria"))
			Expect(p.UserID).To(Equal("dana"))
			return &pipeline.Result{
				Reply:          "On my way to cafeteria.",
				ConversationID: "operator_dana_abcd1234",
				Intent: model.Intent{
					Type:      model.IntentNavigation,
					Urgency:   model.UrgencyLow,
					Waypoints: []string{"cafeteria"},
				},
				FunctionResults: []model.FunctionResult{{CallName: "navigate", Success: true, Message: "ok"}},
			}, nil
		}

		w := post("/chat", `{"message":"send robot to cafeteria","user_id":"dana"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["reply"]).To(Equal("On my way to cafeteria."))
		Expect(resp["conversation_id"]).To(Equal("operator_dana_abcd1234"))
		Expect(resp["intent_type"]).To(Equal("navigation"))
		Expect(resp["waypoints"]).To(Equal([]any{"cafeteria"}))
		Expect(resp["function_results"]).To(HaveLen(1))
		Expect(resp["degraded"]).To(BeFalse())
	})

	It("returns 400 when the message is missing", func() {
		w := post("/chat", `{}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 when the robot id is missing", func() {
		w := post("/robot_chat", `{"message":"hi"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps service sentinels to 400", func() {
		svc.operatorChatFn = func(context.Context, service.OperatorChatParams) (*pipeline.Result, error) {
			return nil, service.ErrEmptyMessage
		}
		w := post("/chat", `{"message":"   "}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("hides unexpected errors behind a 500", func() {
		svc.robotChatFn = func(context.Context, service.RobotChatParams) (*pipeline.Result, error) {
			return nil, errors.New("pq: connection reset")
		}
		w := post("/robot_chat", `{"message":"hi","robot_id":"robot_01"}`)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("connection reset"))
	})

	It("reports degraded replies with status 200", func() {
		svc.postMessageFn = func(_ context.Context, p service.PostMessageParams) (*pipeline.Result, error) {
			Expect(p.Channel).To(Equal(model.ChannelRobot))
			return &pipeline.Result{Reply: "Hello!", Degraded: true}, nil
		}
		w := post("/messages", `{"text":"hello","participant_id":"visitor","channel":"robot","robot_id":"robot_01"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["degraded"]).To(BeTrue())
		Expect(resp["waypoints"]).To(Equal([]any{}))
	})

	It("rejects unknown channels at binding", func() {
		w := post("/messages", `{"text":"hello","participant_id":"x","channel":"sms"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
