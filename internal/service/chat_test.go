package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
	"wayfindr.app/relay/internal/service"
)

var _ = Describe("ChatService", func() {
	var (
		runner *mockRunner
		svc    service.ChatService
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = &mockRunner{}
		svc = service.NewChatService(runner)
	})

	Describe("OperatorChat", func() {
		It("starts an operator conversation named after the user", func() {
			res, err := svc.OperatorChat(ctx, service.OperatorChatParams{Message: "where is robot 1?", UserID: "dana"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConversationID).To(MatchRegexp(`^operator_dana_[0-9a-f]{8}$`))

			Expect(runner.reqs).To(HaveLen(1))
			Expect(runner.reqs[0].Channel).To(Equal(model.ChannelWeb))
			Expect(runner.reqs[0].ParticipantID).To(Equal("dana"))
			Expect(runner.reqs[0].RobotID).To(BeEmpty())
		})

		It("uses anon when no user is given", func() {
			res, err := svc.OperatorChat(ctx, service.OperatorChatParams{Message: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConversationID).To(MatchRegexp(`^operator_anon_[0-9a-f]{8}$`))
			Expect(runner.reqs[0].ParticipantID).To(Equal("operator"))
		})

		It("reuses a supplied conversation id", func() {
			res, err := svc.OperatorChat(ctx, service.OperatorChatParams{Message: "hello", ConversationID: "operator_x_1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConversationID).To(Equal("operator_x_1"))
		})

		It("rejects blank messages without running the pipeline", func() {
			_, err := svc.OperatorChat(ctx, service.OperatorChatParams{Message: "   "})
			Expect(err).To(MatchError(service.ErrEmptyMessage))
			Expect(runner.reqs).To(BeEmpty())
		})
	})

	Describe("RobotChat", func() {
		It("requires a robot id", func() {
			_, err := svc.RobotChat(ctx, service.RobotChatParams{Message: "take me to the cafeteria"})
			Expect(err).To(MatchError(service.ErrMissingRobotID))
		})

		It("scopes the conversation to the robot", func() {
			res, err := svc.RobotChat(ctx, service.RobotChatParams{Message: "take me to the cafeteria", RobotID: "robot_01"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConversationID).To(MatchRegexp(`^robot_robot_01_[0-9a-f]{8}$`))
			Expect(runner.reqs[0].Channel).To(Equal(model.ChannelRobot))
			Expect(runner.reqs[0].RobotID).To(Equal("robot_01"))
			Expect(runner.reqs[0].ParticipantID).To(Equal("visitor"))
		})
	})

	Describe("PostMessage", func() {
		It("rejects unknown channels", func() {
			_, err := svc.PostMessage(ctx, service.PostMessageParams{Text: "hi", Channel: "sms"})
			Expect(err).To(MatchError(service.ErrInvalidChannel))
		})

		It("wraps pipeline failures", func() {
			boom := errors.New("boom")
			runner.runFn = func(context.Context, pipeline.Request) (*pipeline.Result, error) {
				return nil, boom
			}
			_, err := svc.PostMessage(ctx, service.PostMessageParams{Text: "hi", Channel: model.ChannelWeb})
			Expect(errors.Is(err, boom)).To(BeTrue())
		})
	})

	It("generates distinct conversation ids", func() {
		a := service.NewConversationID(model.ChannelWeb, "", "")
		b := service.NewConversationID(model.ChannelWeb, "", "")
		Expect(a).NotTo(Equal(b))
	})
})
