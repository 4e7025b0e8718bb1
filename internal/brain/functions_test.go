package brain_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/brain"
	"wayfindr.app/relay/internal/model"
)

var _ = Describe("FunctionRegistry", func() {
	var (
		ctx       context.Context
		publisher *fakePublisher
		registry  *brain.FunctionRegistry
		req       brain.RequestContext
	)

	BeforeEach(func() {
		ctx = context.Background()
		publisher = &fakePublisher{}
		registry = brain.NewDefaultRegistry(time.Second, vocab, publisher)
		req = brain.RequestContext{ConversationID: "conv_1", RobotID: "robot_1", Channel: model.ChannelRobot}
	})

	It("returns one result per call in order, isolating failures", func() {
		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionNavigateToWaypoint, Arguments: map[string]any{"waypoints": []string{"cafeteria"}}},
			{Name: "teleport", Arguments: map[string]any{}},
		}, req)

		Expect(results).To(HaveLen(2))
		Expect(results[0].Success).To(BeTrue())
		Expect(results[0].CallName).To(Equal(model.FunctionNavigateToWaypoint))
		Expect(results[0].Message).To(Equal("Navigation to cafeteria has been queued"))
		Expect(results[1].Success).To(BeFalse())
		Expect(results[1].CallName).To(Equal("unknown_teleport"))
		Expect(results[1].Message).To(Equal("Unknown function: teleport"))
	})

	It("publishes a navigate command for valid waypoints only", func() {
		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionNavigateToWaypoint, Arguments: map[string]any{"waypoints": []any{"Lobby", "gym", "exit"}}},
		}, req)

		Expect(results[0].Success).To(BeTrue())
		Expect(results[0].Payload).To(HaveKeyWithValue("status", "queued"))

		cmds := publisher.Published()
		Expect(cmds).To(HaveLen(1))
		Expect(cmds[0].Kind).To(Equal(model.CommandNavigate))
		Expect(cmds[0].RobotID).To(Equal("robot_1"))
		Expect(cmds[0].Waypoints).To(Equal([]string{"lobby", "exit"}))
		Expect(cmds[0].ID).NotTo(BeZero())
	})

	It("sends operator navigation to the robot named in the call", func() {
		operator := brain.RequestContext{ConversationID: "operator_anon_1", Channel: model.ChannelWeb}
		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionNavigateToWaypoint, Arguments: map[string]any{"waypoints": []string{"cafeteria"}, "robot_id": "robot_02"}},
		}, operator)

		Expect(results[0].Success).To(BeTrue())
		Expect(results[0].Payload).To(HaveKeyWithValue("robot_id", "robot_02"))
		Expect(publisher.Published()).To(ConsistOf(HaveField("RobotID", "robot_02")))
	})

	It("keeps a robot-channel request on its own robot", func() {
		registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionNavigateToWaypoint, Arguments: map[string]any{"waypoints": []string{"cafeteria"}, "robot_id": "robot_02"}},
		}, req)

		Expect(publisher.Published()).To(ConsistOf(HaveField("RobotID", "robot_1")))
	})

	It("fails navigation with no known waypoints", func() {
		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionNavigateToWaypoint, Arguments: map[string]any{"waypoints": []string{"gym"}}},
		}, req)

		Expect(results[0].Success).To(BeFalse())
		Expect(publisher.Published()).To(BeEmpty())
	})

	It("queues alerts with a priority from the message", func() {
		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionAlertHumans, Arguments: map[string]any{"message": "Emergency reported: There's a fire!"}},
		}, req)

		Expect(results[0].Success).To(BeTrue())
		Expect(results[0].Message).To(Equal("HIGH priority alert sent to staff"))
		Expect(publisher.Published()[0].Priority).To(Equal("HIGH"))
	})

	It("reports a publish failure on the call", func() {
		publisher.err = errors.New("redis down")

		results := registry.Dispatch(ctx, []model.FunctionCall{
			{Name: model.FunctionAlertHumans, Arguments: map[string]any{"message": "help"}},
		}, req)

		Expect(results[0].Success).To(BeFalse())
		Expect(results[0].Message).To(ContainSubstring("redis down"))
	})

	It("contains panics and timeouts to their own call", func() {
		registry = brain.NewFunctionRegistry(50 * time.Millisecond)
		registry.Register("boom", func(context.Context, model.FunctionCall, brain.RequestContext) (model.FunctionResult, error) {
			panic("kaboom")
		})
		registry.Register("slow", func(ctx context.Context, _ model.FunctionCall, _ brain.RequestContext) (model.FunctionResult, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return model.FunctionResult{}, nil
		})
		registry.Register("ok", func(context.Context, model.FunctionCall, brain.RequestContext) (model.FunctionResult, error) {
			return model.FunctionResult{Message: "done"}, nil
		})

		results := registry.Dispatch(ctx, []model.FunctionCall{{Name: "boom"}, {Name: "slow"}, {Name: "ok"}}, req)

		Expect(results).To(HaveLen(3))
		Expect(results[0].Success).To(BeFalse())
		Expect(results[0].Message).To(ContainSubstring("kaboom"))
		Expect(results[1].Success).To(BeFalse())
		Expect(results[1].Message).To(ContainSubstring("timed out"))
		Expect(results[2].Success).To(BeTrue())
		Expect(results[2].CallName).To(Equal("ok"))
	})

	It("returns an empty slice for no calls", func() {
		Expect(registry.Dispatch(ctx, nil, req)).To(BeEmpty())
	})
})

var _ = DescribeTable("AlertPriority",
	func(message, want string) {
		Expect(brain.AlertPriority(message)).To(Equal(want))
	},
	Entry("fire", "There is a FIRE", "HIGH"),
	Entry("danger", "danger near exit", "HIGH"),
	Entry("urgent", "urgent: spill", "HIGH"),
	Entry("plain", "visitor needs a hand", "MEDIUM"),
)
