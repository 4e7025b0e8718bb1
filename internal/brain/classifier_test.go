package brain_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/core/config"
	"wayfindr.app/relay/internal/brain"
	"wayfindr.app/relay/internal/model"
)

var vocab = brain.NewVocabulary(config.DefaultWaypoints)

var _ = Describe("FallbackClassifier", func() {
	var (
		ctx        context.Context
		classifier brain.FallbackClassifier
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("produces identical intents and JSON for identical input", func() {
		first := classifier.Classify(ctx, "Take me to the cafeteria and the lobby", vocab)
		second := classifier.Classify(ctx, "Take me to the cafeteria and the lobby", vocab)

		Expect(second).To(Equal(first))

		a, err := json.Marshal(first)
		Expect(err).NotTo(HaveOccurred())
		b, err := json.Marshal(second)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("classifies a navigation request with a navigate call", func() {
		intent := classifier.Classify(ctx, "Take me to the cafeteria", vocab)

		Expect(intent.Type).To(Equal(model.IntentNavigation))
		Expect(intent.Urgency).To(Equal(model.UrgencyLow))
		Expect(intent.Waypoints).To(Equal([]string{"cafeteria"}))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Name).To(Equal(model.FunctionNavigateToWaypoint))
		Expect(intent.FunctionCalls[0].Arguments["waypoints"]).To(Equal([]string{"cafeteria"}))
	})

	It("lets emergency win over navigation and drops the navigate call", func() {
		intent := classifier.Classify(ctx, "take me to the cafeteria, I'm stuck and scared", vocab)

		Expect(intent.Type).To(Equal(model.IntentEmergency))
		Expect(intent.Urgency).To(Equal(model.UrgencyHigh))
		for _, fc := range intent.FunctionCalls {
			Expect(fc.Name).NotTo(Equal(model.FunctionNavigateToWaypoint))
		}
		Expect(intent.FunctionCalls).To(ContainElement(HaveField("Name", model.FunctionAlertHumans)))
	})

	It("raises an alert for a fire", func() {
		intent := classifier.Classify(ctx, "There's a fire!", vocab)

		Expect(intent.Type).To(Equal(model.IntentEmergency))
		Expect(intent.Urgency).To(Equal(model.UrgencyHigh))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Name).To(Equal(model.FunctionAlertHumans))
		Expect(intent.FunctionCalls[0].Arguments["message"]).To(Equal("Emergency reported: There's a fire!"))
	})

	It("lets help win over navigation", func() {
		intent := classifier.Classify(ctx, "I'm lost, where is the lobby?", vocab)

		Expect(intent.Type).To(Equal(model.IntentHelp))
		Expect(intent.Urgency).To(Equal(model.UrgencyMedium))
		Expect(intent.FunctionCalls).To(BeEmpty())
		Expect(intent.Waypoints).To(Equal([]string{"lobby"}))
	})

	It("only extracts waypoints from the vocabulary, in vocabulary order", func() {
		intent := classifier.Classify(ctx, "go to the gym, then meeting room a and the reception", vocab)

		Expect(intent.Waypoints).To(Equal([]string{"reception", "meeting_room_a"}))
		for _, w := range intent.Waypoints {
			Expect(vocab.Contains(w)).To(BeTrue())
		}
	})

	It("matches keywords as whole words", func() {
		intent := classifier.Classify(ctx, "this is nothing", vocab)
		Expect(intent.Type).To(Equal(model.IntentUnknown))
	})

	DescribeTable("other intents",
		func(text string, want model.IntentType) {
			Expect(classifier.Classify(ctx, text, vocab).Type).To(Equal(want))
		},
		Entry("greeting", "Hello there", model.IntentSmalltalk),
		Entry("thanks", "thank you!", model.IntentSmalltalk),
		Entry("battery", "What's your battery level?", model.IntentStatusQuery),
		Entry("bare destination", "cafeteria please", model.IntentNavigation),
		Entry("navigation without destination", "can you navigate somewhere", model.IntentNavigation),
		Entry("empty", "   ", model.IntentUnknown),
		Entry("gibberish", "qwerty", model.IntentUnknown),
	)

	It("targets the robot an operator names", func() {
		intent := classifier.Classify(ctx, "send robot_02 to the cafeteria", vocab)

		Expect(intent.Type).To(Equal(model.IntentNavigation))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Arguments).To(HaveKeyWithValue("robot_id", "robot_02"))
	})

	It("leaves navigation untargeted without a robot mention", func() {
		intent := classifier.Classify(ctx, "Take me to the lobby", vocab)
		Expect(intent.FunctionCalls[0].Arguments).NotTo(HaveKey("robot_id"))
	})

	It("returns non-nil collections", func() {
		intent := classifier.Classify(ctx, "", vocab)
		Expect(intent.Waypoints).NotTo(BeNil())
		Expect(intent.FunctionCalls).NotTo(BeNil())
	})
})

var _ = Describe("MentionedRobots", func() {
	DescribeTable("normalizes robot references",
		func(text string, want []string) {
			Expect(brain.MentionedRobots(text)).To(Equal(want))
		},
		Entry("underscore id", "send robot_02 to the lobby", []string{"robot_02"}),
		Entry("spaced number", "where is robot 3?", []string{"robot_03"}),
		Entry("number word", "Robot two, go to the exit", []string{"robot_02"}),
		Entry("several, deduplicated", "robot1 and robot_01 and robot 4", []string{"robot_01", "robot_04"}),
		Entry("no id", "the robot is slow", []string(nil)),
	)
})

var _ = Describe("ModelClassifier", func() {
	var (
		ctx    context.Context
		fake   *fakeLLM
		policy brain.RetryPolicy
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeLLM{}
		policy = brain.RetryPolicy{
			Retries: 2,
			Timeout: time.Second,
			Backoff: func(int) time.Duration { return 0 },
		}
	})

	It("uses the model's structured answer", func() {
		fake.completeFn = replyWith(`{"intent_type":"navigation","mentioned_waypoints":["Cafeteria","gym"],"urgency":"low","function_calls":[{"name":"navigate_to_waypoint","args":{"waypoints":["cafeteria","gym"],"message":""}}]}`)

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "Take me to the cafeteria", vocab)

		Expect(intent.Type).To(Equal(model.IntentNavigation))
		Expect(intent.Waypoints).To(Equal([]string{"cafeteria"}))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Arguments["waypoints"]).To(Equal([]string{"cafeteria"}))
	})

	It("extracts the JSON object from surrounding prose", func() {
		fake.completeFn = replyWith("Sure! Here you go:\n```json\n{\"intent_type\": \"smalltalk\", \"mentioned_waypoints\": [], \"urgency\": \"low\", \"function_calls\": [], \"note\": \"a } in a string\"}\n```")

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "hi", vocab)

		Expect(intent.Type).To(Equal(model.IntentSmalltalk))
	})

	It("forces high urgency and an alert for emergencies", func() {
		fake.completeFn = replyWith(`{"intent_type":"emergency","mentioned_waypoints":["cafeteria"],"urgency":"low","function_calls":[{"name":"navigate_to_waypoint","args":{"waypoints":["cafeteria"],"message":""}}]}`)

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "someone collapsed in the cafeteria", vocab)

		Expect(intent.Type).To(Equal(model.IntentEmergency))
		Expect(intent.Urgency).To(Equal(model.UrgencyHigh))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Name).To(Equal(model.FunctionAlertHumans))
	})

	It("keeps unknown function names for dispatch to report", func() {
		fake.completeFn = replyWith(`{"intent_type":"unknown","mentioned_waypoints":[],"urgency":"weird","function_calls":[{"name":"dance","args":{"waypoints":[],"message":""}}]}`)

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "dance for me", vocab)

		Expect(intent.Urgency).To(Equal(model.UrgencyLow))
		Expect(intent.FunctionCalls).To(HaveLen(1))
		Expect(intent.FunctionCalls[0].Name).To(Equal("dance"))
	})

	It("falls back to keywords on malformed output without retrying", func() {
		fake.completeFn = replyWith("I think they want the cafeteria")

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "There's a fire!", vocab)

		Expect(intent.Type).To(Equal(model.IntentEmergency))
		Expect(fake.calls.Load()).To(Equal(int32(1)))
	})

	It("retries transport errors and then falls back", func() {
		fake.completeFn = func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, errors.New("connection reset")
		}

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "Take me to the cafeteria", vocab)

		Expect(fake.calls.Load()).To(Equal(int32(3)))
		Expect(intent).To(Equal(brain.FallbackClassifier{}.Classify(ctx, "Take me to the cafeteria", vocab)))
	})

	It("recovers when a retry succeeds", func() {
		fake.completeFn = func(context.Context, llm.Request) (*llm.Response, error) {
			if fake.calls.Load() == 1 {
				return nil, errors.New("connection reset")
			}
			return &llm.Response{Content: `{"intent_type":"status_query","mentioned_waypoints":[],"urgency":"low","function_calls":[]}`}, nil
		}

		intent := brain.NewModelClassifier(fake, policy).Classify(ctx, "how are you doing", vocab)

		Expect(intent.Type).To(Equal(model.IntentStatusQuery))
		Expect(fake.calls.Load()).To(Equal(int32(2)))
	})

	It("treats an attempt timeout as retryable", func() {
		policy.Timeout = 20 * time.Millisecond
		fake.completeFn = func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		brain.NewModelClassifier(fake, policy).Classify(ctx, "hello", vocab)

		Expect(fake.calls.Load()).To(Equal(int32(3)))
	})

	It("classifies by keywords without a client", func() {
		intent := brain.NewModelClassifier(nil, policy).Classify(ctx, "hello", vocab)
		Expect(intent.Type).To(Equal(model.IntentSmalltalk))
	})
})
