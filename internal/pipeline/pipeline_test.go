package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/core/config"
	"wayfindr.app/relay/internal/brain"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/pipeline"
)

type memoryMessages struct {
	mu        sync.Mutex
	appended  []model.Message
	appendErr error
	// failFirst makes that many leading Append calls fail.
	failFirst int
}

func (m *memoryMessages) Append(_ context.Context, msg *model.Message, _ []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.failFirst > 0 {
		m.failFirst--
		return errors.New("insert failed")
	}
	if msg.ID == 0 {
		msg.ID = id.New()
	}
	msg.CreatedAt = time.Now().UTC()
	m.appended = append(m.appended, *msg)
	return nil
}

func (m *memoryMessages) ListByConversation(_ context.Context, conversationID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.appended {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryMessages) ListRecent(context.Context, model.MessageType, int) ([]model.Message, error) {
	return []model.Message{}, nil
}

func (m *memoryMessages) SimilaritySearch(context.Context, []float32, int) ([]model.Message, error) {
	return []model.Message{}, nil
}

func (m *memoryMessages) SearchText(context.Context, string, int) ([]model.Message, error) {
	return []model.Message{}, nil
}

type noTelemetry struct{}

func (noTelemetry) Upsert(context.Context, *model.TelemetryRecord, []float32) error { return nil }
func (noTelemetry) ScrollRecent(context.Context, int) ([]model.TelemetryRecord, error) {
	return nil, nil
}
func (noTelemetry) ScrollByRobot(context.Context, string, int) ([]model.TelemetryRecord, error) {
	return nil, nil
}
func (noTelemetry) Latest(context.Context, string) (*model.TelemetryRecord, error) {
	return nil, errors.New("no telemetry")
}
func (noTelemetry) LatestPerRobot(context.Context, time.Time, int) ([]model.TelemetryRecord, error) {
	return []model.TelemetryRecord{}, nil
}
func (noTelemetry) DeleteBefore(context.Context, time.Time) error { return nil }

type recordingPublisher struct {
	mu       sync.Mutex
	commands []model.RobotCommand
}

func (r *recordingPublisher) Publish(_ context.Context, cmd model.RobotCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return nil
}

var _ = Describe("ChatPipeline", func() {
	var (
		ctx       context.Context
		messages  *memoryMessages
		publisher *recordingPublisher
		p         *pipeline.ChatPipeline
	)

	BeforeEach(func() {
		ctx = context.Background()
		messages = &memoryMessages{}
		publisher = &recordingPublisher{}
		vocab := brain.NewVocabulary(config.DefaultWaypoints)

		p = pipeline.New(pipeline.Deps{
			Classifier:  brain.NewModelClassifier(nil, brain.RetryPolicy{}),
			Dispatcher:  brain.NewDefaultRegistry(time.Second, vocab, publisher),
			Context:     brain.NewContextAggregator(messages, noTelemetry{}, nil, brain.AggregatorConfig{}),
			Synthesizer: brain.NewResponseSynthesizer(nil, vocab, brain.RetryPolicy{}),
			Messages:    messages,
			Vocab:       vocab,
		})
	})

	It("navigates to the cafeteria", func() {
		res, err := p.Run(ctx, pipeline.Request{
			Text:           "Take me to the cafeteria",
			ConversationID: "robot_robot_1_abcd1234",
			ParticipantID:  "visitor",
			Channel:        model.ChannelRobot,
			RobotID:        "robot_1",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Intent.Type).To(Equal(model.IntentNavigation))
		Expect(res.FunctionResults).To(HaveLen(1))
		Expect(res.FunctionResults[0].CallName).To(Equal(model.FunctionNavigateToWaypoint))
		Expect(res.FunctionResults[0].Success).To(BeTrue())
		Expect(res.Reply).To(ContainSubstring("cafeteria"))
		Expect(res.ConversationID).To(Equal("robot_robot_1_abcd1234"))
		Expect(res.Degraded).To(BeFalse())

		Expect(publisher.commands).To(HaveLen(1))
		Expect(publisher.commands[0].RobotID).To(Equal("robot_1"))
		Expect(publisher.commands[0].Waypoints).To(Equal([]string{"cafeteria"}))
	})

	It("alerts staff about a fire", func() {
		res, err := p.Run(ctx, pipeline.Request{
			Text:           "There's a fire!",
			ConversationID: "operator_anon_12345678",
			Channel:        model.ChannelWeb,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Intent.Type).To(Equal(model.IntentEmergency))
		Expect(res.Intent.Urgency).To(Equal(model.UrgencyHigh))
		Expect(res.Intent.FunctionCalls).To(ContainElement(HaveField("Name", model.FunctionAlertHumans)))
		Expect(res.Reply).To(ContainSubstring("alerted the staff"))
		Expect(publisher.commands).To(ConsistOf(HaveField("Kind", model.CommandAlert)))
	})

	It("persists the inbound message before the reply", func() {
		_, err := p.Run(ctx, pipeline.Request{
			Text:           "  hello  ",
			ConversationID: "conv_1",
			ParticipantID:  "alice",
			Channel:        model.ChannelWeb,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(messages.appended).To(HaveLen(2))
		inbound, reply := messages.appended[0], messages.appended[1]

		Expect(inbound.Role).To(Equal(model.RoleUser))
		Expect(inbound.Type).To(Equal(model.MessageTypeCommand))
		Expect(inbound.Text).To(Equal("hello"))
		Expect(inbound.ParticipantID).To(Equal("alice"))

		Expect(reply.Role).To(Equal(model.RoleAssistant))
		Expect(reply.Type).To(Equal(model.MessageTypeResponse))
		Expect(reply.ConversationID).To(Equal("conv_1"))

		var meta map[string]any
		Expect(json.Unmarshal(reply.Metadata, &meta)).To(Succeed())
		Expect(meta).To(HaveKeyWithValue("intent_type", "smalltalk"))
		Expect(meta).To(HaveKeyWithValue("reply_source", brain.ReplySourceTemplate))
	})

	It("sees the previous turn as history", func() {
		_, err := p.Run(ctx, pipeline.Request{Text: "hello", ConversationID: "conv_2", Channel: model.ChannelWeb})
		Expect(err).NotTo(HaveOccurred())
		_, err = p.Run(ctx, pipeline.Request{Text: "thanks", ConversationID: "conv_2", Channel: model.ChannelWeb})
		Expect(err).NotTo(HaveOccurred())

		history, err := messages.ListByConversation(ctx, "conv_2", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(4))
		Expect(history[0].Text).To(Equal("hello"))
		Expect(history[2].Text).To(Equal("thanks"))
	})

	It("still replies when persistence fails", func() {
		messages.appendErr = errors.New("postgres down")

		res, err := p.Run(ctx, pipeline.Request{Text: "hello", ConversationID: "conv_3", Channel: model.ChannelWeb})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Degraded).To(BeTrue())
		Expect(res.Reply).NotTo(BeEmpty())
	})

	It("still stores the reply when the inbound insert fails", func() {
		messages.failFirst = 1

		res, err := p.Run(ctx, pipeline.Request{Text: "hello", ConversationID: "conv_5", Channel: model.ChannelWeb})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Degraded).To(BeTrue())

		history, err := messages.ListByConversation(ctx, "conv_5", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
		Expect(history[0].Role).To(Equal(model.RoleAssistant))
		Expect(history[0].Text).To(Equal(res.Reply))
	})

	It("rejects empty text", func() {
		_, err := p.Run(ctx, pipeline.Request{Text: "   ", ConversationID: "conv_4", Channel: model.ChannelWeb})
		Expect(err).To(MatchError(pipeline.ErrEmptyMessage))
	})
})
