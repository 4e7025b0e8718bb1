package stream_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/stream"
)

type recentMessages struct {
	byType map[model.MessageType][]model.Message
}

func (r *recentMessages) Append(context.Context, *model.Message, []float32) error { return nil }
func (r *recentMessages) ListByConversation(context.Context, string, int) ([]model.Message, error) {
	return nil, nil
}
func (r *recentMessages) ListRecent(_ context.Context, t model.MessageType, _ int) ([]model.Message, error) {
	return r.byType[t], nil
}
func (r *recentMessages) SimilaritySearch(context.Context, []float32, int) ([]model.Message, error) {
	return nil, nil
}
func (r *recentMessages) SearchText(context.Context, string, int) ([]model.Message, error) {
	return nil, nil
}

type recentTelemetry struct {
	records []model.TelemetryRecord
}

func (r *recentTelemetry) Upsert(context.Context, *model.TelemetryRecord, []float32) error {
	return nil
}
func (r *recentTelemetry) ScrollRecent(context.Context, int) ([]model.TelemetryRecord, error) {
	return r.records, nil
}
func (r *recentTelemetry) ScrollByRobot(context.Context, string, int) ([]model.TelemetryRecord, error) {
	return nil, nil
}
func (r *recentTelemetry) Latest(context.Context, string) (*model.TelemetryRecord, error) {
	return nil, nil
}
func (r *recentTelemetry) LatestPerRobot(context.Context, time.Time, int) ([]model.TelemetryRecord, error) {
	return nil, nil
}
func (r *recentTelemetry) DeleteBefore(context.Context, time.Time) error { return nil }

var _ = Describe("ConversationSource", func() {
	It("merges message types newest first and truncates to the limit", func() {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store := &recentMessages{byType: map[model.MessageType][]model.Message{
			model.MessageTypeCommand: {
				{ID: 1234567890, Text: "take me to the lobby", CreatedAt: base, Role: model.RoleUser, Type: model.MessageTypeCommand},
			},
			model.MessageTypeResponse: {
				{ID: 1234567891, Text: "follow me", CreatedAt: base.Add(time.Second), Role: model.RoleAssistant, Type: model.MessageTypeResponse,
					Metadata: json.RawMessage(`{"intent_type":"navigation"}`)},
			},
			model.MessageTypeNotification: {
				{ID: 1234567892, Text: "Navigation command: [lobby]", CreatedAt: base.Add(2 * time.Second), Type: model.MessageTypeNotification},
			},
		}}

		evs, err := stream.NewConversationSource(store, 0).Fetch(context.Background(), 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(sourceIDs(evs)).To(Equal([]string{"1234567892", "1234567891"}))
		Expect(evs[0].LogID).To(Equal("12345678"))
		Expect(evs[0].Origin).To(Equal(model.OriginConversation))
		Expect(evs[1].Metadata).To(HaveKeyWithValue("intent_type", "navigation"))
		Expect(evs[1].Metadata).To(HaveKeyWithValue("role", model.RoleAssistant))
	})
})

var _ = Describe("TelemetrySource", func() {
	It("maps records to events with their summary text", func() {
		ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store := &recentTelemetry{records: []model.TelemetryRecord{
			{ID: 42, RobotID: "robot_1", Status: "navigating", Battery: 80, CurrentLocation: "lobby", Destination: "exit", Timestamp: ts},
		}}

		src := stream.NewTelemetrySource(store, 0)
		Expect(src.Interval()).To(Equal(time.Second))

		evs, err := src.Fetch(context.Background(), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].SourceID).To(Equal("42"))
		Expect(evs[0].Text).To(Equal("Robot robot_1 at lobby - Status: navigating, Battery: 80%, navigating to exit"))
		Expect(evs[0].CreatedAt).To(Equal(ts))
		Expect(evs[0].Metadata).To(HaveKeyWithValue("destination", "exit"))
	})

	It("tolerates null and non-object metadata", func() {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store := &recentMessages{byType: map[model.MessageType][]model.Message{
			model.MessageTypeCommand: {
				{ID: 1, Text: "hello", CreatedAt: base, Role: model.RoleUser, Type: model.MessageTypeCommand, Metadata: json.RawMessage(`null`)},
				{ID: 2, Text: "hi", CreatedAt: base.Add(time.Second), Role: model.RoleUser, Type: model.MessageTypeCommand, Metadata: json.RawMessage(`[1,2]`)},
			},
		}}

		evs, err := stream.NewConversationSource(store, 0).Fetch(context.Background(), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(evs).To(HaveLen(2))
		for _, ev := range evs {
			Expect(ev.Metadata).To(HaveKeyWithValue("role", model.RoleUser))
		}
	})
})
