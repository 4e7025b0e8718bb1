package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/service"
	"wayfindr.app/relay/internal/store"
)

var _ = Describe("TelemetryService", func() {
	var (
		ctx      context.Context
		st       *mockTelemetryStore
		embedder *mockEmbedder
		svc      service.TelemetryService
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = &mockTelemetryStore{}
		embedder = &mockEmbedder{}
		svc = service.NewTelemetryService(st, embedder, service.TelemetryConfig{Dimensions: 4, MaxRobots: 3})
	})

	Describe("Ingest", func() {
		It("normalizes and stores the payload with its embedding", func() {
			var (
				stored *model.TelemetryRecord
				vec    []float32
				text   string
			)
			embedder.embedFn = func(_ context.Context, t string) ([]float32, error) {
				text = t
				return []float32{0.1, 0.2, 0.3, 0.4}, nil
			}
			st.upsertFn = func(_ context.Context, rec *model.TelemetryRecord, v []float32) error {
				stored, vec = rec, v
				return nil
			}

			rec, err := svc.Ingest(ctx, service.TelemetryIngestParams{
				RobotID: "robot_01",
				Payload: map[string]any{
					"status":    "navigating",
					"battery":   87.5,
					"location":  "lobby",
					"position":  map[string]any{"x": 1.0, "y": 2.5},
					"timestamp": "2025-03-01T10:00:00Z",
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(rec))
			Expect(rec.ID).NotTo(BeZero())
			Expect(rec.CurrentLocation).To(Equal("lobby"))
			Expect(rec.Position).To(Equal(&model.Position{X: 1, Y: 2.5}))
			Expect(rec.Timestamp).To(Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
			Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3, 0.4}))
			Expect(text).To(Equal("Robot robot_01 at lobby - Status: navigating, Battery: 87.5%"))
		})

		It("takes the robot id from the payload when the path has none", func() {
			rec, err := svc.Ingest(ctx, service.TelemetryIngestParams{Payload: map[string]any{"robot_id": "robot_02"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.RobotID).To(Equal("robot_02"))
		})

		It("rejects payloads without a robot", func() {
			_, err := svc.Ingest(ctx, service.TelemetryIngestParams{Payload: map[string]any{"status": "idle"}})
			Expect(err).To(MatchError(service.ErrMissingRobotID))
		})

		It("stores a placeholder vector when embedding fails", func() {
			var vec []float32
			embedder.embedFn = func(context.Context, string) ([]float32, error) {
				return nil, errors.New("rate limited")
			}
			st.upsertFn = func(_ context.Context, _ *model.TelemetryRecord, v []float32) error {
				vec = v
				return nil
			}

			_, err := svc.Ingest(ctx, service.TelemetryIngestParams{RobotID: "robot_01", Payload: map[string]any{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{1, 0, 0, 0}))
		})

		It("surfaces store failures", func() {
			st.upsertFn = func(context.Context, *model.TelemetryRecord, []float32) error {
				return errors.New("qdrant down")
			}
			_, err := svc.Ingest(ctx, service.TelemetryIngestParams{RobotID: "robot_01"})
			Expect(err).To(MatchError(ContainSubstring("qdrant down")))
		})
	})

	Describe("Status", func() {
		It("maps a missing robot to ErrTelemetryNotFound", func() {
			st.latestFn = func(context.Context, string) (*model.TelemetryRecord, error) {
				return nil, store.ErrNotFound
			}
			_, err := svc.Status(ctx, "ghost")
			Expect(err).To(MatchError(service.ErrTelemetryNotFound))
		})

		It("returns the latest record of one robot", func() {
			st.latestFn = func(_ context.Context, robotID string) (*model.TelemetryRecord, error) {
				return &model.TelemetryRecord{RobotID: robotID, Status: "idle"}, nil
			}
			recs, err := svc.Status(ctx, "robot_01")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].Status).To(Equal("idle"))
		})

		It("lists active robots when no robot is given", func() {
			var gotLimit int
			st.latestPerRobotFn = func(_ context.Context, since time.Time, limit int) ([]model.TelemetryRecord, error) {
				gotLimit = limit
				Expect(since).To(BeTemporally("~", time.Now().Add(-24*time.Hour), time.Minute))
				return []model.TelemetryRecord{{RobotID: "a"}, {RobotID: "b"}}, nil
			}
			recs, err := svc.Status(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
			Expect(gotLimit).To(Equal(3))
		})
	})

	Describe("History", func() {
		It("defaults and caps the limit", func() {
			var limits []int
			st.scrollByRobotFn = func(_ context.Context, _ string, limit int) ([]model.TelemetryRecord, error) {
				limits = append(limits, limit)
				return nil, nil
			}
			_, err := svc.History(ctx, "robot_01", 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.History(ctx, "robot_01", 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(limits).To(Equal([]int{10, 100}))
		})

		It("requires a robot id", func() {
			_, err := svc.History(ctx, " ", 5)
			Expect(err).To(MatchError(service.ErrMissingRobotID))
		})
	})

	Describe("NormalizeTelemetry", func() {
		received := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		DescribeTable("battery",
			func(in any, want float64) {
				rec := service.NormalizeTelemetry("r", map[string]any{"battery": in}, received)
				Expect(rec.Battery).To(Equal(want))
			},
			Entry("in range", 42.0, 42.0),
			Entry("numeric string", "55", 55.0),
			Entry("below zero", -3.0, 0.0),
			Entry("above hundred", 140.0, 100.0),
			Entry("garbage", "full", 0.0),
			Entry("NaN string", "NaN", 0.0),
			Entry("infinite string", "+Inf", 0.0),
		)

		It("drops positions with non-finite coordinates", func() {
			rec := service.NormalizeTelemetry("r", map[string]any{"position": map[string]any{"x": "NaN", "y": 2.0}}, received)
			Expect(rec.Position).To(BeNil())
		})

		It("produces a record that encodes as JSON for any battery string", func() {
			rec := service.NormalizeTelemetry("r", map[string]any{"battery": "-Inf", "position": map[string]any{"x": "Inf", "y": "NaN"}}, received)
			_, err := json.Marshal(rec)
			Expect(err).NotTo(HaveOccurred())
		})

		It("falls back to the receive time for unparsable timestamps", func() {
			rec := service.NormalizeTelemetry("r", map[string]any{"timestamp": "yesterday"}, received)
			Expect(rec.Timestamp).To(Equal(received))
		})

		It("ignores partial positions", func() {
			rec := service.NormalizeTelemetry("r", map[string]any{"position": map[string]any{"x": 1.0}}, received)
			Expect(rec.Position).To(BeNil())
		})
	})
})
