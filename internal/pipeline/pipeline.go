package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/brain"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/store"
)

var ErrEmptyMessage = errors.New("message text is empty")

// Dispatcher executes classified function calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, calls []model.FunctionCall, req brain.RequestContext) []model.FunctionResult
}

type ContextBuilder interface {
	Build(ctx context.Context, query, conversationID, robotID string) model.ConversationContext
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req brain.SynthesisRequest) brain.Reply
}

type Request struct {
	Text           string
	ConversationID string
	ParticipantID  string
	Channel        model.Channel
	RobotID        string
}

type Result struct {
	Reply           string
	ReplySource     string
	ConversationID  string
	Intent          model.Intent
	FunctionResults []model.FunctionResult
	// Degraded is set when the reply was produced but could not be persisted.
	Degraded bool
}

// ChatPipeline turns one inbound message into a reply:
// classify, dispatch, build context, synthesize, persist.
type ChatPipeline struct {
	classifier  brain.IntentClassifier
	dispatcher  Dispatcher
	context     ContextBuilder
	synthesizer Synthesizer
	messages    store.MessageStore
	embedder    llm.Embedder
	vocab       brain.Vocabulary
}

type Deps struct {
	Classifier  brain.IntentClassifier
	Dispatcher  Dispatcher
	Context     ContextBuilder
	Synthesizer Synthesizer
	Messages    store.MessageStore
	// Embedder is optional; messages are stored without vectors when nil.
	Embedder llm.Embedder
	Vocab    brain.Vocabulary
}

func New(deps Deps) *ChatPipeline {
	return &ChatPipeline{
		classifier:  deps.Classifier,
		dispatcher:  deps.Dispatcher,
		context:     deps.Context,
		synthesizer: deps.Synthesizer,
		messages:    deps.Messages,
		embedder:    deps.Embedder,
		vocab:       deps.Vocab,
	}
}

// Run always produces a reply for non-empty text. Failures in any stage are
// replaced by local defaults; only persistence failures are reported, through
// Result.Degraded.
func (p *ChatPipeline) Run(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sc := logger.StartSpan(ctx, "pipeline.run")
	defer sc.End()
	ctx = sc.Context()

	fields := logger.LogFields{
		ConversationID: logger.Ptr(req.ConversationID),
		Channel:        logger.Ptr(string(req.Channel)),
		Component:      "relay.pipeline",
	}
	if req.RobotID != "" {
		fields.RobotID = logger.Ptr(req.RobotID)
	}
	ctx = logger.WithLogFields(ctx, fields)

	slog.DebugContext(ctx, "pipeline stage", "stage", "received", "text", logger.Truncate(text, 200))

	intent := p.classifier.Classify(ctx, text, p.vocab)
	slog.DebugContext(ctx, "pipeline stage", "stage", "classified",
		"intent_type", intent.Type,
		"urgency", intent.Urgency)

	results := p.dispatcher.Dispatch(ctx, intent.FunctionCalls, brain.RequestContext{
		ConversationID: req.ConversationID,
		ParticipantID:  req.ParticipantID,
		RobotID:        req.RobotID,
		Channel:        req.Channel,
	})
	slog.DebugContext(ctx, "pipeline stage", "stage", "dispatched", "results", len(results))

	convCtx := p.context.Build(ctx, text, req.ConversationID, req.RobotID)
	slog.DebugContext(ctx, "pipeline stage", "stage", "context_built")

	reply := p.synthesizer.Synthesize(ctx, brain.SynthesisRequest{
		Message: text,
		Channel: req.Channel,
		Intent:  intent,
		Results: results,
		Context: convCtx,
	})
	slog.DebugContext(ctx, "pipeline stage", "stage", "synthesized", "source", reply.Source)

	degraded := false
	if err := p.persist(ctx, req, text, intent, results, reply); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "failed to persist conversation turn", "error", err)
		degraded = true
	}
	slog.DebugContext(ctx, "pipeline stage", "stage", "persisted", "degraded", degraded)

	slog.DebugContext(ctx, "pipeline stage", "stage", "returned")

	return &Result{
		Reply:           reply.Text,
		ReplySource:     reply.Source,
		ConversationID:  req.ConversationID,
		Intent:          intent,
		FunctionResults: results,
		Degraded:        degraded,
	}, nil
}

// persist writes the inbound message before the reply so their store
// timestamps keep conversation order. Both writes are attempted even when
// the first fails.
func (p *ChatPipeline) persist(ctx context.Context, req Request, text string, intent model.Intent, results []model.FunctionResult, reply brain.Reply) error {
	inbound := &model.Message{
		ConversationID: req.ConversationID,
		Role:           model.RoleUser,
		Channel:        req.Channel,
		ParticipantID:  req.ParticipantID,
		Type:           model.MessageTypeCommand,
		Text:           text,
		Metadata: metadata(map[string]any{
			"robot_id":    req.RobotID,
			"intent_type": intent.Type,
			"urgency":     intent.Urgency,
			"waypoints":   intent.Waypoints,
		}),
	}
	var errs []error
	if err := p.messages.Append(ctx, inbound, p.embed(ctx, text)); err != nil {
		errs = append(errs, fmt.Errorf("appending inbound message: %w", err))
	}

	calls := make([]string, 0, len(results))
	for _, r := range results {
		calls = append(calls, r.CallName)
	}

	replyMeta := map[string]any{
		"robot_id":       req.RobotID,
		"intent_type":    intent.Type,
		"reply_source":   reply.Source,
		"function_calls": calls,
	}
	if inbound.ID != 0 {
		replyMeta["in_reply_to"] = inbound.ID
	}

	outbound := &model.Message{
		ConversationID: req.ConversationID,
		Role:           model.RoleAssistant,
		Channel:        req.Channel,
		ParticipantID:  req.ParticipantID,
		Type:           model.MessageTypeResponse,
		Text:           reply.Text,
		Metadata:       metadata(replyMeta),
	}
	if err := p.messages.Append(ctx, outbound, p.embed(ctx, reply.Text)); err != nil {
		errs = append(errs, fmt.Errorf("appending reply: %w", err))
	}

	return errors.Join(errs...)
}

// embed returns nil when no embedder is configured or embedding fails; the
// message is then only reachable by text search.
func (p *ChatPipeline) embed(ctx context.Context, text string) []float32 {
	if p.embedder == nil {
		return nil
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "message embedding failed, storing without vector", "error", err)
		return nil
	}
	return vec
}

func metadata(fields map[string]any) json.RawMessage {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return b
}
