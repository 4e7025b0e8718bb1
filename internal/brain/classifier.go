package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
)

// ErrMalformedOutput means the model replied but not with a usable intent.
var ErrMalformedOutput = errors.New("malformed model output")

// IntentClassifier never fails: on any problem it degrades to keyword matching.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, vocab Vocabulary) model.Intent
}

type intentResponse struct {
	IntentType         string                 `json:"intent_type" jsonschema:"enum=navigation,enum=status_query,enum=smalltalk,enum=help,enum=emergency,enum=unknown" jsonschema_description:"Primary intent of the message"`
	MentionedWaypoints []string               `json:"mentioned_waypoints" jsonschema_description:"Waypoint names from the vocabulary mentioned in the message, in order"`
	Urgency            string                 `json:"urgency" jsonschema:"enum=low,enum=medium,enum=high"`
	FunctionCalls      []functionCallResponse `json:"function_calls" jsonschema_description:"Functions to execute; empty when none apply"`
}

type functionCallResponse struct {
	Name string       `json:"name" jsonschema:"enum=navigate_to_waypoint,enum=alert_humans"`
	Args functionArgs `json:"args"`
}

type functionArgs struct {
	Waypoints []string `json:"waypoints" jsonschema_description:"Destinations for navigate_to_waypoint; empty otherwise"`
	Message   string   `json:"message" jsonschema_description:"Alert text for alert_humans; empty otherwise"`
	RobotID   string   `json:"robot_id" jsonschema_description:"Robot an operator addresses, such as robot_02; empty when none is named"`
}

var intentSchema = llm.GenerateSchema[intentResponse]()

type ModelClassifier struct {
	llm      llm.Client
	fallback FallbackClassifier
	policy   RetryPolicy
}

// NewModelClassifier wraps client. A nil client classifies by keywords only.
func NewModelClassifier(client llm.Client, policy RetryPolicy) *ModelClassifier {
	return &ModelClassifier{llm: client, policy: policy.withDefaults()}
}

func (c *ModelClassifier) Classify(ctx context.Context, text string, vocab Vocabulary) model.Intent {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.brain.classifier"})

	if strings.TrimSpace(text) == "" || c.llm == nil {
		return c.fallback.Classify(ctx, text, vocab)
	}

	content, err := c.complete(ctx, text, vocab)
	if err != nil {
		slog.WarnContext(ctx, "intent model unavailable, using keyword fallback", "error", err)
		return c.fallback.Classify(ctx, text, vocab)
	}

	intent, err := parseIntent(content, text, vocab)
	if err != nil {
		slog.WarnContext(ctx, "intent model output unusable, using keyword fallback",
			"error", err,
			"output", logger.Truncate(content, 200))
		return c.fallback.Classify(ctx, text, vocab)
	}

	slog.DebugContext(ctx, "intent classified",
		"intent_type", intent.Type,
		"urgency", intent.Urgency,
		"waypoints", intent.Waypoints,
		"function_calls", len(intent.FunctionCalls))

	return intent
}

func (c *ModelClassifier) complete(ctx context.Context, text string, vocab Vocabulary) (string, error) {
	content, err := complete(ctx, c.llm, llm.Request{
		SystemPrompt: classifierSystemPrompt(vocab),
		UserPrompt:   text,
		SchemaName:   "intent_response",
		Schema:       intentSchema,
		MaxTokens:    512,
		Temperature:  llm.Temp(0),
	}, c.policy)
	if err != nil {
		return "", fmt.Errorf("intent classification: %w", err)
	}
	return content, nil
}

// parseIntent decodes model output, first as a whole and then from the first
// balanced JSON object embedded in surrounding prose.
func parseIntent(content, text string, vocab Vocabulary) (model.Intent, error) {
	var resp intentResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		fragment, ok := extractJSONObject(content)
		if !ok {
			return model.Intent{}, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
		}
		resp = intentResponse{}
		if err := json.Unmarshal([]byte(fragment), &resp); err != nil {
			return model.Intent{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}

	if strings.TrimSpace(resp.IntentType) == "" {
		return model.Intent{}, fmt.Errorf("%w: missing intent_type", ErrMalformedOutput)
	}

	return normalizeIntent(resp, text, vocab), nil
}

// normalizeIntent maps model output onto the closed vocabularies. Unknown
// function names survive so dispatch can report them.
func normalizeIntent(resp intentResponse, text string, vocab Vocabulary) model.Intent {
	intent := model.NewIntent(model.ParseIntentType(resp.IntentType), model.ParseUrgency(resp.Urgency))
	intent.Waypoints = vocab.Filter(resp.MentionedWaypoints)

	safety := intent.Type == model.IntentEmergency || intent.Type == model.IntentHelp
	hasAlert := false

	for _, fc := range resp.FunctionCalls {
		name := strings.TrimSpace(fc.Name)
		switch name {
		case model.FunctionNavigateToWaypoint:
			if safety {
				continue
			}
			waypoints := vocab.Filter(fc.Args.Waypoints)
			if len(waypoints) == 0 {
				continue
			}
			call := navigateCall(waypoints)
			if robotID := strings.TrimSpace(fc.Args.RobotID); robotID != "" {
				call.Arguments["robot_id"] = robotID
			}
			intent.FunctionCalls = append(intent.FunctionCalls, call)
		case model.FunctionAlertHumans:
			message := strings.TrimSpace(fc.Args.Message)
			if message == "" {
				message = "Emergency reported: " + strings.TrimSpace(text)
			}
			hasAlert = true
			intent.FunctionCalls = append(intent.FunctionCalls, model.FunctionCall{
				Name:      model.FunctionAlertHumans,
				Arguments: map[string]any{"message": message},
			})
		default:
			intent.FunctionCalls = append(intent.FunctionCalls, model.FunctionCall{
				Name:      name,
				Arguments: map[string]any{},
			})
		}
	}

	if intent.Type == model.IntentEmergency {
		intent.Urgency = model.UrgencyHigh
		if !hasAlert {
			intent.FunctionCalls = append(intent.FunctionCalls, alertCall(text))
		}
	}

	targetMentionedRobot(&intent, text)
	return intent
}
