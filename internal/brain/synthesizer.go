package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
)

const (
	ReplySourceModel    = "model"
	ReplySourceTemplate = "template"
)

type SynthesisRequest struct {
	Message string
	Channel model.Channel
	Intent  model.Intent
	Results []model.FunctionResult
	Context model.ConversationContext
}

type Reply struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type ResponseSynthesizer struct {
	llm    llm.Client
	vocab  Vocabulary
	policy RetryPolicy
}

// NewResponseSynthesizer builds a synthesizer. A nil client always answers
// from templates.
func NewResponseSynthesizer(client llm.Client, vocab Vocabulary, policy RetryPolicy) *ResponseSynthesizer {
	return &ResponseSynthesizer{llm: client, vocab: vocab, policy: policy.withDefaults()}
}

func (s *ResponseSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) Reply {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.brain.synthesizer"})

	if s.llm == nil {
		return Reply{Text: FallbackReply(req.Intent, req.Results), Source: ReplySourceTemplate}
	}

	content, err := complete(ctx, s.llm, llm.Request{
		SystemPrompt: s.systemPrompt(req),
		UserPrompt:   req.Message,
		MaxTokens:    300,
		Temperature:  llm.Temp(0.7),
	}, s.policy)
	if err != nil {
		slog.WarnContext(ctx, "reply model unavailable, using template", "error", err)
		return Reply{Text: FallbackReply(req.Intent, req.Results), Source: ReplySourceTemplate}
	}

	text, stripped := SanitizeReply(content)
	if stripped > 0 {
		slog.DebugContext(ctx, "stripped speaker labels from reply", "count", stripped)
	}
	if text == "" {
		slog.WarnContext(ctx, "reply model returned empty text, using template")
		return Reply{Text: FallbackReply(req.Intent, req.Results), Source: ReplySourceTemplate}
	}

	return Reply{Text: text, Source: ReplySourceModel}
}

func (s *ResponseSynthesizer) systemPrompt(req SynthesisRequest) string {
	var sb strings.Builder

	sb.WriteString(identityPrompt(req.Channel))
	sb.WriteString("\n\nAvailable locations: ")
	sb.WriteString(strings.Join(s.vocab.Names(), ", "))

	if section := formatContext(req.Context); section != "" {
		sb.WriteString("\n\n")
		sb.WriteString(section)
	}

	if actions := formatActions(req.Results); actions != "" {
		sb.WriteString("\n\nActions taken:\n")
		sb.WriteString(actions)
	}

	fmt.Fprintf(&sb, "\n\nClassified intent: %s (urgency %s)", req.Intent.Type, req.Intent.Urgency)
	if len(req.Intent.Waypoints) > 0 {
		fmt.Fprintf(&sb, "\nMentioned locations: %s", strings.Join(req.Intent.Waypoints, ", "))
	}

	return sb.String()
}

func formatContext(cc model.ConversationContext) string {
	var parts []string

	if len(cc.RecentHistory) > 0 {
		lines := make([]string, 0, len(cc.RecentHistory))
		for _, m := range cc.RecentHistory {
			lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Text))
		}
		parts = append(parts, "Recent conversation:\n"+strings.Join(lines, "\n"))
	}

	if len(cc.RelevantPastMessages) > 0 {
		lines := make([]string, 0, len(cc.RelevantPastMessages))
		for _, m := range cc.RelevantPastMessages {
			lines = append(lines, "- "+m.Text)
		}
		parts = append(parts, "Related past messages:\n"+strings.Join(lines, "\n"))
	}

	if len(cc.RobotStatus) > 0 {
		lines := make([]string, 0, len(cc.RobotStatus))
		for _, r := range cc.RobotStatus {
			lines = append(lines, "- "+r.Text())
		}
		parts = append(parts, "Robot status:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

// formatActions lists successful results only; failures are left for the
// reply to omit rather than announce.
func formatActions(results []model.FunctionResult) string {
	var lines []string
	for _, r := range results {
		if r.Success {
			lines = append(lines, fmt.Sprintf("- %s: %s", r.CallName, r.Message))
		}
	}
	return strings.Join(lines, "\n")
}

// FallbackReply is the fixed per-intent reply used when no model reply is
// available.
func FallbackReply(intent model.Intent, results []model.FunctionResult) string {
	switch intent.Type {
	case model.IntentNavigation:
		if len(intent.Waypoints) == 0 {
			return "Where would you like to go? Tell me a location and I'll guide you there."
		}
		dest := formatWaypoints(intent.Waypoints)
		if navigationSucceeded(results) {
			return fmt.Sprintf("I've set course for %s. Please follow me!", dest)
		}
		return fmt.Sprintf("I can help you get to %s. Let me guide you there.", dest)
	case model.IntentEmergency:
		return "I've alerted the staff about your emergency. Help is on the way. Please stay calm."
	case model.IntentHelp:
		return "I'm here to help! I can guide you to different locations in the building. Where would you like to go?"
	case model.IntentStatusQuery:
		return "I'm a tour guide robot. I can help you navigate this building and answer questions about the facilities."
	case model.IntentSmalltalk:
		return "Hello! I'm your tour guide robot. I can help you find locations in the building or answer questions. How can I assist you?"
	default:
		return "I'm not sure I understood that. I can guide you to locations in the building or alert staff if you need help."
	}
}

func navigationSucceeded(results []model.FunctionResult) bool {
	for _, r := range results {
		if r.CallName == model.FunctionNavigateToWaypoint {
			return r.Success
		}
	}
	return false
}

func formatWaypoints(waypoints []string) string {
	names := make([]string, len(waypoints))
	for i, w := range waypoints {
		names[i] = strings.ReplaceAll(w, "_", " ")
	}
	return strings.Join(names, ", ")
}
