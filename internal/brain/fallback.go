package brain

import (
	"context"
	"strings"
	"unicode"

	"wayfindr.app/relay/internal/model"
)

var (
	emergencyKeywords  = []string{"emergency", "fire", "help me", "urgent", "danger", "stuck", "scared", "hurt", "injured", "trapped"}
	helpKeywords       = []string{"help", "lost", "confused", "don't know"}
	navigationKeywords = []string{"take me", "go to", "navigate", "where is", "how do i get to", "find", "directions", "show me the way"}
	statusKeywords     = []string{"status", "battery", "where are you", "location"}
	smalltalkKeywords  = []string{"hello", "hi", "hey", "good morning", "good afternoon", "bye", "goodbye", "see you", "thanks", "thank you"}
)

// FallbackClassifier extracts intent by keyword matching. It is pure: the
// same text and vocabulary always produce an identical Intent.
type FallbackClassifier struct{}

func (FallbackClassifier) Classify(_ context.Context, text string, vocab Vocabulary) model.Intent {
	return classifyByKeywords(text, vocab)
}

// classifyByKeywords checks keyword sets in priority order. Safety signals come
// first so that "take me to the cafeteria, I'm stuck" never yields a
// navigate call.
func classifyByKeywords(text string, vocab Vocabulary) model.Intent {
	if strings.TrimSpace(text) == "" {
		return model.NewIntent(model.IntentUnknown, model.UrgencyLow)
	}

	phrase := phraseText(text)
	waypoints := vocab.Match(text)

	var intent model.Intent
	switch {
	case containsAny(phrase, emergencyKeywords):
		intent = model.NewIntent(model.IntentEmergency, model.UrgencyHigh)
		intent.FunctionCalls = []model.FunctionCall{alertCall(text)}
	case containsAny(phrase, helpKeywords):
		intent = model.NewIntent(model.IntentHelp, model.UrgencyMedium)
	case containsAny(phrase, navigationKeywords) && len(waypoints) > 0:
		intent = model.NewIntent(model.IntentNavigation, model.UrgencyLow)
		intent.FunctionCalls = []model.FunctionCall{navigateCall(waypoints)}
	case containsAny(phrase, statusKeywords):
		intent = model.NewIntent(model.IntentStatusQuery, model.UrgencyLow)
	case containsAny(phrase, navigationKeywords):
		intent = model.NewIntent(model.IntentNavigation, model.UrgencyLow)
	case len(waypoints) > 0:
		// a bare destination ("cafeteria please") is a navigation request
		intent = model.NewIntent(model.IntentNavigation, model.UrgencyLow)
		intent.FunctionCalls = []model.FunctionCall{navigateCall(waypoints)}
	case containsAny(phrase, smalltalkKeywords):
		intent = model.NewIntent(model.IntentSmalltalk, model.UrgencyLow)
	default:
		intent = model.NewIntent(model.IntentUnknown, model.UrgencyLow)
	}

	intent.Waypoints = waypoints
	targetMentionedRobot(&intent, text)
	return intent
}

func alertCall(text string) model.FunctionCall {
	return model.FunctionCall{
		Name:      model.FunctionAlertHumans,
		Arguments: map[string]any{"message": "Emergency reported: " + strings.TrimSpace(text)},
	}
}

func navigateCall(waypoints []string) model.FunctionCall {
	return model.FunctionCall{
		Name:      model.FunctionNavigateToWaypoint,
		Arguments: map[string]any{"waypoints": append([]string(nil), waypoints...)},
	}
}

// phraseText lower-cases text and collapses everything except letters, digits
// and apostrophes into single spaces, padded at both ends, so keywords can be
// matched as whole words: " hi " matches "hi!" but not "this".
func phraseText(text string) string {
	var sb strings.Builder
	sb.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			sb.WriteRune(r)
			space = false
		case r == '’':
			sb.WriteRune('\'')
			space = false
		case !space:
			sb.WriteByte(' ')
			space = true
		}
	}
	if !space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

func containsAny(phrase string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(phrase, " "+kw+" ") {
			return true
		}
	}
	return false
}
