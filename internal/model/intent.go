package model

import "strings"

type IntentType string

const (
	IntentNavigation  IntentType = "navigation"
	IntentStatusQuery IntentType = "status_query"
	IntentSmalltalk   IntentType = "smalltalk"
	IntentHelp        IntentType = "help"
	IntentEmergency   IntentType = "emergency"
	IntentUnknown     IntentType = "unknown"
)

// ParseIntentType maps free-form model output onto a known type; anything
// unrecognized becomes IntentUnknown.
func ParseIntentType(s string) IntentType {
	switch t := IntentType(strings.ToLower(strings.TrimSpace(s))); t {
	case IntentNavigation, IntentStatusQuery, IntentSmalltalk, IntentHelp, IntentEmergency:
		return t
	default:
		return IntentUnknown
	}
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency defaults anything unrecognized to UrgencyLow.
func ParseUrgency(s string) Urgency {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyMedium, UrgencyHigh:
		return u
	default:
		return UrgencyLow
	}
}

const (
	FunctionNavigateToWaypoint = "navigate_to_waypoint"
	FunctionAlertHumans        = "alert_humans"
)

// Intent is built once per message and not mutated afterwards.
// Waypoints and FunctionCalls are never nil.
type Intent struct {
	Type          IntentType     `json:"intent_type"`
	Waypoints     []string       `json:"mentioned_waypoints"`
	Urgency       Urgency        `json:"urgency"`
	FunctionCalls []FunctionCall `json:"function_calls"`
}

// NewIntent returns an Intent with empty, non-nil collections.
func NewIntent(t IntentType, urgency Urgency) Intent {
	return Intent{
		Type:          t,
		Waypoints:     []string{},
		Urgency:       urgency,
		FunctionCalls: []FunctionCall{},
	}
}

type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"args"`
}

type FunctionResult struct {
	CallName string         `json:"call_name"`
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Payload  map[string]any `json:"payload,omitempty"`
}
