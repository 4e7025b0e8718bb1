package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
)

// RequestContext describes who a dispatched call acts on behalf of.
type RequestContext struct {
	ConversationID string
	ParticipantID  string
	RobotID        string
	Channel        model.Channel
}

// Handler executes one function call. Returning an error marks the call failed.
type Handler func(ctx context.Context, call model.FunctionCall, req RequestContext) (model.FunctionResult, error)

// CommandPublisher hands robot commands to whatever relays them to robots.
type CommandPublisher interface {
	Publish(ctx context.Context, cmd model.RobotCommand) error
}

var errCallTimeout = errors.New("function call timed out")

type FunctionRegistry struct {
	handlers map[string]Handler
	timeout  time.Duration
}

func NewFunctionRegistry(timeout time.Duration) *FunctionRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FunctionRegistry{handlers: make(map[string]Handler), timeout: timeout}
}

// NewDefaultRegistry registers navigate_to_waypoint and alert_humans.
// publisher may be nil, in which case commands are only logged.
func NewDefaultRegistry(timeout time.Duration, vocab Vocabulary, publisher CommandPublisher) *FunctionRegistry {
	r := NewFunctionRegistry(timeout)
	r.Register(model.FunctionNavigateToWaypoint, NavigateHandler(vocab, publisher))
	r.Register(model.FunctionAlertHumans, AlertHandler(publisher))
	return r
}

func (r *FunctionRegistry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Dispatch runs every call concurrently and returns one result per call in
// call order. A failing, panicking, slow or unknown call only affects its own
// result.
func (r *FunctionRegistry) Dispatch(ctx context.Context, calls []model.FunctionCall, req RequestContext) []model.FunctionResult {
	results := make([]model.FunctionResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.FunctionCall) {
			defer wg.Done()
			results[i] = r.execute(ctx, call, req)
		}(i, call)
	}
	wg.Wait()

	return results
}

type callOutcome struct {
	result model.FunctionResult
	err    error
}

func (r *FunctionRegistry) execute(ctx context.Context, call model.FunctionCall, req RequestContext) model.FunctionResult {
	h, ok := r.handlers[call.Name]
	if !ok {
		slog.WarnContext(ctx, "unknown function requested", "function", call.Name)
		return model.FunctionResult{
			CallName: "unknown_" + call.Name,
			Success:  false,
			Message:  fmt.Sprintf("Unknown function: %s", call.Name),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// buffered so an abandoned handler can still finish and exit
	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callOutcome{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		res, err := h(callCtx, call, req)
		done <- callOutcome{result: res, err: err}
	}()

	var out callOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = callOutcome{err: fmt.Errorf("%w after %s", errCallTimeout, r.timeout)}
	}

	if out.err != nil {
		slog.WarnContext(ctx, "function call failed", "function", call.Name, "error", out.err)
		return model.FunctionResult{
			CallName: call.Name,
			Success:  false,
			Message:  out.err.Error(),
		}
	}

	out.result.CallName = call.Name
	out.result.Success = true
	return out.result
}

// NavigateHandler validates destinations against vocab and queues a navigate command.
func NavigateHandler(vocab Vocabulary, publisher CommandPublisher) Handler {
	return func(ctx context.Context, call model.FunctionCall, req RequestContext) (model.FunctionResult, error) {
		requested := stringList(call.Arguments["waypoints"])
		waypoints := vocab.Filter(requested)
		if len(waypoints) == 0 {
			return model.FunctionResult{}, fmt.Errorf("no valid waypoints in %v", requested)
		}

		robotID := targetRobot(call, req)
		cmd := model.RobotCommand{
			ID:             id.New(),
			Kind:           model.CommandNavigate,
			RobotID:        robotID,
			ConversationID: req.ConversationID,
			Waypoints:      waypoints,
			TraceID:        logger.TraceID(ctx),
			CreatedAt:      time.Now().UTC(),
		}
		ctx = logger.WithLogFields(ctx, logger.LogFields{CommandID: logger.Ptr(cmd.ID)})

		if err := publish(ctx, publisher, cmd); err != nil {
			return model.FunctionResult{}, err
		}

		slog.InfoContext(ctx, "navigation command queued", "waypoints", waypoints, "robot_id", robotID)

		return model.FunctionResult{
			Message: fmt.Sprintf("Navigation to %s has been queued", strings.Join(waypoints, ", ")),
			Payload: map[string]any{
				"command_id": cmd.ID,
				"robot_id":   robotID,
				"waypoints":  waypoints,
				"status":     "queued",
			},
		}, nil
	}
}

var highPriorityAlertKeywords = []string{"emergency", "fire", "danger", "urgent"}

// AlertPriority is HIGH when the alert text names a hazard, MEDIUM otherwise.
func AlertPriority(message string) string {
	lowered := strings.ToLower(message)
	for _, kw := range highPriorityAlertKeywords {
		if strings.Contains(lowered, kw) {
			return "HIGH"
		}
	}
	return "MEDIUM"
}

// AlertHandler queues an alert for human staff.
func AlertHandler(publisher CommandPublisher) Handler {
	return func(ctx context.Context, call model.FunctionCall, req RequestContext) (model.FunctionResult, error) {
		message, _ := call.Arguments["message"].(string)
		message = strings.TrimSpace(message)
		if message == "" {
			message = "Alert triggered"
		}

		cmd := model.RobotCommand{
			ID:             id.New(),
			Kind:           model.CommandAlert,
			RobotID:        req.RobotID,
			ConversationID: req.ConversationID,
			Message:        message,
			Priority:       AlertPriority(message),
			TraceID:        logger.TraceID(ctx),
			CreatedAt:      time.Now().UTC(),
		}
		ctx = logger.WithLogFields(ctx, logger.LogFields{CommandID: logger.Ptr(cmd.ID)})

		if err := publish(ctx, publisher, cmd); err != nil {
			return model.FunctionResult{}, err
		}

		slog.WarnContext(ctx, "staff alert raised", "priority", cmd.Priority, "message", logger.Truncate(message, 200))

		return model.FunctionResult{
			Message: fmt.Sprintf("%s priority alert sent to staff", cmd.Priority),
			Payload: map[string]any{
				"alert_id": cmd.ID,
				"robot_id": req.RobotID,
				"priority": cmd.Priority,
				"status":   "logged",
			},
		}, nil
	}
}

func publish(ctx context.Context, publisher CommandPublisher, cmd model.RobotCommand) error {
	if publisher == nil {
		return nil
	}
	if err := publisher.Publish(ctx, cmd); err != nil {
		return fmt.Errorf("publishing %s command: %w", cmd.Kind, err)
	}
	return nil
}

// stringList accepts []string or the []any produced by JSON decoding.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}
