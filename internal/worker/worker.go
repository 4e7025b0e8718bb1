package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
	"wayfindr.app/relay/internal/queue"
)

type Config struct {
	MaxAttempts int
	// ErrorBackoff is the pause after a failed stream read.
	ErrorBackoff time.Duration
}

// Worker relays robot commands from the command stream into the conversation
// log as notification messages.
type Worker struct {
	consumer Consumer
	txRunner TxRunner
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, txRunner TxRunner, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		txRunner:  txRunner,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.worker.commands"})
	slog.InfoContext(ctx, "command relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "command relay stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		w.Handle(ctx, msg)
	}
	return nil
}

// Handle processes msg and routes a failure to requeue or the DLQ.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "command processing failed",
			"error", err,
			"stream_entry", msg.ID,
			"command_id", msg.Command.ID)
		w.handleFailedMessage(ctx, msg, err)
	}
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in command processing",
				"panic", r,
				"stream_entry", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage writes the notification for one command and acks it. A
// command already relayed is acked without writing again.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.relay_command")
	defer sc.End()
	ctx = sc.Context()

	cmd := msg.Command
	fields := logger.LogFields{
		CommandID: logger.Ptr(cmd.ID),
		StreamID:  logger.Ptr(msg.ID),
	}
	if cmd.ConversationID != "" {
		fields.ConversationID = logger.Ptr(cmd.ConversationID)
	}
	if cmd.RobotID != "" {
		fields.RobotID = logger.Ptr(cmd.RobotID)
	}
	ctx = logger.WithLogFields(ctx, fields)

	slog.InfoContext(ctx, "relaying command", "kind", cmd.Kind, "attempt", msg.Attempt)

	relayed := false
	txErr := w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		claimed, err := sp.Deliveries().Claim(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("claiming delivery: %w", err)
		}
		if !claimed {
			slog.InfoContext(ctx, "command already relayed, skipping")
			return nil
		}

		note, err := NotificationMessage(cmd)
		if err != nil {
			return err
		}
		if err := sp.Messages().Append(ctx, note, nil); err != nil {
			return fmt.Errorf("appending notification: %w", err)
		}
		relayed = true
		return nil
	})
	if txErr != nil {
		sc.RecordError(txErr)
		// not acked: requeue or DLQ decides what happens next
		return fmt.Errorf("transaction failed: %w", txErr)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// the delivery marker makes a redelivery harmless
		slog.WarnContext(ctx, "failed to ACK command", "error", err)
	}

	if relayed {
		slog.InfoContext(ctx, "command relayed")
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"stream_entry", msg.ID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed command",
		"stream_entry", msg.ID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue command", "error", requeueErr)
	}
}

var errUnsupportedCommand = errors.New("unsupported command kind")

// NotificationMessage renders cmd as the conversation log entry the dashboard
// shows for it.
func NotificationMessage(cmd model.RobotCommand) (*model.Message, error) {
	var text string
	switch cmd.Kind {
	case model.CommandNavigate:
		text = fmt.Sprintf("Navigation command: [%s]", strings.Join(cmd.Waypoints, " "))
	case model.CommandAlert:
		priority := cmd.Priority
		if priority == "" {
			priority = "MEDIUM"
		}
		text = fmt.Sprintf("ALERT [%s]: %s", priority, cmd.Message)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedCommand, cmd.Kind)
	}

	meta := map[string]any{
		"command_id": cmd.ID,
		"kind":       cmd.Kind,
	}
	if cmd.RobotID != "" {
		meta["robot_id"] = cmd.RobotID
	}
	if len(cmd.Waypoints) > 0 {
		meta["waypoints"] = cmd.Waypoints
	}
	if cmd.Priority != "" {
		meta["priority"] = cmd.Priority
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding notification metadata: %w", err)
	}

	conversationID := cmd.ConversationID
	if conversationID == "" {
		conversationID = "system"
	}

	return &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleSystem,
		Channel:        model.ChannelRobot,
		ParticipantID:  cmd.RobotID,
		Type:           model.MessageTypeNotification,
		Text:           text,
		Metadata:       raw,
	}, nil
}
