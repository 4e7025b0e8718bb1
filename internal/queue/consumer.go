package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/internal/model"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter stream for commands that keep failing
	BatchSize    int64         // Entries read per XREADGROUP
	Block        time.Duration // How long XREADGROUP blocks waiting for entries
	RequeueDelay time.Duration // Delay before a failed command is re-added
}

type Message struct {
	ID      string
	Command model.RobotCommand
	Attempt int
	TraceID string
	Raw     redis.XMessage
}

// MessageProcessor handles one command entry.
type MessageProcessor func(ctx context.Context, msg Message) error

type CommandConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewCommandConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*CommandConsumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}

	consumer := &CommandConsumer{client: client, cfg: cfg}
	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

func (c *CommandConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so commands published before the group existed are relayed too.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *CommandConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" reads entries never delivered to this group; stale pending
		// entries belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			parsed, parseErr := ParseMessage(raw)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse command entry, dropping",
					"error", parseErr,
					"stream_entry", raw.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read commands from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *CommandConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	slog.DebugContext(ctx, "command acknowledged", "stream", c.cfg.Stream)
	return nil
}

// Requeue acks msg and appends it again with the attempt counter bumped.
func (c *CommandConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed command for requeue: %w", err)
	}

	values, err := commandValues(msg.Command, msg.Attempt+1)
	if err != nil {
		return err
	}
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		t := time.NewTimer(c.cfg.RequeueDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "command requeued for retry",
		"next_attempt", msg.Attempt+1,
		"reason", errMsg)
	return nil
}

func (c *CommandConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed command for dlq: %w", err)
	}

	values, err := commandValues(msg.Command, msg.Attempt)
	if err != nil {
		return err
	}
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "command sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// Claim takes over entries that another consumer read but never acked.
func (c *CommandConsumer) Claim(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return []Message{}, nil
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim: %w", err)
	}

	messages := make([]Message, 0, len(claimed))
	for _, raw := range claimed {
		parsed, parseErr := ParseMessage(raw)
		if parseErr != nil {
			slog.ErrorContext(ctx, "failed to parse reclaimed entry, acknowledging to prevent loop",
				"error", parseErr,
				"stream_entry", raw.ID)
			_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
			continue
		}
		messages = append(messages, parsed)
	}
	return messages, nil
}

func ParseMessage(raw redis.XMessage) (Message, error) {
	payload, err := parseString(raw.Values, "payload")
	if err != nil {
		return Message{}, err
	}

	var cmd model.RobotCommand
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		return Message{}, fmt.Errorf("decoding payload: %w", err)
	}

	commandID, err := parseInt64(raw.Values, "command_id")
	if err != nil {
		return Message{}, err
	}
	if cmd.ID == 0 {
		cmd.ID = commandID
	}
	if cmd.ID != commandID {
		return Message{}, fmt.Errorf("command_id %d does not match payload id %d", commandID, cmd.ID)
	}

	switch cmd.Kind {
	case model.CommandNavigate:
		if len(cmd.Waypoints) == 0 {
			return Message{}, fmt.Errorf("navigate command without waypoints")
		}
	case model.CommandAlert:
	default:
		return Message{}, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}

	attempt, err := parseOptionalInt(raw.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	traceID, _ := parseOptionalString(raw.Values, "trace_id")
	if traceID == "" {
		traceID = cmd.TraceID
	}

	return Message{
		ID:      raw.ID,
		Command: cmd,
		Attempt: attempt,
		TraceID: traceID,
		Raw:     raw,
	}, nil
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}
