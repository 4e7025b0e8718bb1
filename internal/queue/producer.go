package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"wayfindr.app/relay/internal/model"
)

// CommandProducer appends robot commands to the command stream.
type CommandProducer struct {
	client *redis.Client
	stream string
}

func NewCommandProducer(client *redis.Client, stream string) *CommandProducer {
	return &CommandProducer{client: client, stream: stream}
}

func (p *CommandProducer) Publish(ctx context.Context, cmd model.RobotCommand) error {
	values, err := commandValues(cmd, 1)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd command (stream=%s): %w", p.stream, err)
	}

	slog.InfoContext(ctx, "command enqueued",
		"command_id", cmd.ID,
		"kind", cmd.Kind,
		"robot_id", cmd.RobotID,
		"stream_entry", id)
	return nil
}

func commandValues(cmd model.RobotCommand, attempt int) (map[string]any, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	values := map[string]any{
		"command_id": cmd.ID,
		"kind":       string(cmd.Kind),
		"payload":    string(payload),
		"attempt":    attempt,
	}
	if cmd.TraceID != "" {
		values["trace_id"] = cmd.TraceID
	}
	return values, nil
}
