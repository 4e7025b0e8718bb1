package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"wayfindr.app/relay/internal/model"
)

const reconnectDelay = 2 * time.Second

var (
	timeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	telemetryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	conversationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	idStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	alertStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type logsOptions struct {
	origin string
	raw    bool
}

func newLogsCmd(root *rootOptions) *cobra.Command {
	opts := logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail the relay's live log",
		Long:  "Streams telemetry and conversation events from the relay over a websocket, reconnecting until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.origin != "" && !model.Origin(opts.origin).Valid() {
				return fmt.Errorf("--origin must be telemetry or conversation")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runLogs(ctx, cmd.OutOrStdout(), root.server, opts)
		},
	}

	cmd.Flags().StringVar(&opts.origin, "origin", "", "only show telemetry or conversation events")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print events as JSON lines")
	return cmd
}

func runLogs(ctx context.Context, out io.Writer, server string, opts logsOptions) error {
	url, err := streamURL(server, opts.origin)
	if err != nil {
		return err
	}

	for {
		err := tail(ctx, out, url, opts.raw)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("stream disconnected, reconnecting", "error", err, "delay", reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func tail(ctx context.Context, out io.Writer, url string, raw bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer conn.Close()

	slog.Debug("stream connected", "url", url)

	// Unblock ReadMessage on interrupt.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if raw {
			fmt.Fprintln(out, string(data))
			continue
		}

		var ev model.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("skipping undecodable frame", "error", err)
			continue
		}
		fmt.Fprintln(out, formatEvent(ev))
	}
}

// formatEvent renders one event as a single terminal line.
func formatEvent(ev model.StreamEvent) string {
	label := conversationStyle.Render("CONV")
	if ev.Origin == model.OriginTelemetry {
		label = telemetryStyle.Render("TELE")
	}

	text := strings.ReplaceAll(ev.Text, "\n", " ")
	if strings.HasPrefix(text, "ALERT") || ev.Metadata["status"] == "stuck" {
		text = alertStyle.Render(text)
	}

	var who string
	if role, ok := ev.Metadata["role"].(string); ok && role != "" {
		who = role + ": "
	} else if robot, ok := ev.Metadata["robot_id"].(string); ok && robot != "" {
		who = robot + ": "
	}

	return fmt.Sprintf("%s %s %s %s%s",
		timeStyle.Render(ev.CreatedAt.Local().Format("15:04:05")),
		label,
		idStyle.Render(model.ShortID(ev.SourceID)),
		who,
		text)
}
