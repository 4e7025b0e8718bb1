package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type chatOptions struct {
	robotID        string
	userID         string
	conversationID string
	timeout        time.Duration
}

type chatResponse struct {
	Reply           string   `json:"reply"`
	ReplySource     string   `json:"reply_source"`
	ConversationID  string   `json:"conversation_id"`
	IntentType      string   `json:"intent_type"`
	Urgency         string   `json:"urgency"`
	Waypoints       []string `json:"waypoints"`
	FunctionResults []struct {
		CallName string `json:"call_name"`
		Success  bool   `json:"success"`
		Message  string `json:"message"`
	} `json:"function_results"`
	Degraded bool `json:"degraded"`
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the relay",
		Long:  "Posts a message as an operator, or as a visitor on a robot with --robot, and prints the reply.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newRelayClient(root.server, opts.timeout)
			return runChat(cmd.Context(), cmd.OutOrStdout(), client, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.robotID, "robot", "", "speak as a visitor on this robot")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	return cmd
}

func runChat(ctx context.Context, out io.Writer, client *relayClient, opts chatOptions, message string) error {
	body := map[string]string{"message": message}
	if opts.userID != "" {
		body["user_id"] = opts.userID
	}
	if opts.conversationID != "" {
		body["conversation_id"] = opts.conversationID
	}

	path := "/api/v1/chat"
	if opts.robotID != "" {
		path = "/api/v1/robot_chat"
		body["robot_id"] = opts.robotID
	}

	var resp chatResponse
	if err := client.postJSON(ctx, path, body, &resp); err != nil {
		return err
	}

	fmt.Fprintln(out, resp.Reply)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "conversation: %s\n", resp.ConversationID)
	fmt.Fprintf(out, "intent:       %s (urgency %s, reply from %s)\n", resp.IntentType, resp.Urgency, resp.ReplySource)
	if len(resp.Waypoints) > 0 {
		fmt.Fprintf(out, "waypoints:    %s\n", strings.Join(resp.Waypoints, ", "))
	}
	for _, fr := range resp.FunctionResults {
		mark := "ok"
		if !fr.Success {
			mark = "failed"
		}
		fmt.Fprintf(out, "function:     %s %s: %s\n", fr.CallName, mark, fr.Message)
	}
	if resp.Degraded {
		fmt.Fprintln(out, "warning:      reply was not saved to the conversation log")
	}
	return nil
}
