package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/agentdesk/internal/chat"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/notify"
)

const clientTimeout = 90 * time.Second

func init() {
	for _, c := range []*cobra.Command{notificationsWatchCmd, chatCmd} {
		c.Flags().String("server", envOr("AGENTDESK_URL", "http://localhost:8080"), "agentdesk server URL")
		c.Flags().String("token", os.Getenv("AGENTDESK_TOKEN"), "operator API token")
	}
	chatCmd.Flags().String("agent", string(domain.AgentTypeCoordinator), "agent type: coordinator, marketpulse or coach")
	chatCmd.Flags().String("client-id", "", "CRM client the conversation is about")

	notificationsCmd.AddCommand(notificationsWatchCmd)
	rootCmd.AddCommand(notificationsCmd, chatCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func clientFlags(cmd *cobra.Command) (server, token string, err error) {
	server, _ = cmd.Flags().GetString("server")
	token, _ = cmd.Flags().GetString("token")
	if token == "" {
		return "", "", fmt.Errorf("--token or AGENTDESK_TOKEN is required")
	}
	return server, token, nil
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Work with the notification feed",
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print notifications as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		server, token, err := clientFlags(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		feed := notify.NewFeed()
		return notify.Watch(ctx, server, token, feed, func(f notify.Frame) {
			switch f.Type {
			case notify.FrameSnapshot:
				fmt.Fprintf(out, "%d notifications, %d unread\n", len(f.Notifications), feed.UnreadCount())
				for i := len(f.Notifications) - 1; i >= 0; i-- {
					printNotification(out, f.Notifications[i])
				}
			case notify.FrameNotification:
				printNotification(out, f.Notification)
			}
		})
	},
}

func printNotification(w io.Writer, n *domain.Notification) {
	if n == nil {
		return
	}
	marker := " "
	if !n.Read {
		marker = "*"
	}
	fmt.Fprintf(w, "%s %s [%s] %s: %s\n", marker, n.CreatedAt.Local().Format("Jan 02 15:04"), n.Kind, n.Title, n.Message)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to an agent from the terminal (/eval, /reset, /quit)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		server, token, err := clientFlags(cmd)
		if err != nil {
			return err
		}
		agentFlag, _ := cmd.Flags().GetString("agent")
		agentType, err := domain.ParseAgentType(agentFlag)
		if err != nil {
			return err
		}
		var clientID *string
		if v, _ := cmd.Flags().GetString("client-id"); v != "" {
			clientID = &v
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		apiClient := chat.NewClient(server, token, clientTimeout)
		o := chat.NewOrchestrator(apiClient, apiClient, agentType, chat.WithNotifier(notify.NewRemoteNotifier(apiClient)))
		defer o.Close()

		out := cmd.OutOrStdout()
		if id, err := o.Initialize(ctx, clientID); err != nil {
			fmt.Fprintf(out, "(history will not be saved: %v)\n", err)
		} else {
			fmt.Fprintf(out, "Session %s with %s\n", id, agentType)
		}

		return chatLoop(ctx, o, cmd.InOrStdin(), out)
	},
}

func chatLoop(ctx context.Context, o *chat.Orchestrator, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/reset":
			o.Reset()
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		case "/eval":
			eval, err := o.Evaluate(ctx)
			if err != nil {
				return err
			}
			if eval == nil {
				fmt.Fprintln(out, "(need at least two messages to evaluate)")
				continue
			}
			fmt.Fprintf(out, "Tone %d  Objections %d  Facts %d  Overall %d\n%s\n",
				eval.Tone, eval.ObjectionHandling, eval.FactUsage, eval.Overall, eval.Feedback)
			continue
		}

		reply, err := o.Send(ctx, line, nil)
		var sendErr *chat.SendError
		switch {
		case errors.As(err, &sendErr):
			fmt.Fprintf(out, "! %s\n", sendErr.Error())
		case err != nil:
			return err
		}
		fmt.Fprintln(out, reply.Content)
	}
}
