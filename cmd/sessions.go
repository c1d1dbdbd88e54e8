package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/chat"
)

var sessionsProject string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsProject, "project", "", "project UUID (required)")
	_ = sessionsListCmd.MarkFlagRequired("project")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(_ *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(sessionsProject)
	if err != nil {
		return fmt.Errorf("invalid project ID %q", sessionsProject)
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	sessions, err := a.Sessions.ListSessions(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	for _, sess := range sessions {
		fmt.Printf("%s  %-50s  %s\n", sess.ID, sess.Title, formatTime(sess.UpdatedAt))
	}
	return nil
}

func runSessionsShow(_ *cobra.Command, args []string) error {
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q", args[0])
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	sess, err := a.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	messages, err := a.Sessions.History(ctx, sessionID, 200)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Title:   %s\n", sess.Title)
	fmt.Printf("Updated: %s\n", formatTime(sess.UpdatedAt))
	fmt.Println()

	for _, msg := range messages {
		role := "You"
		if msg.Role == chat.RoleAssistant {
			role = "Inkwell"
		}
		fmt.Printf("%s> %s\n\n", role, msg.Content)
	}
	return nil
}

func runSessionsDelete(_ *cobra.Command, args []string) error {
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q", args[0])
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	if err := a.Sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	fmt.Printf("Session %s deleted.\n", sessionID)
	return nil
}

// formatTime renders a timestamp relative to now for recent activity.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
