package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/chat"
)

var (
	askProject string
	askSession string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question grounded in a project's research material",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askProject, "project", "", "project UUID (required)")
	askCmd.Flags().StringVar(&askSession, "session", "", "session UUID to continue (omit to start a new one)")
	_ = askCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(askCmd)
}

func runAsk(_ *cobra.Command, args []string) error {
	projectID, err := uuid.Parse(askProject)
	if err != nil {
		return fmt.Errorf("invalid project ID %q", askProject)
	}

	sessionID := uuid.Nil
	if askSession != "" {
		sessionID, err = uuid.Parse(askSession)
		if err != nil {
			return fmt.Errorf("invalid session ID %q", askSession)
		}
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	result, err := a.Orchestrator.Turn(ctx, chat.TurnRequest{
		ProjectID: projectID,
		SessionID: sessionID,
		Message:   strings.Join(args, " "),
	})
	if err != nil {
		return fmt.Errorf("running chat turn: %w", err)
	}

	fmt.Println(result.Reply.Content)

	if len(result.Reply.Citations) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		seen := make(map[string]bool)
		for _, c := range result.Reply.Citations {
			if seen[c.SourceTitle] {
				continue
			}
			seen[c.SourceTitle] = true
			fmt.Printf("  - %s\n", c.SourceTitle)
		}
	}
	if result.Degraded {
		fmt.Println()
		fmt.Println("Note: semantic search was unavailable; grounding used document order.")
	}

	fmt.Println()
	fmt.Printf("Session: %s (pass --session to continue)\n", result.Session.ID)
	return nil
}
