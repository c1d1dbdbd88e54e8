package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/voice"
)

var voiceProject string

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Inspect voice model confidence",
}

var voiceReadinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Report whether the voice model has enough evidence",
	RunE:  runVoiceReadiness,
}

var voiceRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild aspect scores from stored patterns",
	RunE:  runVoiceRecompute,
}

func init() {
	voiceCmd.PersistentFlags().StringVar(&voiceProject, "project", "", "project UUID (required)")
	_ = voiceCmd.MarkPersistentFlagRequired("project")

	voiceCmd.AddCommand(voiceReadinessCmd)
	voiceCmd.AddCommand(voiceRecomputeCmd)
	rootCmd.AddCommand(voiceCmd)
}

func runVoiceReadiness(_ *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(voiceProject)
	if err != nil {
		return fmt.Errorf("invalid project ID %q", voiceProject)
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	readiness, err := a.Voice.Readiness(ctx, projectID)
	if err != nil {
		return fmt.Errorf("loading readiness: %w", err)
	}

	printScores(readiness.Scores)
	fmt.Println()
	if readiness.Ready {
		fmt.Println("Voice model: READY")
	} else {
		fmt.Println("Voice model: not ready (every aspect needs a score of 80 or more)")
	}
	return nil
}

func runVoiceRecompute(_ *cobra.Command, _ []string) error {
	projectID, err := uuid.Parse(voiceProject)
	if err != nil {
		return fmt.Errorf("invalid project ID %q", voiceProject)
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	scores, err := a.Voice.Recompute(ctx, projectID)
	if err != nil {
		return fmt.Errorf("recomputing scores: %w", err)
	}
	printScores(scores)
	return nil
}

func printScores(scores []voice.AspectScore) {
	if len(scores) == 0 {
		fmt.Println("No voice data yet. Ingest transcripts and add patterns first.")
		return
	}
	for _, s := range scores {
		fmt.Printf("%-20s %3d / %d  (%d transcripts)\n",
			s.Aspect, s.CurrentScore, s.TargetScore, s.TranscriptCount)
	}
}
