package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/source"
)

var (
	ingestProject string
	ingestTitle   string
	ingestType    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <origin>",
	Short: "Upload and index one piece of research material",
	Long: `Ingest registers a source, extracts its text, chunks it and embeds
the chunks for retrieval.

The origin depends on the type:
  pdf      path to a PDF file
  article  URL of a web article
  text     path to a plain text file (or a transcript)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project UUID (required)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "source title (defaults to the origin's base name)")
	ingestCmd.Flags().StringVar(&ingestType, "type", source.TypeText, "source type: pdf, article, text")
	_ = ingestCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, args []string) error {
	projectID, err := uuid.Parse(ingestProject)
	if err != nil {
		return fmt.Errorf("invalid project ID %q", ingestProject)
	}
	origin := args[0]

	title := ingestTitle
	if title == "" {
		title = filepath.Base(origin)
	}

	// Text-like sources carry their content inline; file-backed and
	// URL-backed sources are read during extraction.
	var raw string
	switch ingestType {
	case source.TypeText, source.TypeYouTube, source.TypeAudio:
		data, err := os.ReadFile(origin)
		if err != nil {
			return fmt.Errorf("reading %s: %w", origin, err)
		}
		raw = string(data)
	}

	ctx := context.Background()
	a, _, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	src, err := a.Sources.Create(ctx, projectID, title, ingestType, origin, raw)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}

	ingested, err := a.Ingestor.Ingest(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", src.ID, err)
	}

	fmt.Printf("Source: %s\n", ingested.ID)
	fmt.Printf("Title:  %s\n", ingested.Title)
	fmt.Printf("Status: %s\n", ingested.Status)
	return nil
}
