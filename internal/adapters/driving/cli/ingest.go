package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/junyang168/smart-answer/internal/core/ports/driving"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-id]",
	Short: "Ingest content from sources into the search index",
	Long: `Runs the ingestion pipeline for configured sources.
If a source ID is provided, only that source is ingested.
Otherwise, all sources are ingested. Unchanged content is skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}
	if ingestionRunner == nil {
		return errNotConfigured
	}

	ctx := cmd.Context()

	if len(args) > 0 {
		sourceID := args[0]
		cmd.Printf("Ingesting source: %s...\n", sourceID)

		if err := ingestWithProgress(ctx, cmd, ingestionRunner, sourceID); err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		cmd.Printf("Source %s ingested successfully.\n", sourceID)
		return nil
	}

	cmd.Println("Ingesting all sources...")

	if err := ingestionRunner.IngestAll(ctx); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	cmd.Println("All sources ingested successfully.")
	return nil
}

// ingestWithProgress runs ingestion while displaying progress updates.
func ingestWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	runner driving.IngestionRunner,
	sourceID string,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Ingest(ctx, sourceID)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Print final counts (status errors are best effort)
			status, statusErr := runner.Status(ctx, sourceID)
			if statusErr == nil && status != nil {
				cmd.Printf("\rIndexed %d items, skipped %d, %d failed\n",
					status.Processed, status.Skipped, status.Failed)
			}
			return err
		case <-ticker.C:
			status, statusErr := runner.Status(ctx, sourceID)
			if statusErr == nil && status != nil && status.Processed > lastCount {
				cmd.Printf("\rProcessing... %d items", status.Processed)
				lastCount = status.Processed
			}
		}
	}
}
