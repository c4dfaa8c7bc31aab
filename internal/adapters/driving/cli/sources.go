package cli

import (
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured knowledge sources",
	Long: `Lists the knowledge sources from the configuration file along
with their ingestion status.`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	if len(configuredSources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	cmd.Println("Sources:")
	for _, src := range configuredSources {
		name := src.DisplayName
		if name == "" {
			name = src.ID
		}
		cmd.Printf("  %s (%s) - %s\n", src.ID, src.Kind, name)

		if ingestionRunner == nil {
			continue
		}
		status, err := ingestionRunner.Status(cmd.Context(), src.ID)
		if err != nil || status == nil {
			continue
		}
		if status.Running {
			cmd.Printf("      ingesting: %d indexed, %d skipped, %d failed\n",
				status.Processed, status.Skipped, status.Failed)
		} else if status.Processed+status.Skipped+status.Failed > 0 {
			cmd.Printf("      last run: %d indexed, %d skipped, %d failed\n",
				status.Processed, status.Skipped, status.Failed)
		}
	}

	return nil
}
