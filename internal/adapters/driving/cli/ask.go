package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Retrieve grounded context for a question",
	Long: `Runs the retrieval tools for the question and prints the merged
context with its citable references. When every primary source comes back
empty, the configured fallback tool answers instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}
	if contextService == nil {
		return errNotConfigured
	}

	result, err := contextService.Retrieve(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if result.Empty() {
		cmd.Println("No context found.")
		return nil
	}

	if result.Prefix != "" {
		cmd.Println(result.Prefix)
	}
	cmd.Println(result.Content)

	if len(result.References) > 0 {
		cmd.Println()
		cmd.Println("References:")
		for i, ref := range result.References {
			if ref.Link != "" {
				cmd.Printf("  [%d] %s - %s\n", i+1, ref.Title, ref.Link)
			} else {
				cmd.Printf("  [%d] %s\n", i+1, ref.Title)
			}
		}
	}

	return nil
}
