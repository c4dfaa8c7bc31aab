// Package cli implements the command line interface. Commands talk to
// the core services through the driving ports; wiring happens lazily so
// metadata commands (version, help) run without a configuration file.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/junyang168/smart-answer/internal/app"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
	"github.com/junyang168/smart-answer/internal/logger"
)

var (
	configPath string
	verbose    bool
	version    = "dev"

	// Services are injected by ensureServices, or directly in tests.
	contextService    driving.ContextService
	ingestionRunner   driving.IngestionRunner
	configuredSources []domain.ContentSource

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "smart-answer",
	Short: "Grounded answer context from your own knowledge sources",
	Long: `smart-answer ingests content from configured knowledge sources
(documentation sites, record APIs, wikis) into a vector search index and
serves grounded, citable context for answering questions.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.smart-answer/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. v is the build version stamped by the
// linker.
func Execute(v string) error {
	version = v
	return rootCmd.Execute()
}

// ensureServices wires the application on first use. Tests bypass it by
// setting the service variables directly.
func ensureServices(ctx context.Context) error {
	if contextService != nil || ingestionRunner != nil {
		return nil
	}

	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	application = a
	contextService = a.Context
	ingestionRunner = a.Ingestion
	configuredSources = a.Sources
	return nil
}

// closeServices releases the wired application, if any.
func closeServices() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	contextService = nil
	ingestionRunner = nil
	configuredSources = nil
	return err
}

// errNotConfigured is returned when a command runs without its service.
var errNotConfigured = errors.New("service not configured")
