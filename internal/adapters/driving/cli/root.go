// Package cli provides the cobra command tree for the reviewpulse binary.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

// PromptWatcher hot-reloads prompt templates until ctx is cancelled.
type PromptWatcher interface {
	Watch(ctx context.Context) error
}

// Services holds the driving ports the commands call into.
type Services struct {
	Ingestion driving.IngestionService
	Insights  driving.InsightsService
	Actions   driving.ActionService
	Settings  driving.SettingsService
	Prompts   PromptWatcher

	// Unavailable explains why Ingestion is nil, such as a missing
	// embedding provider.
	Unavailable error
}

var (
	version = "dev"
	verbose bool

	ingestionService driving.IngestionService
	insightsService  driving.InsightsService
	actionService    driving.ActionService
	settingsService  driving.SettingsService
	promptWatcher    PromptWatcher
	unavailable      error
)

var rootCmd = &cobra.Command{
	Use:   "reviewpulse",
	Short: "Turn customer reviews into themes and actions",
	Long: `ReviewPulse ingests a quarter of customer reviews for a business unit,
clusters them into themes, picks representative evidence and proposes
root causes and actions.

Runs are idempotent per business unit and quarter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices injects the services used by commands.
func SetServices(s Services) {
	ingestionService = s.Ingestion
	insightsService = s.Insights
	actionService = s.Actions
	settingsService = s.Settings
	promptWatcher = s.Prompts
	unavailable = s.Unavailable
}

// requireIngestion returns why ingestion cannot run, if it cannot.
func requireIngestion() error {
	if ingestionService != nil {
		return nil
	}
	if unavailable != nil {
		return fmt.Errorf("ingestion unavailable: %w", unavailable)
	}
	return errors.New("ingestion service not configured")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// isProduction reports whether stack traces should be hidden.
func isProduction() bool {
	if settingsService == nil {
		return false
	}
	settings, err := settingsService.Get()
	if err != nil {
		return false
	}
	return settings.IsProduction()
}
