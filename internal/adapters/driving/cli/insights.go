package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

var (
	insightsUnit string
	insightsJSON bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Inspect manifests, themes, metrics and trends",
}

var insightsManifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "List ingestion manifests",
	Args:  cobra.NoArgs,
	RunE:  runInsightsManifests,
}

var insightsThemesCmd = &cobra.Command{
	Use:   "themes [manifest-id]",
	Short: "List themes of a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsThemes,
}

var insightsMetricsCmd = &cobra.Command{
	Use:   "metrics [manifest-id]",
	Short: "Show theme metrics of a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsMetrics,
}

var insightsTrendsCmd = &cobra.Command{
	Use:   "trends [manifest-id]",
	Short: "Compare themes with the previous quarter",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsTrends,
}

var insightsRecomputeCmd = &cobra.Command{
	Use:   "recompute [manifest-id]",
	Short: "Rebuild metrics and trends of a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsRecompute,
}

var insightsActionsCmd = &cobra.Command{
	Use:   "actions [theme-id]",
	Short: "List actions recorded for a theme",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsActions,
}

func init() {
	insightsCmd.PersistentFlags().BoolVar(&insightsJSON, "json", false, "output as JSON")
	insightsManifestsCmd.Flags().StringVarP(&insightsUnit, "unit", "u", "", "only list this business unit")

	insightsCmd.AddCommand(insightsManifestsCmd)
	insightsCmd.AddCommand(insightsThemesCmd)
	insightsCmd.AddCommand(insightsMetricsCmd)
	insightsCmd.AddCommand(insightsTrendsCmd)
	insightsCmd.AddCommand(insightsRecomputeCmd)
	insightsCmd.AddCommand(insightsActionsCmd)
	rootCmd.AddCommand(insightsCmd)
}

func requireInsights() error {
	if insightsService == nil {
		return errors.New("insights service not configured")
	}
	return nil
}

func runInsightsManifests(cmd *cobra.Command, _ []string) error {
	if err := requireInsights(); err != nil {
		return err
	}

	manifests, err := insightsService.ListManifests(cmd.Context(), insightsUnit)
	if err != nil {
		return fmt.Errorf("failed to list manifests: %w", err)
	}
	if insightsJSON {
		return printJSON(cmd, manifests)
	}

	if len(manifests) == 0 {
		cmd.Println("No manifests found.")
		return nil
	}

	for _, m := range manifests {
		status := string(m.Status)
		if m.Status == domain.ManifestFailed {
			status = severityStyles[domain.SeverityHigh].Render(status)
		}
		cmd.Printf("%s  %-24s %-7s %-10s %4d reviews %3d themes\n",
			m.ID, truncate(m.BusinessUnitID, 24), m.Period, status, m.ReviewCount, m.ThemeCount)
		if m.Error != "" {
			cmd.Printf("    %s\n", mutedStyle.Render(truncate(m.Error, 100)))
		}
	}
	return nil
}

func runInsightsThemes(cmd *cobra.Command, args []string) error {
	if err := requireInsights(); err != nil {
		return err
	}

	themes, err := insightsService.ListThemes(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list themes: %w", err)
	}
	if insightsJSON {
		return printJSON(cmd, themes)
	}

	if len(themes) == 0 {
		cmd.Println("No themes found.")
		return nil
	}

	for _, th := range themes {
		cmd.Printf("%s %-40s %3d reviews  %s\n",
			severityBadge(th.Severity), truncate(th.Name, 40), th.ReviewCount, mutedStyle.Render(th.TopicKey))
		cmd.Printf("       %s\n", mutedStyle.Render("theme "+th.ID))
	}
	return nil
}

func runInsightsMetrics(cmd *cobra.Command, args []string) error {
	if err := requireInsights(); err != nil {
		return err
	}

	metrics, err := insightsService.Metrics(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get metrics: %w", err)
	}
	if insightsJSON {
		return printJSON(cmd, metrics)
	}

	if len(metrics) == 0 {
		cmd.Println("No metrics found. Run 'reviewpulse insights recompute' to build them.")
		return nil
	}

	cmd.Printf("%-6s %-32s %8s %8s %8s\n", "SEV", "THEME", "REVIEWS", "EVIDENCE", "ACTIONS")
	for _, m := range metrics {
		cmd.Printf("%s %-32s %8d %8d %8d\n",
			severityBadge(m.Severity), truncate(m.Name, 32), m.ReviewCount, m.EvidenceCount, m.ActionsCount)
	}
	return nil
}

func runInsightsTrends(cmd *cobra.Command, args []string) error {
	if err := requireInsights(); err != nil {
		return err
	}

	trends, err := insightsService.Trends(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get trends: %w", err)
	}
	if insightsJSON {
		return printJSON(cmd, trends)
	}

	if len(trends) == 0 {
		cmd.Println("No trends found.")
		return nil
	}

	for _, tr := range trends {
		if tr.Prev == nil || tr.Deltas == nil {
			cmd.Printf("%s %-32s %s\n", severityBadge(tr.Current.Severity), truncate(tr.Current.Name, 32),
				mutedStyle.Render("new this quarter"))
			continue
		}
		cmd.Printf("%s %-32s reviews %s  evidence %s  actions %s  severity %s\n",
			severityBadge(tr.Current.Severity), truncate(tr.Current.Name, 32),
			signed(tr.Deltas.Reviews), signed(tr.Deltas.Evidence),
			signed(tr.Deltas.Actions), signed(tr.Deltas.SeverityChange))
	}
	return nil
}

func runInsightsRecompute(cmd *cobra.Command, args []string) error {
	if err := requireInsights(); err != nil {
		return err
	}

	metrics, trends, err := insightsService.Recompute(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to recompute: %w", err)
	}
	cmd.Printf("Recomputed %d metrics and %d trends for %s\n", metrics, trends, args[0])
	return nil
}

func runInsightsActions(cmd *cobra.Command, args []string) error {
	if actionService == nil {
		return errors.New("action service not configured")
	}

	actions, err := actionService.ListActions(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list actions: %w", err)
	}
	if insightsJSON {
		return printJSON(cmd, actions)
	}

	if len(actions) == 0 {
		cmd.Println("No actions found.")
		return nil
	}
	for _, a := range actions {
		cmd.Printf("[%-7s] %s (impact %d, effort %d)\n", a.Kind, a.Description, a.Impact, a.Effort)
	}
	return nil
}
