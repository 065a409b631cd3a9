package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

var (
	ingestUnit   string
	ingestPeriod string
	ingestLimit  int
	ingestDebug  string
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest reviews and extract themes",
}

var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingestion for a business unit and quarter",
	Long: `Fetch a quarter of reviews for a business unit, cluster them into themes,
select evidence, label the themes and synthesise actions.

A unit and quarter is only processed once. Repeat runs report
"already processed" without fetching anything.

Debug modes stop early and never write themes or manifests:
  emb  embedding summary (model, dimensions, first vector preview)
  clu  cluster membership and centroids
  ev   per-cluster evidence scores

Examples:
  reviewpulse ingest run --unit acme.com --period 2025Q3
  reviewpulse ingest run --unit acme.com --period 2025-Q3 --limit 50 --debug clu`,
	RunE: runIngest,
}

func init() {
	ingestRunCmd.Flags().StringVarP(&ingestUnit, "unit", "u", "", "business unit (review source target)")
	ingestRunCmd.Flags().StringVarP(&ingestPeriod, "period", "p", "", "quarter, such as 2025Q3")
	ingestRunCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 0, "maximum reviews to process (default from settings)")
	ingestRunCmd.Flags().StringVar(&ingestDebug, "debug", "", "stop early: emb, clu or ev")
	ingestRunCmd.Flags().BoolVar(&ingestJSON, "json", false, "output result as JSON")
	_ = ingestRunCmd.MarkFlagRequired("unit")
	_ = ingestRunCmd.MarkFlagRequired("period")

	ingestCmd.AddCommand(ingestRunCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if err := requireIngestion(); err != nil {
		return err
	}

	req := driving.RunRequest{
		BusinessUnitID: ingestUnit,
		Period:         ingestPeriod,
		Debug:          driving.DebugMode(ingestDebug),
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = &ingestLimit
	}

	result, err := ingestionService.Run(cmd.Context(), req)
	if err != nil {
		if ingestJSON {
			return failJSON(cmd, err)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON || result.Debug != nil {
		return printJSON(cmd, result)
	}

	printRunResult(cmd, result)
	return nil
}

func printRunResult(cmd *cobra.Command, result *driving.RunResult) {
	if !result.OK {
		cmd.Printf("%s %s %s (manifest %s)\n", result.Unit, result.Period, result.Message, result.ManifestID)
		return
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("%s %s", result.Unit, result.Period)))
	cmd.Printf("Manifest: %s\n", result.ManifestID)
	cmd.Printf("Processed %d reviews into %d themes\n", result.Processed, len(result.Themes))
	defer printSynthesisErrors(cmd, result.SynthesisErrors)
	if len(result.Themes) == 0 {
		return
	}

	cmd.Println()
	for _, th := range result.Themes {
		cmd.Printf("  %s %-40s %3d reviews  %s\n",
			severityBadge(th.Severity), truncate(th.Name, 40), th.MemberCount, mutedStyle.Render(th.TopicKey))
		if th.Summary != "" {
			cmd.Printf("         %s\n", truncate(th.Summary, 100))
		}
		if th.ThemeID != "" {
			cmd.Printf("         %s\n", mutedStyle.Render("theme "+th.ThemeID))
		}
	}
}

func printSynthesisErrors(cmd *cobra.Command, failures []driving.SynthesisError) {
	if len(failures) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(warningStyle.Render(fmt.Sprintf("Action synthesis failed for %d themes:", len(failures))))
	for _, f := range failures {
		cmd.Printf("  theme %s (%s) [%s] %s\n", f.ThemeID, f.ClusterID, f.Kind, truncate(f.Message, 100))
	}
}
