package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for triggering runs and reading insights.

Endpoints:
  POST /api/ingest/run      {"businessUnitId": "...", "quarter": "2025Q3", "limit": 12}
  POST /api/synthesize      {"theme_id": "..."}
  GET  /api/manifests       list manifests (?unit= filters)
  GET  /metrics             Prometheus metrics

Prompt templates are reloaded when their files change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireIngestion(); err != nil {
		return err
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Ingestion: ingestionService,
		Insights:  insightsService,
		Actions:   actionService,
	}, isProduction())
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if promptWatcher != nil {
		g.Go(func() error {
			if err := promptWatcher.Watch(ctx); err != nil {
				logger.Warn("Prompt hot reload disabled: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", serveAddr)
		return server.ListenAndServe(ctx, serveAddr)
	})
	return g.Wait()
}
