package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

var (
	errNoInsights = errors.New("insights service not configured")
	errNoActions  = errors.New("action service not configured")
)

// RunIngestionInput is the input schema for the run_ingestion tool.
type RunIngestionInput struct {
	BusinessUnitID string `json:"businessUnitId" jsonschema:"the business unit or product to ingest reviews for"`
	Quarter        string `json:"quarter" jsonschema:"the quarter to process, such as 2025Q3"`
	Limit          *int   `json:"limit,omitempty" jsonschema:"maximum number of reviews to process, must be positive (default from settings)"`
	Debug          string `json:"debug,omitempty" jsonschema:"stop early for diagnostics: emb, clu or ev"`
}

// RunIngestionOutput is the output schema for the run_ingestion tool.
type RunIngestionOutput struct {
	OK              bool                     `json:"ok"`
	Message         string                   `json:"message,omitempty"`
	ManifestID      string                   `json:"manifestId,omitempty"`
	Processed       int                      `json:"processed"`
	Themes          []domain.ThemeDraft      `json:"themes"`
	SynthesisErrors []driving.SynthesisError `json:"synthesisErrors,omitempty"`
}

// ListManifestsInput is the input schema for the list_manifests tool.
type ListManifestsInput struct {
	BusinessUnitID string `json:"businessUnitId,omitempty" jsonschema:"only list manifests for this business unit"`
}

// ListManifestsOutput is the output schema for the list_manifests tool.
type ListManifestsOutput struct {
	Manifests []domain.Manifest `json:"manifests"`
	Count     int               `json:"count"`
}

// ThemeMetricsInput is the input schema for the theme_metrics tool.
type ThemeMetricsInput struct {
	ManifestID string `json:"manifestId" jsonschema:"the manifest to report on"`
}

// ThemeMetricsOutput is the output schema for the theme_metrics tool.
type ThemeMetricsOutput struct {
	Metrics []domain.ThemeMetric `json:"metrics"`
	Trends  []domain.ThemeTrend  `json:"trends"`
}

// SynthesizeInput is the input schema for the synthesize_actions tool.
type SynthesizeInput struct {
	ThemeID string `json:"themeId" jsonschema:"the persisted theme to synthesise actions for"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_ingestion",
		Description: "Ingest a quarter of reviews for a business unit and extract themes. Runs once per unit and quarter.",
	}, s.handleRunIngestion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_manifests",
		Description: "List completed and failed ingestion runs, newest quarter first",
	}, s.handleListManifests)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "theme_metrics",
		Description: "Theme metrics and quarter-over-quarter trends for a manifest",
	}, s.handleThemeMetrics)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "synthesize_actions",
		Description: "Propose root causes and product or go-to-market actions for a theme",
	}, s.handleSynthesize)
}

func (s *Server) handleRunIngestion(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunIngestionInput,
) (*mcp.CallToolResult, RunIngestionOutput, error) {
	result, err := s.ports.Ingestion.Run(ctx, driving.RunRequest{
		BusinessUnitID: input.BusinessUnitID,
		Period:         input.Quarter,
		Limit:          input.Limit,
		Debug:          driving.DebugMode(input.Debug),
	})
	if err != nil {
		return nil, RunIngestionOutput{}, err
	}

	themes := result.Themes
	if themes == nil {
		themes = []domain.ThemeDraft{}
	}
	return nil, RunIngestionOutput{
		OK:              result.OK,
		Message:         result.Message,
		ManifestID:      result.ManifestID,
		Processed:       result.Processed,
		Themes:          themes,
		SynthesisErrors: result.SynthesisErrors,
	}, nil
}

func (s *Server) handleListManifests(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListManifestsInput,
) (*mcp.CallToolResult, ListManifestsOutput, error) {
	if s.ports.Insights == nil {
		return nil, ListManifestsOutput{}, errNoInsights
	}

	manifests, err := s.ports.Insights.ListManifests(ctx, input.BusinessUnitID)
	if err != nil {
		return nil, ListManifestsOutput{}, err
	}
	if manifests == nil {
		manifests = []domain.Manifest{}
	}
	return nil, ListManifestsOutput{Manifests: manifests, Count: len(manifests)}, nil
}

func (s *Server) handleThemeMetrics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ThemeMetricsInput,
) (*mcp.CallToolResult, ThemeMetricsOutput, error) {
	if s.ports.Insights == nil {
		return nil, ThemeMetricsOutput{}, errNoInsights
	}

	metrics, err := s.ports.Insights.Metrics(ctx, input.ManifestID)
	if err != nil {
		return nil, ThemeMetricsOutput{}, err
	}
	trends, err := s.ports.Insights.Trends(ctx, input.ManifestID)
	if err != nil {
		return nil, ThemeMetricsOutput{}, err
	}

	out := ThemeMetricsOutput{Metrics: metrics, Trends: trends}
	if out.Metrics == nil {
		out.Metrics = []domain.ThemeMetric{}
	}
	if out.Trends == nil {
		out.Trends = []domain.ThemeTrend{}
	}
	return nil, out, nil
}

func (s *Server) handleSynthesize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SynthesizeInput,
) (*mcp.CallToolResult, driving.SynthesisResult, error) {
	if s.ports.Actions == nil {
		return nil, driving.SynthesisResult{}, errNoActions
	}

	result, err := s.ports.Actions.SynthesizeTheme(ctx, input.ThemeID)
	if err != nil {
		return nil, driving.SynthesisResult{}, err
	}
	return nil, *result, nil
}
