package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for ReviewPulse resources.
	uriScheme = "reviewpulse://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "manifests",
		Name:        "manifests",
		Description: "All ingestion manifests, newest quarter first",
		MIMEType:    "application/json",
	}, s.handleManifestsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "manifests/{manifestId}/themes",
		Name:        "manifest-themes",
		Description: "Themes extracted by a specific ingestion run",
		MIMEType:    "application/json",
	}, s.handleThemesResource)
}

// handleManifestsResource returns every manifest.
func (s *Server) handleManifestsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Insights == nil {
		return jsonResource(req.Params.URI, []any{})
	}

	manifests, err := s.ports.Insights.ListManifests(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing manifests: %w", err)
	}

	type manifestInfo struct {
		ID             string `json:"id"`
		BusinessUnitID string `json:"business_unit_id"`
		Period         string `json:"period"`
		Status         string `json:"status"`
		ReviewCount    int    `json:"review_count"`
		ThemeCount     int    `json:"theme_count"`
	}

	infos := make([]manifestInfo, len(manifests))
	for i, m := range manifests {
		infos[i] = manifestInfo{
			ID:             m.ID,
			BusinessUnitID: m.BusinessUnitID,
			Period:         m.Period,
			Status:         string(m.Status),
			ReviewCount:    m.ReviewCount,
			ThemeCount:     m.ThemeCount,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleThemesResource returns the themes of one manifest.
func (s *Server) handleThemesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Insights == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	manifestID := extractManifestID(req.Params.URI)
	if manifestID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	themes, err := s.ports.Insights.ListThemes(ctx, manifestID)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	return jsonResource(req.Params.URI, themes)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractManifestID extracts the manifest ID from a URI like
// reviewpulse://manifests/{manifestId}/themes.
func extractManifestID(uri string) string {
	const prefix = uriScheme + "manifests/"
	const suffix = "/themes"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
