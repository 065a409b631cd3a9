package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil ingestion service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingIngestionService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Ingestion: &mockIngestionService{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   Ports
		wantErr error
	}{
		{
			name:    "nil ingestion service",
			ports:   Ports{Insights: &mockInsightsService{}},
			wantErr: ErrMissingIngestionService,
		},
		{
			name:  "ingestion only",
			ports: Ports{Ingestion: &mockIngestionService{}},
		},
		{
			name: "all ports",
			ports: Ports{
				Ingestion: &mockIngestionService{},
				Insights:  &mockInsightsService{},
				Actions:   &mockActionService{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestServer_Session(t *testing.T) {
	ctx := context.Background()
	server, err := NewServer(&Ports{
		Ingestion: &mockIngestionService{},
		Insights:  &mockInsightsService{},
	})
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	info := cs.InitializeResult()
	require.NotNil(t, info)
	assert.Equal(t, "reviewpulse", info.ServerInfo.Name)
	assert.Contains(t, info.Instructions, "run_ingestion")
	assert.Contains(t, info.Instructions, "synthesisErrors")

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"run_ingestion", "list_manifests", "theme_metrics", "synthesize_actions"}, names)
}

func TestServer_HealthHandler(t *testing.T) {
	server, err := NewServer(&Ports{Ingestion: &mockIngestionService{}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
