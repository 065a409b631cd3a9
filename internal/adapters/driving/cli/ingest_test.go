package cli

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

func TestIngestRunCmd_Flags(t *testing.T) {
	for _, name := range []string{"unit", "period", "limit", "debug", "json"} {
		assert.NotNil(t, ingestRunCmd.Flags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "u", ingestRunCmd.Flags().Lookup("unit").Shorthand)
	assert.Equal(t, "0", ingestRunCmd.Flags().Lookup("limit").DefValue)
}

func TestIngestRunCmd_RequiresUnitAndPeriod(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "", "ingest", "run", "--unit", "acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "period")
}

func TestIngestRunCmd_PrintsThemes(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.result = &driving.RunResult{
		OK:         true,
		ManifestID: "m-1",
		Processed:  12,
		Unit:       "acme.com",
		Period:     "2025Q3",
		Themes: []domain.ThemeDraft{
			{
				ClusterID:   "cl_abc",
				TopicKey:    "checkout",
				Name:        "Checkout failures",
				Summary:     "Payments time out at checkout.",
				Severity:    domain.SeverityHigh,
				ThemeID:     "t-1",
				MemberCount: 4,
			},
		},
	}

	out, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3", "-n", "20")

	require.NoError(t, err)
	assert.Contains(t, out, "Manifest: m-1")
	assert.Contains(t, out, "Processed 12 reviews into 1 themes")
	assert.Contains(t, out, "Checkout failures")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "theme t-1")

	assert.Equal(t, "acme.com", ts.ingestion.lastReq.BusinessUnitID)
	assert.Equal(t, "2025Q3", ts.ingestion.lastReq.Period)
	require.NotNil(t, ts.ingestion.lastReq.Limit)
	assert.Equal(t, 20, *ts.ingestion.lastReq.Limit)
	assert.Equal(t, driving.DebugNone, ts.ingestion.lastReq.Debug)
}

func TestIngestRunCmd_LimitOmittedUsesDefault(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.result = &driving.RunResult{OK: true, Unit: "acme.com", Period: "2025Q3"}

	_, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

	require.NoError(t, err)
	assert.Nil(t, ts.ingestion.lastReq.Limit)
}

func TestIngestRunCmd_ExplicitZeroLimitIsForwarded(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.result = &driving.RunResult{OK: true, Unit: "acme.com", Period: "2025Q3"}

	_, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3", "--limit", "0")

	require.NoError(t, err)
	require.NotNil(t, ts.ingestion.lastReq.Limit)
	assert.Zero(t, *ts.ingestion.lastReq.Limit)
}

func TestIngestRunCmd_PrintsSynthesisErrors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.result = &driving.RunResult{
		OK:         true,
		Message:    "action synthesis failed for 1 of 1 themes",
		ManifestID: "m-1",
		Processed:  4,
		Unit:       "acme.com",
		Period:     "2025Q3",
		Themes:     []domain.ThemeDraft{{ClusterID: "cl_abc", Name: "Checkout failures", ThemeID: "t-1"}},
		SynthesisErrors: []driving.SynthesisError{
			{ThemeID: "t-1", ClusterID: "cl_abc", Kind: domain.ErrorKindSchema, Message: "schema validation failed: actions"},
		},
	}

	out, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

	require.NoError(t, err)
	assert.Contains(t, out, "Action synthesis failed for 1 themes")
	assert.Contains(t, out, "theme t-1 (cl_abc) [schema] schema validation failed: actions")
}

func TestIngestRunCmd_AlreadyProcessed(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.result = &driving.RunResult{
		OK:         false,
		Message:    "already processed",
		ManifestID: "m-1",
		Unit:       "acme.com",
		Period:     "2025Q3",
	}

	out, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

	require.NoError(t, err)
	assert.Contains(t, out, "acme.com 2025Q3 already processed (manifest m-1)")
}

func TestIngestRunCmd_JSONAndDebug(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		result *driving.RunResult
		want   string
	}{
		{
			name:   "json flag",
			args:   []string{"--json"},
			result: &driving.RunResult{OK: true, ManifestID: "m-1", Themes: []domain.ThemeDraft{}},
			want:   `"manifestId": "m-1"`,
		},
		{
			name: "debug report is always json",
			args: []string{"--debug", "emb"},
			result: &driving.RunResult{
				OK:    true,
				Debug: &driving.DebugReport{Step: driving.DebugEmbeddings, Embedding: &driving.EmbeddingReport{Count: 3}},
			},
			want: `"step": "emb"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, cleanup := setupTestServices()
			defer cleanup()
			ts.ingestion.result = tt.result

			args := append([]string{"ingest", "run", "-u", "acme.com", "-p", "2025Q3"}, tt.args...)
			out, err := execute(t, "", args...)

			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestIngestRunCmd_Errors(t *testing.T) {
	t.Run("wrapped error", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.ingestion.err = fmt.Errorf("fetch: %w", domain.ErrTransport)

		_, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Contains(t, err.Error(), "ingestion failed")
	})

	t.Run("json error body", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.ingestion.err = fmt.Errorf("quarter: %w", domain.ErrInvalidInput)

		out, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "bad", "--json")

		require.Error(t, err)
		assert.Contains(t, out, `"error": "validation"`)
		assert.Contains(t, out, `"stack"`)
	})

	t.Run("no service", func(t *testing.T) {
		SetServices(Services{})

		_, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestIngestRunCmd_Unavailable(t *testing.T) {
	SetServices(Services{Unavailable: domain.ErrEmbeddingUnavailable})
	defer SetServices(Services{})

	_, err := execute(t, "", "ingest", "run", "-u", "acme.com", "-p", "2025Q3")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "ingestion unavailable")
}
