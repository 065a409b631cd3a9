package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "reviewpulse", rootCmd.Use)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "synthesize", "insights", "settings", "serve", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	defer logger.SetVerbose(false)

	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	_, err := execute(t, "", "--verbose", "version")

	require.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestSetServices(t *testing.T) {
	ts, cleanup := setupTestServices()

	assert.Same(t, ts.ingestion, ingestionService)
	assert.Same(t, ts.settings, settingsService)

	cleanup()
	assert.Nil(t, ingestionService)
	assert.Nil(t, settingsService)
}

func TestIsProduction(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	assert.False(t, isProduction())

	ts.settings.settings.Environment = "production"
	assert.True(t, isProduction())

	SetServices(Services{})
	assert.False(t, isProduction())
}

func TestSeverityBadge(t *testing.T) {
	for _, s := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh} {
		assert.Contains(t, severityBadge(s), string(s))
	}
	assert.Contains(t, severityBadge(""), "-")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
