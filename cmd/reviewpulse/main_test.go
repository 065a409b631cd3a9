package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

func TestNewReviewSource(t *testing.T) {
	tests := []struct {
		name     string
		cfg      domain.ReviewSourceSettings
		wantName string
		wantErr  error
	}{
		{
			name:     "file source",
			cfg:      domain.ReviewSourceSettings{Kind: domain.ReviewSourceFile, FilePath: "reviews.json"},
			wantName: "file",
		},
		{
			name:    "file source without path",
			cfg:     domain.ReviewSourceSettings{Kind: domain.ReviewSourceFile},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "outscraper source",
			cfg: domain.ReviewSourceSettings{
				Kind:             domain.ReviewSourceOutscraper,
				OutscraperAPIKey: "key",
				DailyBudget:      100,
			},
			wantName: "outscraper",
		},
		{
			name:    "outscraper without key",
			cfg:     domain.ReviewSourceSettings{Kind: domain.ReviewSourceOutscraper},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown kind",
			cfg:     domain.ReviewSourceSettings{Kind: "csv"},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := newReviewSource(tt.cfg, memory.NewUsageStore())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, source)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, source.Name())
		})
	}
}

func TestNewIngestion_AIUnavailable(t *testing.T) {
	_, err := newIngestion(ingestionParts{aiErr: domain.ErrEmbeddingUnavailable})

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{name: "success is silent", err: nil, wantCode: 0, wantOut: ""},
		{
			name:     "failure is reported on stderr",
			err:      fmt.Errorf("loading config: %w", domain.ErrInvalidInput),
			wantCode: 1,
			wantOut:  "Error: loading config: invalid input\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantCode, exitCode(&buf, tt.err))
			assert.Equal(t, tt.wantOut, buf.String())
		})
	}
}
