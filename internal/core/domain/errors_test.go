package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrNotImplemented", ErrNotImplemented},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrTransport", ErrTransport},
		{"ErrSchema", ErrSchema},
		{"ErrPrecondition", ErrPrecondition},
		{"ErrAlreadyProcessed", ErrAlreadyProcessed},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrBudgetExceeded", ErrBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "openai", StatusCode: 503, Message: "overloaded"}

	assert.Equal(t, "openai API error (status 503): overloaded", err.Error())
	assert.True(t, err.Transient())
	assert.False(t, (&ProviderError{StatusCode: 429}).Transient())
	assert.False(t, (&ProviderError{StatusCode: 400}).Transient())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("limit: %w", ErrInvalidInput), ErrorKindValidation},
		{"schema", fmt.Errorf("synth: %w", ErrSchema), ErrorKindSchema},
		{"precondition", fmt.Errorf("cluster: %w", ErrPrecondition), ErrorKindPrecondition},
		{"transport", fmt.Errorf("%w: %w", ErrTransport, errors.New("reset")), ErrorKindTransport},
		{"provider", fmt.Errorf("embed: %w", &ProviderError{StatusCode: 400}), ErrorKindTransport},
		{"deadline", context.DeadlineExceeded, ErrorKindTransport},
		{"unavailable", ErrLLMUnavailable, ErrorKindUnavailable},
		{"not found", ErrNotFound, ErrorKindNotFound},
		{"other", errors.New("disk full"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewRunError(t *testing.T) {
	err := fmt.Errorf("vectors: %w", ErrPrecondition)

	dev := NewRunError(err, "goroutine 1 [running]", false)
	assert.Equal(t, ErrorKindPrecondition, dev.Kind)
	assert.Equal(t, "vectors: precondition failed", dev.Message)
	assert.Equal(t, "goroutine 1 [running]", dev.Stack)

	prod := NewRunError(err, "goroutine 1 [running]", true)
	assert.Empty(t, prod.Stack)
}
