package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown provider or source type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Theme labelling falls back to a deterministic label; synthesis is skipped.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion cannot run without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Pipeline Errors.

	// ErrTransport indicates a provider call failed with a transient fault
	// and the retry budget was exhausted.
	ErrTransport = errors.New("transport error")

	// ErrSchema indicates generative output did not match the expected schema.
	ErrSchema = errors.New("schema validation failed")

	// ErrPrecondition indicates a consistency violation inside the pipeline,
	// such as a vector count that does not match the review count.
	ErrPrecondition = errors.New("precondition failed")

	// ErrAlreadyProcessed indicates a manifest already exists for the requested
	// business unit and period.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrBudgetExceeded indicates the daily review source spend budget is used up.
	ErrBudgetExceeded = errors.New("daily budget exceeded")
)

// ProviderError is returned by provider adapters when a remote API responds
// with a non-success status.
type ProviderError struct {
	// Provider names the remote service (openai, anthropic, outscraper...).
	Provider string

	// StatusCode is the HTTP status returned by the provider.
	StatusCode int

	// Message is the response body or error message from the provider.
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Transient reports whether the status indicates a server-side fault worth retrying.
func (e *ProviderError) Transient() bool {
	return e.StatusCode >= 500
}

// ErrorKind names the failure class of a pipeline error.
type ErrorKind string

// Failure classes surfaced to callers.
const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindTransport    ErrorKind = "transport"
	ErrorKindSchema       ErrorKind = "schema"
	ErrorKindPrecondition ErrorKind = "precondition"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindUnavailable  ErrorKind = "unavailable"
	ErrorKindInternal     ErrorKind = "internal"
)

// KindOf classifies an error into the failure taxonomy.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ErrorKindValidation
	case errors.Is(err, ErrSchema):
		return ErrorKindSchema
	case errors.Is(err, ErrPrecondition):
		return ErrorKindPrecondition
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrLLMUnavailable), errors.Is(err, ErrEmbeddingUnavailable):
		return ErrorKindUnavailable
	case errors.Is(err, ErrTransport), errors.Is(err, ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded), errors.As(err, &perr):
		return ErrorKindTransport
	default:
		return ErrorKindInternal
	}
}

// RunError is the user-visible shape of a failed run.
type RunError struct {
	Kind    ErrorKind `json:"error"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

// NewRunError builds a RunError. The stack is only kept outside production.
func NewRunError(err error, stack string, production bool) RunError {
	re := RunError{Kind: KindOf(err), Message: err.Error()}
	if !production {
		re.Stack = stack
	}
	return re
}
