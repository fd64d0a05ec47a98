package core

import (
	"errors"
	"fmt"

	"github.com/markdave123-py/Careerlyst/internal/models"
)

var (
	// ErrProviderUnavailable means the research provider cannot be reached at all
	// (missing credentials, rejected key, network down before any vector ran).
	ErrProviderUnavailable = errors.New("research provider unavailable")

	// ErrAllVectorsFailed is returned when a batch produced no record at all.
	ErrAllVectorsFailed = errors.New("research generation failed for every vector")

	ErrCompanyNotFound = errors.New("company not found")
	ErrUnknownVector   = errors.New("unknown research type")
	ErrQueueFull       = errors.New("research queue is full")
)

// VectorError is a non-fatal failure of a single vector's generation.
type VectorError struct {
	Vector models.ResearchVectorType
	Err    error
}

func (e *VectorError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Vector, e.Err)
}

func (e *VectorError) Unwrap() error { return e.Err }

// ErrorKind maps an error onto the kind string returned to API callers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrAllVectorsFailed):
		return "all_vectors_failed"
	case errors.Is(err, ErrCompanyNotFound):
		return "company_not_found"
	case errors.Is(err, ErrUnknownVector):
		return "unknown_vector"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	}
	var ve *VectorError
	if errors.As(err, &ve) {
		return "vector_generation_failed"
	}
	return "internal"
}
