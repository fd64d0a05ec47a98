package core

import (
	"context"

	"github.com/markdave123-py/Careerlyst/internal/models"
)

// ResearchRequest is everything a provider needs to research one vector.
type ResearchRequest struct {
	CompanyName   string
	CompanyDomain string
	Vector        models.ResearchVectorType
}

// ResearchProvider is the external research-generation service.
// Given a company and a vector it returns an answer with citations, or an error.
type ResearchProvider interface {
	Name() string
	Research(ctx context.Context, req ResearchRequest) (*models.ResearchPayload, error)
}
