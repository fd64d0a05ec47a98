package services

import (
	"context"
	"fmt"

	"github.com/markdave123-py/Careerlyst/internal/core"
	engine "github.com/markdave123-py/Careerlyst/internal/core/research_engine"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// ResearchQueue is the part of the generator the HTTP layer needs.
type ResearchQueue interface {
	Ready() error
	Enqueue(job engine.Job) error
	Pending(companyID string) []models.ResearchVectorType
}

type StatusReader interface {
	Status(ctx context.Context, companyID string) (*engine.Status, error)
}

type ResearchService struct {
	store     core.ResearchStore
	companies core.CompanyDirectory
	status    StatusReader
	queue     ResearchQueue
}

func NewResearchService(store core.ResearchStore, companies core.CompanyDirectory, status StatusReader, queue ResearchQueue) *ResearchService {
	return &ResearchService{store: store, companies: companies, status: status, queue: queue}
}

// Status returns every stored record for the company plus what is missing and what is being generated.
func (s *ResearchService) Status(ctx context.Context, companyID string) (*models.ResearchStatus, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	st, err := s.status.Status(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out := &models.ResearchStatus{
		CompanyID: companyID,
		Research:  st.Records,
		Missing:   st.Missing,
		Pending:   s.queue.Pending(companyID),
		Complete:  st.Complete,
	}
	if out.Missing == nil {
		out.Missing = []models.ResearchVectorType{}
	}
	if out.Pending == nil {
		out.Pending = []models.ResearchVectorType{}
	}
	return out, nil
}

// TriggerAll queues generation of every vector. It fails fast when no provider is available
// so nothing is queued that can only fail.
func (s *ResearchService) TriggerAll(ctx context.Context, companyID string) (*models.GenerationAccepted, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if err := s.queue.Ready(); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(engine.Job{CompanyID: companyID}); err != nil {
		return nil, err
	}
	return &models.GenerationAccepted{Status: "generating", CompanyID: companyID, Vectors: models.AllVectors()}, nil
}

func (s *ResearchService) TriggerOne(ctx context.Context, companyID, researchType string) (*models.GenerationAccepted, error) {
	vector, err := parseVector(researchType)
	if err != nil {
		return nil, err
	}
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if err := s.queue.Ready(); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(engine.Job{CompanyID: companyID, Vector: vector}); err != nil {
		return nil, err
	}
	return &models.GenerationAccepted{
		Status:    "generating",
		CompanyID: companyID,
		Vectors:   []models.ResearchVectorType{vector},
	}, nil
}

func (s *ResearchService) Invalidate(ctx context.Context, companyID, researchType string) error {
	vector, err := parseVector(researchType)
	if err != nil {
		return err
	}
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return err
	}
	return s.store.Invalidate(ctx, companyID, vector)
}

func (s *ResearchService) InvalidateAll(ctx context.Context, companyID string) (int64, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return 0, err
	}
	return s.store.InvalidateAll(ctx, companyID)
}

func parseVector(s string) (models.ResearchVectorType, error) {
	v, err := models.ParseVectorType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownVector, s)
	}
	return v, nil
}
