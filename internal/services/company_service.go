package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

type CompanyService struct {
	companies core.CompanyDirectory
	store     core.ResearchStore
	log       logrus.FieldLogger
}

func NewCompanyService(companies core.CompanyDirectory, store core.ResearchStore, log logrus.FieldLogger) *CompanyService {
	return &CompanyService{companies: companies, store: store, log: log}
}

var ErrInvalidCompany = errors.New("invalid company payload")

func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	return s.companies.GetCompany(ctx, id)
}

// Upsert saves the company profile. Changing the name or domain makes existing research
// describe a different company, so every record for it is marked stale.
func (s *CompanyService) Upsert(ctx context.Context, c *models.Company) (*models.Company, error) {
	if c == nil || strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return nil, ErrInvalidCompany
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Domain = strings.TrimSpace(c.Domain)

	prev, err := s.companies.GetCompany(ctx, c.ID)
	switch {
	case errors.Is(err, core.ErrCompanyNotFound):
		prev = nil
	case err != nil:
		return nil, err
	default:
		c.CreatedAt = prev.CreatedAt
	}

	if err := s.companies.UpsertCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}

	if prev != nil && (prev.Name != c.Name || prev.Domain != c.Domain) {
		n, err := s.store.InvalidateAll(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("invalidate research: %w", err)
		}
		s.log.WithFields(logrus.Fields{"company_id": c.ID, "invalidated": n}).Info("company profile changed; research marked stale")
	}
	return c, nil
}
