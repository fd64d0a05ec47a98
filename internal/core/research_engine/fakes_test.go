package research_engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]models.ResearchRecord // key: company/vector
	upserts int
	failOn  models.ResearchVectorType
}

func newMemStore() *memStore {
	return &memStore{records: map[string]models.ResearchRecord{}}
}

func key(companyID string, v models.ResearchVectorType) string {
	return companyID + "/" + string(v)
}

func (s *memStore) GetAll(_ context.Context, companyID string) ([]models.ResearchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ResearchRecord
	for _, v := range models.AllVectors() {
		if r, ok := s.records[key(companyID, v)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Upsert(_ context.Context, r *models.ResearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.VectorType == s.failOn {
		return errors.New("disk full")
	}
	s.upserts++
	r.IsValid = true
	s.records[key(r.CompanyID, r.VectorType)] = *r
	return nil
}

func (s *memStore) Invalidate(_ context.Context, companyID string, v models.ResearchVectorType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key(companyID, v)]; ok {
		r.IsValid = false
		s.records[key(companyID, v)] = r
	}
	return nil
}

func (s *memStore) InvalidateAll(ctx context.Context, companyID string) (int64, error) {
	var n int64
	for _, v := range models.AllVectors() {
		s.mu.Lock()
		r, ok := s.records[key(companyID, v)]
		s.mu.Unlock()
		if ok && r.IsValid {
			n++
			_ = s.Invalidate(ctx, companyID, v)
		}
	}
	return n, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type memCompanies map[string]*models.Company

func (m memCompanies) GetCompany(_ context.Context, id string) (*models.Company, error) {
	c, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrCompanyNotFound, id)
	}
	return c, nil
}

func (m memCompanies) UpsertCompany(_ context.Context, c *models.Company) error {
	m[c.ID] = c
	return nil
}

// fakeProvider answers every vector unless a per-vector error or block is configured.
type fakeProvider struct {
	mu      sync.Mutex
	fail    map[models.ResearchVectorType]error
	block   map[models.ResearchVectorType]bool
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
	gate    chan struct{} // when set, every call waits on it
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Research(ctx context.Context, req core.ResearchRequest) (*models.ResearchPayload, error) {
	p.calls.Add(1)
	n := p.running.Add(1)
	defer p.running.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	err := p.fail[req.Vector]
	block := p.block[req.Vector]
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &models.ResearchPayload{
		Answer:   fmt.Sprintf("%s answer for %s", req.Vector, req.CompanyName),
		Sources:  []models.Source{{Title: "Home", URL: "https://" + req.CompanyDomain}},
		Provider: "fake",
	}, nil
}

type memArchive struct {
	mu    sync.Mutex
	keys  []string
	fail  bool
	names []string
}

func (a *memArchive) ArchiveRecord(_ context.Context, companyName string, r *models.ResearchRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("bucket missing")
	}
	a.keys = append(a.keys, key(r.CompanyID, r.VectorType))
	a.names = append(a.names, companyName)
	return nil
}
