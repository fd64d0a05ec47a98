package research_engine

import (
	"context"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/metrics"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// Status is the research state of one company at the moment it was read.
type Status struct {
	CompanyID string
	// Records holds every stored record, stale ones included.
	Records map[models.ResearchVectorType]models.ResearchRecord
	// Valid holds only records that count as present.
	Valid    map[models.ResearchVectorType]models.ResearchRecord
	Missing  []models.ResearchVectorType
	Complete bool
}

// Aggregator answers "what research exists for company X". It only reads.
type Aggregator struct {
	store   core.ResearchStore
	metrics *metrics.Metrics
}

func NewAggregator(store core.ResearchStore, m *metrics.Metrics) *Aggregator {
	return &Aggregator{store: store, metrics: m}
}

func (a *Aggregator) Status(ctx context.Context, companyID string) (*Status, error) {
	a.metrics.IncStatusRequests()
	records, err := a.store.GetAll(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return BuildStatus(companyID, records), nil
}

// BuildStatus indexes records by vector and derives the missing set.
// Records for other companies or unknown vectors are ignored.
func BuildStatus(companyID string, records []models.ResearchRecord) *Status {
	st := &Status{
		CompanyID: companyID,
		Records:   make(map[models.ResearchVectorType]models.ResearchRecord, len(records)),
		Valid:     make(map[models.ResearchVectorType]models.ResearchRecord, len(records)),
	}
	for _, r := range records {
		if r.CompanyID != companyID {
			continue
		}
		if _, err := models.ParseVectorType(string(r.VectorType)); err != nil {
			continue
		}
		st.Records[r.VectorType] = r
		if models.IsEffectivelyPresent(&r) {
			st.Valid[r.VectorType] = r
		}
	}
	for _, v := range models.AllVectors() {
		if _, ok := st.Valid[v]; !ok {
			st.Missing = append(st.Missing, v)
		}
	}
	st.Complete = len(st.Missing) == 0
	return st
}
