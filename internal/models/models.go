package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResearchVectorType identifies one fixed dimension of company research.
type ResearchVectorType string

const (
	VectorMission          ResearchVectorType = "mission"
	VectorValues           ResearchVectorType = "values"
	VectorOriginStory      ResearchVectorType = "origin_story"
	VectorProduct          ResearchVectorType = "product"
	VectorUserTypes        ResearchVectorType = "user_types"
	VectorCompetition      ResearchVectorType = "competition"
	VectorRisks            ResearchVectorType = "risks"
	VectorRecentLaunches   ResearchVectorType = "recent_launches"
	VectorStrategy         ResearchVectorType = "strategy"
	VectorFunding          ResearchVectorType = "funding"
	VectorPartnerships     ResearchVectorType = "partnerships"
	VectorCustomerFeedback ResearchVectorType = "customer_feedback"
	VectorBusinessModel    ResearchVectorType = "business_model"
)

// allVectors is the display order. Callers get a copy through AllVectors.
var allVectors = []ResearchVectorType{
	VectorMission,
	VectorValues,
	VectorOriginStory,
	VectorProduct,
	VectorUserTypes,
	VectorCompetition,
	VectorRisks,
	VectorRecentLaunches,
	VectorStrategy,
	VectorFunding,
	VectorPartnerships,
	VectorCustomerFeedback,
	VectorBusinessModel,
}

// AllVectors returns the fixed vector list in display order.
func AllVectors() []ResearchVectorType {
	out := make([]ResearchVectorType, len(allVectors))
	copy(out, allVectors)
	return out
}

// ParseVectorType validates s against the fixed vector list.
func ParseVectorType(s string) (ResearchVectorType, error) {
	for _, v := range allVectors {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown research type %q", s)
}

// Company is the owner of research records. This service only reads its name.
type Company struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Domain    string    `db:"domain" json:"domain,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ResearchRecord is one persisted research result for a (company, vector) pair.
type ResearchRecord struct {
	ID          string             `db:"id" json:"id"`
	CompanyID   string             `db:"company_id" json:"companyId"`
	VectorType  ResearchVectorType `db:"vector_type" json:"vectorType"`
	GeneratedAt time.Time          `db:"generated_at" json:"generatedAt"`
	IsValid     bool               `db:"is_valid" json:"isValid"`
	Payload     json.RawMessage    `db:"payload" json:"payload"`
}

// Source is one citation returned by the research provider.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Date    string `json:"date,omitempty"`
}

// ResearchPayload is what providers produce. Stored as opaque JSON on the record.
type ResearchPayload struct {
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

// IsEffectivelyPresent reports whether a record counts as current research.
// A stale record (IsValid=false) is treated exactly like an absent one.
func IsEffectivelyPresent(r *ResearchRecord) bool {
	return r != nil && r.IsValid
}

// ResearchStatus is the body of GET /companies/{companyId}/research.
// Research holds every stored record, stale ones included; Missing lists vectors
// without a valid record in display order.
type ResearchStatus struct {
	CompanyID string                                `json:"companyId"`
	Research  map[ResearchVectorType]ResearchRecord `json:"research"`
	Missing   []ResearchVectorType                  `json:"missing"`
	Pending   []ResearchVectorType                  `json:"pending"`
	Complete  bool                                  `json:"complete"`
}

// GenerationAccepted is the 202 body returned when research generation is queued.
type GenerationAccepted struct {
	Status    string               `json:"status"`
	CompanyID string               `json:"companyId"`
	Vectors   []ResearchVectorType `json:"vectors"`
}
