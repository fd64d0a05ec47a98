package research_engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/logging"
	"github.com/markdave123-py/Careerlyst/internal/metrics"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// BatchResult is the outcome of one generate-all run.
// Failed vectors stay missing in the store.
type BatchResult struct {
	CompanyID string
	Records   []*models.ResearchRecord
	Failed    []*core.VectorError
}

// Generator produces research records by calling the provider once per vector and
// persisting each success. It also owns the background queue that POST requests feed.
type Generator struct {
	store     core.ResearchStore
	companies core.CompanyDirectory
	provider  core.ResearchProvider
	archive   core.ResearchArchive
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	cfg       Config

	jobs   chan Job
	mu     sync.Mutex
	active map[Job]bool
	wg     sync.WaitGroup
}

type GeneratorOption func(*Generator)

// WithArchive copies every persisted record to object storage. Archive failures are logged, not returned.
func WithArchive(a core.ResearchArchive) GeneratorOption {
	return func(g *Generator) { g.archive = a }
}

// WithRateLimit caps provider calls per second across all batches.
func WithRateLimit(rps float64) GeneratorOption {
	return func(g *Generator) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithMetrics(m *metrics.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(l logrus.FieldLogger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

// NewGenerator wires the generator. provider may be nil when no credentials are configured;
// every generation call then fails with core.ErrProviderUnavailable.
func NewGenerator(store core.ResearchStore, companies core.CompanyDirectory, provider core.ResearchProvider, cfg Config, opts ...GeneratorOption) *Generator {
	cfg = cfg.withDefaults()
	g := &Generator{
		store:     store,
		companies: companies,
		provider:  provider,
		cfg:       cfg,
		jobs:      make(chan Job, cfg.QueueSize),
		active:    make(map[Job]bool),
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = logging.Discard()
	}
	return g
}

// Ready reports whether generation can be attempted at all.
func (g *Generator) Ready() error {
	if g.provider == nil {
		return fmt.Errorf("%w: no research provider configured", core.ErrProviderUnavailable)
	}
	return nil
}

// GenerateAll researches every vector for the company with bounded concurrency.
// A failing vector never fails the batch; an error is returned only when nothing
// could be generated.
func (g *Generator) GenerateAll(ctx context.Context, companyID string) (*BatchResult, error) {
	if err := g.Ready(); err != nil {
		g.metrics.ObserveBatch("provider_unavailable")
		return nil, err
	}
	company, err := g.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		res = &BatchResult{CompanyID: companyID}
		eg  errgroup.Group
	)
	eg.SetLimit(g.cfg.Concurrency)

	vectors := models.AllVectors()
	byVector := make(map[models.ResearchVectorType]*models.ResearchRecord, len(vectors))
	for _, v := range vectors {
		eg.Go(func() error {
			rec, err := g.generate(ctx, company, v)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, &core.VectorError{Vector: v, Err: err})
				return nil
			}
			byVector[v] = rec
			return nil
		})
	}
	_ = eg.Wait()

	for _, v := range vectors {
		if rec, ok := byVector[v]; ok {
			res.Records = append(res.Records, rec)
		}
	}

	log := g.log.WithFields(logrus.Fields{
		"company_id": companyID,
		"generated":  len(res.Records),
		"failed":     len(res.Failed),
	})

	if len(res.Records) == 0 {
		if allUnavailable(res.Failed) {
			g.metrics.ObserveBatch("provider_unavailable")
			log.Warn("research provider unavailable")
			return res, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, res.Failed[0].Err)
		}
		g.metrics.ObserveBatch("failed")
		log.Warn("research batch failed for every vector")
		return res, core.ErrAllVectorsFailed
	}

	if len(res.Failed) > 0 {
		g.metrics.ObserveBatch("partial")
		log.Info("research batch finished with missing vectors")
	} else {
		g.metrics.ObserveBatch("complete")
		log.Info("research batch finished")
	}
	return res, nil
}

// GenerateOne researches a single vector and returns the new current record.
func (g *Generator) GenerateOne(ctx context.Context, companyID string, vector models.ResearchVectorType) (*models.ResearchRecord, error) {
	if _, err := models.ParseVectorType(string(vector)); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownVector, vector)
	}
	if err := g.Ready(); err != nil {
		return nil, err
	}
	company, err := g.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	rec, err := g.generate(ctx, company, vector)
	if err != nil {
		return nil, &core.VectorError{Vector: vector, Err: err}
	}
	return rec, nil
}

// generate runs one provider call under the per-vector timeout and persists the result.
func (g *Generator) generate(ctx context.Context, company *models.Company, vector models.ResearchVectorType) (*models.ResearchRecord, error) {
	log := g.log.WithFields(logrus.Fields{"company_id": company.ID, "vector": vector})

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	vctx, cancel := context.WithTimeout(ctx, g.cfg.VectorTimeout)
	defer cancel()

	start := time.Now()
	payload, err := g.provider.Research(vctx, core.ResearchRequest{
		CompanyName:   company.Name,
		CompanyDomain: company.Domain,
		Vector:        vector,
	})
	took := time.Since(start)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		g.metrics.ObserveVector(string(vector), outcome, took)
		log.WithError(err).WithField("took", took).Warn("research vector failed")
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		g.metrics.ObserveVector(string(vector), "failed", took)
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	rec := &models.ResearchRecord{
		ID:          uuid.NewString(),
		CompanyID:   company.ID,
		VectorType:  vector,
		GeneratedAt: time.Now().UTC(),
		IsValid:     true,
		Payload:     body,
	}
	if err := g.store.Upsert(ctx, rec); err != nil {
		g.metrics.ObserveVector(string(vector), "failed", took)
		log.WithError(err).Error("persist research record")
		return nil, fmt.Errorf("persist: %w", err)
	}
	g.metrics.ObserveVector(string(vector), "ok", took)
	log.WithField("took", took).Debug("research vector generated")

	if g.archive != nil {
		if err := g.archive.ArchiveRecord(ctx, company.Name, rec); err != nil {
			g.metrics.IncArchiveFailures()
			log.WithError(err).Warn("archive research record")
		}
	}
	return rec, nil
}

func allUnavailable(failed []*core.VectorError) bool {
	if len(failed) == 0 {
		return false
	}
	for _, f := range failed {
		if !errors.Is(f, core.ErrProviderUnavailable) {
			return false
		}
	}
	return true
}
