package research_engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// Job asks for research on one company. An empty Vector means every vector.
type Job struct {
	CompanyID string
	Vector    models.ResearchVectorType
}

func (j Job) All() bool { return j.Vector == "" }

// Start runs numWorkers goroutines reading from the job queue until ctx is cancelled.
// Each job runs on its own context bounded by the batch timeout, so work already
// started finishes even when the request that queued it is gone.
func (g *Generator) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for w := 0; w < numWorkers; w++ {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-g.jobs:
					g.metrics.SetQueueDepth(len(g.jobs))
					g.run(job)
				}
			}
		}()
	}
}

// Wait blocks until every worker started by Start has returned.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// Enqueue schedules a job without blocking. A job identical to one already queued
// or running is accepted and dropped. A full queue returns core.ErrQueueFull.
func (g *Generator) Enqueue(job Job) error {
	if !job.All() {
		if _, err := models.ParseVectorType(string(job.Vector)); err != nil {
			return core.ErrUnknownVector
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[job] {
		g.log.WithFields(logrus.Fields{"company_id": job.CompanyID, "vector": job.Vector}).
			Debug("research job already in flight")
		return nil
	}

	g.active[job] = true
	select {
	case g.jobs <- job:
		g.metrics.SetQueueDepth(len(g.jobs))
		return nil
	default:
		delete(g.active, job)
		return core.ErrQueueFull
	}
}

// Pending lists, in display order, the vectors of a company that are queued or generating.
func (g *Generator) Pending(companyID string) []models.ResearchVectorType {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := g.active[Job{CompanyID: companyID}]
	var out []models.ResearchVectorType
	for _, v := range models.AllVectors() {
		if all || g.active[Job{CompanyID: companyID, Vector: v}] {
			out = append(out, v)
		}
	}
	return out
}

func (g *Generator) run(job Job) {
	defer func() {
		g.mu.Lock()
		delete(g.active, job)
		g.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.BatchTimeout)
	defer cancel()

	log := g.log.WithFields(logrus.Fields{"company_id": job.CompanyID, "vector": job.Vector})
	if job.All() {
		if _, err := g.GenerateAll(ctx, job.CompanyID); err != nil {
			log.WithError(err).Error("research job failed")
		}
		return
	}
	if _, err := g.GenerateOne(ctx, job.CompanyID, job.Vector); err != nil {
		log.WithError(err).Warn("research job failed")
	}
}
