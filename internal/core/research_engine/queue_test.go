package research_engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

func TestEnqueueDeduplicatesAndBounds(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	g := NewGenerator(newMemStore(), testCompanies(), &fakeProvider{}, cfg)

	require.NoError(t, g.Enqueue(Job{CompanyID: "acme"}))
	require.NoError(t, g.Enqueue(Job{CompanyID: "acme"}), "duplicate is accepted")
	assert.Len(t, g.jobs, 1)

	require.NoError(t, g.Enqueue(Job{CompanyID: "beta", Vector: models.VectorFunding}))
	assert.ErrorIs(t, g.Enqueue(Job{CompanyID: "beta", Vector: models.VectorRisks}), core.ErrQueueFull)
	assert.ErrorIs(t, g.Enqueue(Job{CompanyID: "beta", Vector: "vibes"}), core.ErrUnknownVector)

	assert.Equal(t, models.AllVectors(), g.Pending("acme"))
	assert.Equal(t, []models.ResearchVectorType{models.VectorFunding}, g.Pending("beta"))
	assert.Empty(t, g.Pending("gamma"))
}

func TestWorkersDrainQueue(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{gate: make(chan struct{})}
	g := NewGenerator(store, testCompanies(), provider, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx, 2)

	require.NoError(t, g.Enqueue(Job{CompanyID: "acme"}))
	require.NoError(t, g.Enqueue(Job{CompanyID: "beta", Vector: models.VectorFunding}))

	require.Eventually(t, func() bool { return provider.running.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, g.Pending("acme"))
	assert.Equal(t, []models.ResearchVectorType{models.VectorFunding}, g.Pending("beta"))

	close(provider.gate)

	require.Eventually(t, func() bool {
		return len(g.Pending("acme")) == 0 && len(g.Pending("beta")) == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, len(models.AllVectors())+1, store.count())

	cancel()
	g.Wait()
}

func TestWorkerRunsSingleVectorJob(t *testing.T) {
	store := newMemStore()
	g := NewGenerator(store, testCompanies(), &fakeProvider{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx, 1)

	require.NoError(t, g.Enqueue(Job{CompanyID: "beta", Vector: models.VectorMission}))

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}
