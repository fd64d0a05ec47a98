package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

type fakeAPI struct {
	mu        sync.Mutex
	polls     int
	statusFn  func(poll int) (*models.ResearchStatus, error)
	genAllErr error
	genOneErr error
	genAll    int
	genOne    []models.ResearchVectorType
	// delay holds every trigger call until it passes or ctx ends.
	delay time.Duration
}

func (f *fakeAPI) Status(_ context.Context, companyID string) (*models.ResearchStatus, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return status(companyID, nil), nil
	}
	return fn(n)
}

func (f *fakeAPI) GenerateAll(ctx context.Context, _ string) error {
	if err := f.hold(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genAll++
	return f.genAllErr
}

func (f *fakeAPI) GenerateOne(ctx context.Context, _ string, v models.ResearchVectorType) error {
	if err := f.hold(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genOne = append(f.genOne, v)
	return f.genOneErr
}

func (f *fakeAPI) hold(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) triggers() (all, one int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genAll, len(f.genOne)
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// status builds a response where every vector in valid has a current record with ID "<vector>-1".
func status(companyID string, valid []models.ResearchVectorType) *models.ResearchStatus {
	st := &models.ResearchStatus{CompanyID: companyID, Research: map[models.ResearchVectorType]models.ResearchRecord{}}
	for _, v := range valid {
		st.Research[v] = models.ResearchRecord{ID: string(v) + "-1", CompanyID: companyID, VectorType: v, IsValid: true}
	}
	return st
}

func fastConfig() Config {
	return Config{
		AllInterval: 5 * time.Millisecond,
		AllTimeout:  2 * time.Second,
		OneInterval: 5 * time.Millisecond,
		OneTimeout:  2 * time.Second,
		PollTimeout: time.Second,
	}
}

func wait(t *testing.T, f *Flow) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-f.Done():
		return f.Err()
	case <-ctx.Done():
		t.Fatal("flow did not finish")
		return nil
	}
}

type phaseRecorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *phaseRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.phases); n == 0 || r.phases[n-1] != s.Phase {
		r.phases = append(r.phases, s.Phase)
	}
}

func (r *phaseRecorder) count(p Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.phases {
		if got == p {
			n++
		}
	}
	return n
}

func TestGenerateAllCompletesWhenEveryVectorIsReady(t *testing.T) {
	all := models.AllVectors()
	api := &fakeAPI{statusFn: func(poll int) (*models.ResearchStatus, error) {
		switch poll {
		case 1:
			return status("acme", all[:5]), nil
		case 2:
			return status("acme", all[:10]), nil
		default:
			return status("acme", all), nil
		}
	}}
	rec := &phaseRecorder{}
	tr := NewTracker(api, "acme", fastConfig(), WithOnChange(rec.record))
	defer tr.Close()

	f, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, wait(t, f))

	assert.Equal(t, 3, api.pollCount())
	snap := tr.Snapshot()
	assert.Equal(t, PhasePollingComplete, snap.Phase)
	assert.Equal(t, len(all), snap.ReadyCount())
	assert.Equal(t, models.VectorMission, snap.Selected)
	assert.Equal(t, []Phase{PhaseIdle, PhaseGenerating, PhasePollingComplete}, fromIdle(rec))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, api.pollCount(), "no polls after completion")
}

// fromIdle prepends the initial phase to the recorded transitions.
func fromIdle(r *phaseRecorder) []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase{PhaseIdle}, r.phases...)
}

func TestGenerateAllNeverCompletesWithOneVectorStale(t *testing.T) {
	all := models.AllVectors()
	api := &fakeAPI{statusFn: func(int) (*models.ResearchStatus, error) {
		st := status("acme", all[:len(all)-1])
		last := all[len(all)-1]
		st.Research[last] = models.ResearchRecord{ID: "stale", VectorType: last, IsValid: false}
		return st, nil
	}}
	rec := &phaseRecorder{}
	cfg := fastConfig()
	cfg.AllTimeout = 60 * time.Millisecond
	tr := NewTracker(api, "acme", cfg, WithOnChange(rec.record))
	defer tr.Close()

	start := time.Now()
	f, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, f), ErrPollTimeout)
	assert.GreaterOrEqual(t, time.Since(start), cfg.AllTimeout)

	snap := tr.Snapshot()
	assert.Equal(t, PhaseTimedOut, snap.Phase)
	assert.Equal(t, len(all)-1, snap.ReadyCount(), "partial results stay visible")
	assert.Equal(t, VectorMissing, snap.Vector(all[len(all)-1]).State)
	assert.Equal(t, 1, rec.count(PhaseTimedOut))

	polls := api.pollCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, api.pollCount(), "no polls after timeout")
}

func TestRegenerateOneVector(t *testing.T) {
	api := &fakeAPI{statusFn: func(poll int) (*models.ResearchStatus, error) {
		if poll <= 2 {
			return status("beta", []models.ResearchVectorType{models.VectorMission}), nil
		}
		return status("beta", []models.ResearchVectorType{models.VectorMission, models.VectorFunding}), nil
	}}
	cfg := fastConfig()
	cfg.OneInterval = 20 * time.Millisecond
	tr := NewTracker(api, "beta", cfg)
	defer tr.Close()

	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, models.VectorMission, tr.Snapshot().Selected)

	f, err := tr.Regenerate(context.Background(), models.VectorFunding)
	require.NoError(t, err)
	assert.Equal(t, VectorLoading, tr.Snapshot().Vector(models.VectorFunding).State)

	require.NoError(t, wait(t, f))
	assert.Equal(t, 3, api.pollCount(), "one load plus two flow polls")
	assert.Equal(t, []models.ResearchVectorType{models.VectorFunding}, api.genOne)

	snap := tr.Snapshot()
	assert.Equal(t, VectorReady, snap.Vector(models.VectorFunding).State)
	mission := snap.Vector(models.VectorMission)
	require.NotNil(t, mission.Record)
	assert.Equal(t, "mission-1", mission.Record.ID)
	assert.Equal(t, PhaseIdle, snap.Phase, "the generate-all flow is untouched")
	assert.Equal(t, 0, api.genAll)
}

func TestRegenerateWaitsForNewRecord(t *testing.T) {
	api := &fakeAPI{statusFn: func(poll int) (*models.ResearchStatus, error) {
		st := status("acme", []models.ResearchVectorType{models.VectorValues})
		if poll >= 4 {
			r := st.Research[models.VectorValues]
			r.ID = "values-2"
			st.Research[models.VectorValues] = r
		}
		return st, nil
	}}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()
	require.NoError(t, tr.Load(context.Background()))

	f, err := tr.Regenerate(context.Background(), models.VectorValues)
	require.NoError(t, err)
	require.NoError(t, wait(t, f))
	assert.Equal(t, 4, api.pollCount())
	assert.Equal(t, "values-2", tr.Snapshot().Vector(models.VectorValues).Record.ID)
}

func TestRegenerateTimesOut(t *testing.T) {
	api := &fakeAPI{}
	cfg := fastConfig()
	cfg.OneTimeout = 40 * time.Millisecond
	tr := NewTracker(api, "acme", cfg)
	defer tr.Close()

	f, err := tr.Regenerate(context.Background(), models.VectorRisks)
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, f), ErrPollTimeout)

	v := tr.Snapshot().Vector(models.VectorRisks)
	assert.Equal(t, VectorMissing, v.State)
	assert.True(t, v.TimedOut)

	_, err = tr.Regenerate(context.Background(), "vibes")
	assert.ErrorIs(t, err, core.ErrUnknownVector)
}

func TestGenerateAllProviderUnavailable(t *testing.T) {
	api := &fakeAPI{genAllErr: &APIError{StatusCode: http.StatusServiceUnavailable, Kind: "provider_unavailable", Message: "no key"}}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()

	f, err := tr.GenerateAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)

	snap := tr.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.ErrorIs(t, snap.Err, core.ErrProviderUnavailable)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, api.pollCount(), "no polling after a failed trigger")
}

func TestPollErrorsDoNotEndFlow(t *testing.T) {
	api := &fakeAPI{statusFn: func(poll int) (*models.ResearchStatus, error) {
		if poll <= 2 {
			return nil, errors.New("connection reset")
		}
		return status("acme", models.AllVectors()), nil
	}}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()

	f, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, wait(t, f))
	assert.Equal(t, 3, api.pollCount())
	assert.Equal(t, PhasePollingComplete, tr.Snapshot().Phase)
}

func TestGenerateAllReusesRunningFlow(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()

	first, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	second, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, api.genAll)
}

func TestAutoSelectPicksFirstReadyInListOrder(t *testing.T) {
	api := &fakeAPI{statusFn: func(int) (*models.ResearchStatus, error) {
		return status("acme", []models.ResearchVectorType{models.VectorRisks, models.VectorValues}), nil
	}}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()

	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, models.VectorValues, tr.Snapshot().Selected)

	tr.Select(models.VectorRisks)
	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, models.VectorRisks, tr.Snapshot().Selected, "an explicit selection is kept")
}

func TestCloseCancelsEveryFlow(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTracker(api, "acme", fastConfig())

	all, err := tr.GenerateAll(context.Background())
	require.NoError(t, err)
	one, err := tr.Regenerate(context.Background(), models.VectorFunding)
	require.NoError(t, err)

	snap := tr.Snapshot()
	assert.Equal(t, PhaseGenerating, snap.Phase)
	assert.Equal(t, VectorLoading, snap.Vector(models.VectorMission).State)

	tr.Close()
	assert.ErrorIs(t, all.Err(), context.Canceled)
	assert.ErrorIs(t, one.Err(), context.Canceled)
	assert.Equal(t, PhaseIdle, tr.Snapshot().Phase)

	polls := api.pollCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polls, api.pollCount())

	_, err = tr.GenerateAll(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentTriggersShareOneFlow(t *testing.T) {
	api := &fakeAPI{delay: 20 * time.Millisecond}
	cfg := fastConfig()
	cfg.AllTimeout = 10 * time.Second
	cfg.OneTimeout = 10 * time.Second
	tr := NewTracker(api, "acme", cfg)

	var (
		wg       sync.WaitGroup
		allFlows = make([]*Flow, 2)
		oneFlows = make([]*Flow, 2)
	)
	for i := range 2 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f, err := tr.GenerateAll(context.Background())
			assert.NoError(t, err)
			allFlows[i] = f
		}()
		go func() {
			defer wg.Done()
			f, err := tr.Regenerate(context.Background(), models.VectorFunding)
			assert.NoError(t, err)
			oneFlows[i] = f
		}()
	}
	wg.Wait()

	assert.Same(t, allFlows[0], allFlows[1])
	assert.Same(t, oneFlows[0], oneFlows[1])
	all, one := api.triggers()
	assert.Equal(t, 1, all)
	assert.Equal(t, 1, one)

	start := time.Now()
	tr.Close()
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, allFlows[0].Err(), context.Canceled)
	assert.ErrorIs(t, oneFlows[0].Err(), context.Canceled)
	assert.Equal(t, PhaseIdle, tr.Snapshot().Phase)
}

func TestCloseDuringTriggerDoesNotWaitForIt(t *testing.T) {
	api := &fakeAPI{delay: 10 * time.Second}
	tr := NewTracker(api, "acme", fastConfig())

	errs := make(chan error, 2)
	go func() {
		_, err := tr.GenerateAll(context.Background())
		errs <- err
	}()
	go func() {
		_, err := tr.Regenerate(context.Background(), models.VectorRisks)
		errs <- err
	}()
	require.Eventually(t, func() bool {
		snap := tr.Snapshot()
		return snap.Phase == PhaseGenerating && snap.Vector(models.VectorRisks).State == VectorLoading
	}, time.Second, time.Millisecond)

	start := time.Now()
	tr.Close()
	assert.Less(t, time.Since(start), time.Second)
	for range 2 {
		assert.ErrorIs(t, <-errs, context.Canceled)
	}
	assert.Equal(t, PhaseIdle, tr.Snapshot().Phase)
	assert.Equal(t, VectorMissing, tr.Snapshot().Vector(models.VectorRisks).State)
	assert.Zero(t, api.pollCount())
}

func TestFailedTriggerEndsSharedFlow(t *testing.T) {
	api := &fakeAPI{delay: 50 * time.Millisecond, genOneErr: errors.New("bad gateway")}
	tr := NewTracker(api, "acme", fastConfig())
	defer tr.Close()

	firstErr := make(chan error, 1)
	go func() {
		_, err := tr.Regenerate(context.Background(), models.VectorFunding)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return tr.Snapshot().Vector(models.VectorFunding).State == VectorLoading
	}, time.Second, time.Millisecond)

	joined, err := tr.Regenerate(context.Background(), models.VectorFunding)
	require.NoError(t, err)
	require.NotNil(t, joined)

	assert.EqualError(t, <-firstErr, "bad gateway")
	assert.EqualError(t, wait(t, joined), "bad gateway")
	_, one := api.triggers()
	assert.Equal(t, 1, one)
	assert.Equal(t, VectorMissing, tr.Snapshot().Vector(models.VectorFunding).State)
}
