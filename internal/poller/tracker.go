package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/logging"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// Tracker is the client-side state machine for one company's research. It owns every
// polling loop it starts: one generate-all flow and at most one flow per vector.
type Tracker struct {
	api       API
	companyID string
	cfg       Config
	log       logrus.FieldLogger
	onChange  func(Snapshot)

	mu       sync.Mutex
	phase    Phase
	err      error
	records  map[models.ResearchVectorType]models.ResearchRecord
	selected models.ResearchVectorType
	allFlow  *Flow
	oneFlows map[models.ResearchVectorType]*Flow
	timedOut map[models.ResearchVectorType]bool
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Tracker)

func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithOnChange registers a callback invoked after every state change. It runs on the
// polling goroutine and must not call back into the tracker synchronously.
func WithOnChange(fn func(Snapshot)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

func NewTracker(api API, companyID string, cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		api:       api,
		companyID: companyID,
		cfg:       cfg.withDefaults(),
		phase:     PhaseIdle,
		records:   map[models.ResearchVectorType]models.ResearchRecord{},
		oneFlows:  map[models.ResearchVectorType]*Flow{},
		timedOut:  map[models.ResearchVectorType]bool{},
	}
	for _, o := range opts {
		o(t)
	}
	if t.log == nil {
		t.log = logging.Discard()
	}
	t.log = t.log.WithField("company_id", companyID)
	return t
}

// Load fetches the current research once, as on a page load.
func (t *Tracker) Load(ctx context.Context) error {
	st, err := t.api.Status(ctx, t.companyID)
	if err != nil {
		return err
	}
	t.apply(st)
	return nil
}

// GenerateAll triggers generation of every vector and starts polling. The flow slot is
// taken before the trigger is sent, so concurrent callers share one trigger and one flow.
// When the trigger fails the tracker enters PhaseFailed, the flow ends with the trigger
// error and no polling starts.
func (t *Tracker) GenerateAll(ctx context.Context) (*Flow, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.allFlow != nil {
		f := t.allFlow
		t.mu.Unlock()
		return f, nil
	}
	f, fctx := newFlow(context.Background(), "")
	t.allFlow = f
	t.phase, t.err = PhaseGenerating, nil
	t.wg.Add(1)
	t.mu.Unlock()
	t.notify()

	tctx, stop := triggerContext(ctx, fctx)
	err := t.api.GenerateAll(tctx, t.companyID)
	stop()
	if err != nil {
		defer t.wg.Done()
		if fctx.Err() != nil {
			t.finishAll(f, context.Canceled)
			return nil, context.Canceled
		}
		t.mu.Lock()
		if t.allFlow == f {
			t.allFlow = nil
		}
		t.phase, t.err = PhaseFailed, err
		t.mu.Unlock()
		t.log.WithError(err).Error("generate all research failed")
		f.finish(err)
		t.notify()
		return nil, err
	}

	go t.poll(fctx, f, t.cfg.AllInterval, t.cfg.AllTimeout, allPresent, t.finishAll)
	return f, nil
}

// Regenerate triggers generation of one vector and polls for it independently of any
// generate-all flow. Concurrent calls for the same vector share one trigger and one flow.
func (t *Tracker) Regenerate(ctx context.Context, vector models.ResearchVectorType) (*Flow, error) {
	if _, err := models.ParseVectorType(string(vector)); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownVector, vector)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if f, ok := t.oneFlows[vector]; ok {
		t.mu.Unlock()
		return f, nil
	}
	// The current record, valid or stale, must be superseded before the flow completes.
	prevID := ""
	if r, ok := t.records[vector]; ok {
		prevID = r.ID
	}
	f, fctx := newFlow(context.Background(), vector)
	t.oneFlows[vector] = f
	delete(t.timedOut, vector)
	t.wg.Add(1)
	t.mu.Unlock()
	t.notify()

	tctx, stop := triggerContext(ctx, fctx)
	err := t.api.GenerateOne(tctx, t.companyID, vector)
	stop()
	if err != nil {
		defer t.wg.Done()
		if fctx.Err() != nil {
			t.finishOne(f, context.Canceled)
			return nil, context.Canceled
		}
		t.log.WithError(err).WithField("vector", vector).Warn("regenerate research failed")
		t.finishOne(f, err)
		return nil, err
	}

	ready := func(st *models.ResearchStatus) bool {
		r, ok := st.Research[vector]
		return ok && models.IsEffectivelyPresent(&r) && r.ID != prevID
	}
	go t.poll(fctx, f, t.cfg.OneInterval, t.cfg.OneTimeout, ready, t.finishOne)
	return f, nil
}

// triggerContext derives the trigger request context from ctx. It is also cancelled
// when the flow is, so Close does not wait on a slow trigger.
func triggerContext(ctx, flowCtx context.Context) (context.Context, func()) {
	tctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(flowCtx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

// poll re-fetches status every interval until ready reports true, the budget runs out,
// or the flow is cancelled. Poll errors are logged and the next tick proceeds.
func (t *Tracker) poll(ctx context.Context, f *Flow, interval, timeout time.Duration,
	ready func(*models.ResearchStatus) bool, finish func(*Flow, error)) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	log := t.log.WithField("vector", f.Vector)
	for {
		select {
		case <-ctx.Done():
			finish(f, context.Canceled)
			return
		case <-deadline.C:
			log.Warn("research polling timed out")
			finish(f, ErrPollTimeout)
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
			st, err := t.api.Status(pctx, t.companyID)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("research poll failed")
				}
				continue
			}
			t.apply(st)
			if ready(st) {
				finish(f, nil)
				return
			}
		}
	}
}

func (t *Tracker) finishAll(f *Flow, err error) {
	t.mu.Lock()
	if t.allFlow == f {
		t.allFlow = nil
	}
	switch {
	case err == nil:
		t.phase = PhasePollingComplete
	case errors.Is(err, ErrPollTimeout):
		t.phase = PhaseTimedOut
	default:
		t.phase = PhaseIdle
	}
	t.mu.Unlock()

	if f.finish(err) {
		t.notify()
	}
}

func (t *Tracker) finishOne(f *Flow, err error) {
	t.mu.Lock()
	if t.oneFlows[f.Vector] == f {
		delete(t.oneFlows, f.Vector)
	}
	if errors.Is(err, ErrPollTimeout) {
		t.timedOut[f.Vector] = true
	}
	t.mu.Unlock()

	if f.finish(err) {
		t.notify()
	}
}

// apply records a status response and auto-selects the first ready vector when nothing is selected.
func (t *Tracker) apply(st *models.ResearchStatus) {
	t.mu.Lock()
	t.records = make(map[models.ResearchVectorType]models.ResearchRecord, len(st.Research))
	for v, r := range st.Research {
		t.records[v] = r
	}
	if t.selected == "" {
		for _, v := range models.AllVectors() {
			if r, ok := t.records[v]; ok && models.IsEffectivelyPresent(&r) {
				t.selected = v
				break
			}
		}
	}
	t.mu.Unlock()
	t.notify()
}

// Select sets the vector shown in detail. Selecting "" lets auto-selection pick again.
func (t *Tracker) Select(v models.ResearchVectorType) {
	t.mu.Lock()
	t.selected = v
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		CompanyID: t.companyID,
		Phase:     t.phase,
		Err:       t.err,
		Selected:  t.selected,
	}
	for _, v := range models.AllVectors() {
		vv := VectorView{Vector: v, State: VectorMissing, TimedOut: t.timedOut[v]}
		r, ok := t.records[v]
		_, regenerating := t.oneFlows[v]
		switch {
		case regenerating:
			vv.State = VectorLoading
		case ok && models.IsEffectivelyPresent(&r):
			vv.State = VectorReady
			vv.Record = &r
		case t.allFlow != nil:
			vv.State = VectorLoading
		}
		s.Vectors = append(s.Vectors, vv)
	}
	return s
}

func (t *Tracker) notify() {
	if t.onChange == nil {
		return
	}
	t.onChange(t.Snapshot())
}

// Close cancels every flow and waits for their polling loops to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	flows := make([]*Flow, 0, len(t.oneFlows)+1)
	if t.allFlow != nil {
		flows = append(flows, t.allFlow)
	}
	for _, f := range t.oneFlows {
		flows = append(flows, f)
	}
	t.mu.Unlock()

	for _, f := range flows {
		f.Cancel()
	}
	t.wg.Wait()
}

func allPresent(st *models.ResearchStatus) bool {
	for _, v := range models.AllVectors() {
		r, ok := st.Research[v]
		if !ok || !models.IsEffectivelyPresent(&r) {
			return false
		}
	}
	return true
}
