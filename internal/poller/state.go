package poller

import (
	"errors"
	"time"

	"github.com/markdave123-py/Careerlyst/internal/models"
)

// Phase is the state of the generate-all flow.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseGenerating      Phase = "generating"
	PhasePollingComplete Phase = "polling_complete"
	PhaseTimedOut        Phase = "timed_out"
	// PhaseFailed means the trigger itself was rejected, e.g. the provider is unavailable.
	PhaseFailed Phase = "failed"
)

// VectorState is how one vector should be shown.
type VectorState string

const (
	VectorReady   VectorState = "ready"
	VectorLoading VectorState = "loading"
	VectorMissing VectorState = "missing"
)

// ErrPollTimeout ends a flow whose polling budget ran out before the research was ready.
// Whatever was generated stays visible.
var ErrPollTimeout = errors.New("research polling timed out")

var ErrClosed = errors.New("tracker closed")

// Config holds the polling cadence. Tests shrink these.
type Config struct {
	AllInterval time.Duration
	AllTimeout  time.Duration
	OneInterval time.Duration
	OneTimeout  time.Duration
	// PollTimeout bounds a single status request.
	PollTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		AllInterval: 3 * time.Second,
		AllTimeout:  10 * time.Minute,
		OneInterval: 2 * time.Second,
		OneTimeout:  5 * time.Minute,
		PollTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AllInterval <= 0 {
		c.AllInterval = d.AllInterval
	}
	if c.AllTimeout <= 0 {
		c.AllTimeout = d.AllTimeout
	}
	if c.OneInterval <= 0 {
		c.OneInterval = d.OneInterval
	}
	if c.OneTimeout <= 0 {
		c.OneTimeout = d.OneTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	return c
}

// VectorView is one row of the research view.
type VectorView struct {
	Vector   models.ResearchVectorType
	State    VectorState
	Record   *models.ResearchRecord // set when State is ready
	TimedOut bool                   // last single-vector regeneration timed out
}

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	CompanyID string
	Phase     Phase
	Err       error
	Vectors   []VectorView // display order
	Selected  models.ResearchVectorType
}

func (s Snapshot) Vector(v models.ResearchVectorType) VectorView {
	for _, vv := range s.Vectors {
		if vv.Vector == v {
			return vv
		}
	}
	return VectorView{Vector: v, State: VectorMissing}
}

// ReadyCount is the number of vectors with current research.
func (s Snapshot) ReadyCount() int {
	n := 0
	for _, vv := range s.Vectors {
		if vv.State == VectorReady {
			n++
		}
	}
	return n
}
