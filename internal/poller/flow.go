package poller

import (
	"context"
	"sync"

	"github.com/markdave123-py/Careerlyst/internal/models"
)

// Flow is the handle of one polling loop. It ends exactly once: with nil when the
// research became ready, ErrPollTimeout, or context.Canceled.
type Flow struct {
	Vector models.ResearchVectorType // empty for the generate-all flow

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newFlow(parent context.Context, vector models.ResearchVectorType) (*Flow, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Flow{Vector: vector, cancel: cancel, done: make(chan struct{})}, ctx
}

// Done is closed when the flow reaches a terminal state.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Err is the terminal result. Only meaningful after Done is closed.
func (f *Flow) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Cancel stops polling. The server-side job is not affected.
func (f *Flow) Cancel() { f.cancel() }

// Wait blocks until the flow ends or ctx is done.
func (f *Flow) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flow) finish(err error) bool {
	first := false
	f.once.Do(func() {
		first = true
		f.err = err
		f.cancel()
		close(f.done)
	})
	return first
}
