package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrGaveUp is returned by a worker that stopped itself after too many
// consecutive connection failures.
var ErrGaveUp = errors.New("error ceiling reached")

// control implements the parts of Worker every worker shares. The context
// handed to Run is replaced by one that RequestStop cancels.
type control struct {
	name string

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool

	exited atomic.Bool
}

func newControl(name string) control {
	return control{name: name}
}

// Name returns the worker name
func (c *control) Name() string {
	return c.name
}

// RequestStop asks the worker to leave its loop. It may be called before Run.
func (c *control) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Alive reports whether the worker has not exited yet
func (c *control) Alive() bool {
	return !c.exited.Load()
}

func (c *control) begin(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	if c.stopped {
		cancel()
	}
	c.mu.Unlock()
	return ctx, cancel
}

func (c *control) finish() {
	c.exited.Store(true)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
