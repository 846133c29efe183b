package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/andys/netcollector/metrics"
)

// ErrWorkerFailed is returned by Supervisor.Run when shutdown was caused by a
// worker exiting on its own.
var ErrWorkerFailed = errors.New("worker stopped unexpectedly")

const (
	DefaultCheckInterval = 5 * time.Second
	DefaultJoinTimeout   = 10 * time.Second
)

// Supervisor runs the workers and shuts all of them down as soon as one dies
// or the parent context is cancelled.
type Supervisor struct {
	workers       []Worker
	metrics       *metrics.Metrics
	log           *zap.SugaredLogger
	checkInterval time.Duration
	joinTimeout   time.Duration
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithCheckInterval sets how often worker liveness is read
func WithCheckInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.checkInterval = d
	}
}

// WithJoinTimeout sets how long shutdown waits for each worker
func WithJoinTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.joinTimeout = d
	}
}

// NewSupervisor creates a supervisor for workers
func NewSupervisor(workers []Worker, m *metrics.Metrics, log *zap.SugaredLogger, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		workers:       workers,
		metrics:       m,
		log:           log,
		checkInterval: DefaultCheckInterval,
		joinTimeout:   DefaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts every worker and blocks until shutdown is complete. It returns
// nil when ctx was cancelled and an error wrapping ErrWorkerFailed when a
// worker died.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.workers) == 0 {
		return fmt.Errorf("no workers to supervise")
	}

	root, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := pond.NewPool(len(s.workers))
	tasks := make([]pond.Task, len(s.workers))
	for i, w := range s.workers {
		s.metrics.WorkerUp.WithLabelValues(w.Name()).Set(1)
		tasks[i] = pool.SubmitErr(func() error {
			return w.Run(root)
		})
		s.log.Infow("Started worker", "worker", w.Name())
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	var dead Worker
	for dead == nil {
		select {
		case <-ctx.Done():
			s.log.Infow("Shutdown requested")
			s.shutdown(cancel, tasks)
			pool.Stop()
			return nil
		case <-ticker.C:
			dead = s.check()
		}
	}

	s.log.Errorw("Worker is not running, shutting down", "worker", dead.Name())
	s.shutdown(cancel, tasks)
	pool.Stop()
	return fmt.Errorf("%w: %s", ErrWorkerFailed, dead.Name())
}

// check updates the liveness gauges and returns the first dead worker
func (s *Supervisor) check() Worker {
	var dead Worker
	for _, w := range s.workers {
		up := w.Alive()
		if up {
			s.metrics.WorkerUp.WithLabelValues(w.Name()).Set(1)
		} else {
			s.metrics.WorkerUp.WithLabelValues(w.Name()).Set(0)
			if dead == nil {
				dead = w
			}
		}
	}
	return dead
}

// shutdown stops every worker and waits for each one at most joinTimeout.
// Workers that do not finish in time are abandoned.
func (s *Supervisor) shutdown(cancel context.CancelFunc, tasks []pond.Task) {
	for _, w := range s.workers {
		w.RequestStop()
	}
	cancel()

	for i, w := range s.workers {
		timer := time.NewTimer(s.joinTimeout)
		select {
		case <-tasks[i].Done():
			if err := tasks[i].Wait(); err != nil {
				s.log.Warnw("Worker exited with error", "worker", w.Name(), "error", err)
			} else {
				s.log.Infow("Worker stopped", "worker", w.Name())
			}
		case <-timer.C:
			s.log.Errorw("Worker did not stop in time, abandoning it", "worker", w.Name(), "timeout", s.joinTimeout)
		}
		timer.Stop()
		s.metrics.WorkerUp.WithLabelValues(w.Name()).Set(0)
	}
}
