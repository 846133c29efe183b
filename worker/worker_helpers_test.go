package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andys/netcollector/metrics"
)

type fakeClient struct {
	closed atomic.Bool
}

func (f *fakeClient) Close() error {
	f.closed.Store(true)
	return nil
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func fastOptions(extra ...Option) []Option {
	return append([]Option{
		WithCooldown(&backoff.ZeroBackOff{}),
		WithPollTick(time.Millisecond),
		WithIdleSleep(time.Millisecond),
	}, extra...)
}

// waitFor polls cond until it holds or a few seconds have passed
func waitFor(c *quicktest.C, what string, cond func() bool) {
	c.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			c.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// runAsync starts w and returns a channel receiving its result
func runAsync(ctx context.Context, w Worker) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	return done
}

func waitResult(c *quicktest.C, done <-chan error) error {
	c.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		c.Fatalf("worker did not return")
		return nil
	}
}
