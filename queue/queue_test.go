package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andys/netcollector/flow"
	"github.com/frankban/quicktest"
)

func msg(name string, v int) flow.Message {
	return flow.Message{Flow: name, Rows: []flow.Row{{v}}}
}

func TestQueue_FIFO(t *testing.T) {
	c := quicktest.New(t)
	q := New(3)
	ctx := context.Background()

	c.Assert(q.Put(ctx, msg("a", 1)), quicktest.IsNil)
	c.Assert(q.Put(ctx, msg("b", 2)), quicktest.IsNil)
	c.Assert(q.Put(ctx, msg("a", 3)), quicktest.IsNil)
	c.Assert(q.Len(), quicktest.Equals, 3)

	for _, want := range []flow.Message{msg("a", 1), msg("b", 2), msg("a", 3)} {
		got, ok := q.TryGet()
		c.Assert(ok, quicktest.IsTrue)
		c.Assert(got, quicktest.DeepEquals, want)
	}
	_, ok := q.TryGet()
	c.Assert(ok, quicktest.IsFalse)
}

func TestQueue_PutBlocksWhenFull(t *testing.T) {
	c := quicktest.New(t)
	q := New(1)
	c.Assert(q.Put(context.Background(), msg("a", 1)), quicktest.IsNil)

	done := make(chan error, 1)
	go func() {
		done <- q.Put(context.Background(), msg("a", 2))
	}()

	select {
	case <-done:
		c.Fatal("put returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	first, ok := q.TryGet()
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(first.Rows[0][0], quicktest.Equals, 1)

	select {
	case err := <-done:
		c.Assert(err, quicktest.IsNil)
	case <-time.After(time.Second):
		c.Fatal("put did not resume after space was freed")
	}
	second, ok := q.TryGet()
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(second.Rows[0][0], quicktest.Equals, 2)
}

func TestQueue_PutUnblocksOnCancel(t *testing.T) {
	c := quicktest.New(t)
	q := New(1)
	c.Assert(q.Put(context.Background(), msg("a", 1)), quicktest.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Put(ctx, msg("a", 2))
	}()
	cancel()

	select {
	case err := <-done:
		c.Assert(errors.Is(err, context.Canceled), quicktest.IsTrue)
	case <-time.After(time.Second):
		c.Fatal("put did not return after cancel")
	}
	c.Assert(q.Len(), quicktest.Equals, 1)
}

func TestQueue_MinimumCapacity(t *testing.T) {
	c := quicktest.New(t)
	c.Assert(New(0).Cap(), quicktest.Equals, 1)
	c.Assert(New(10).Cap(), quicktest.Equals, 10)
}
