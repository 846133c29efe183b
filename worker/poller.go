package worker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/andys/netcollector/flow"
	"github.com/andys/netcollector/metrics"
	"github.com/andys/netcollector/queue"
)

// Poller owns one device session of type C and runs the extractors of its
// flows against it on their own schedules.
type Poller[C io.Closer] struct {
	control

	dial       func(ctx context.Context) (C, error)
	defs       []flow.Definition
	extractors map[string]Extractor[C]
	queue      *queue.Queue
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	opts       options

	state      *fsm.FSM
	client     C
	errorCount int
	lastRun    map[string]time.Time
}

// NewPoller creates a polling worker. Every definition must have an extractor.
func NewPoller[C io.Closer](
	name string,
	dial func(ctx context.Context) (C, error),
	defs []flow.Definition,
	extractors map[string]Extractor[C],
	q *queue.Queue,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
	opts ...Option,
) (*Poller[C], error) {
	for _, def := range defs {
		ex, ok := extractors[def.Name]
		if !ok {
			return nil, fmt.Errorf("worker %s has no extractor for flow %s", name, def.Name)
		}
		if ex.Width != len(def.Columns) {
			return nil, fmt.Errorf("flow %s: extractor yields %d values but %d columns are configured",
				def.Name, ex.Width, len(def.Columns))
		}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log = log.Named(name)
	return &Poller[C]{
		control:    newControl(name),
		dial:       dial,
		defs:       defs,
		extractors: extractors,
		queue:      q,
		metrics:    m,
		log:        log,
		opts:       o,
		state:      newConnectionFSM(log),
		lastRun:    make(map[string]time.Time, len(defs)),
	}, nil
}

// State returns the connection state
func (p *Poller[C]) State() string {
	return p.state.Current()
}

// Run polls until the worker is stopped or an extractor fails
func (p *Poller[C]) Run(parent context.Context) (err error) {
	ctx, cancel := p.begin(parent)
	defer cancel()
	defer p.finish()
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("Unexpected panic in loop", "panic", r)
			p.shutdown(ctx)
			err = fmt.Errorf("worker %s: panic: %v", p.name, r)
		}
	}()

	p.log.Infow("Starting loop", "flows", len(p.defs))
	var gaveUp bool
	for {
		if p.errorCount > 0 {
			sleep(ctx, p.opts.nextCooldown())
		}
		if p.errorCount > p.opts.errorCeiling && !gaveUp {
			p.log.Errorw("Could not connect, breaking loop", "attempts", p.errorCount)
			gaveUp = true
			p.RequestStop()
		}

		if ctx.Err() != nil {
			p.shutdown(ctx)
			p.log.Infow("Breaking loop")
			if gaveUp {
				return fmt.Errorf("worker %s: %w", p.name, ErrGaveUp)
			}
			return nil
		}

		if p.state.Current() == StateDisconnected {
			p.connect(ctx)
			continue
		}

		if err := p.pollDue(ctx); err != nil {
			if ctx.Err() != nil {
				// Interrupted while waiting for queue space.
				continue
			}
			p.log.Errorw("Unexpected error in loop", "error", err)
			p.shutdown(ctx)
			return fmt.Errorf("worker %s: %w", p.name, err)
		}

		sleep(ctx, p.opts.tick)
	}
}

func (p *Poller[C]) connect(ctx context.Context) {
	client, err := p.dial(ctx)
	if err != nil {
		var zero C
		p.client = zero
		p.errorCount++
		p.metrics.ConnectFailures.WithLabelValues(p.name).Inc()
		p.log.Errorw("Error connecting", "error", err, "attempt", p.errorCount)
		return
	}
	p.client = client
	p.errorCount = 0
	p.opts.cooldown.Reset()
	fire(ctx, p.state, eventConnect, p.log)
	p.log.Infow("Connected")
}

func (p *Poller[C]) disconnect(ctx context.Context) {
	if p.state.Current() != StateConnected {
		return
	}
	if err := p.client.Close(); err != nil {
		p.log.Errorw("Error disconnecting", "error", err)
	} else {
		p.log.Infow("Disconnected")
	}
	var zero C
	p.client = zero
	fire(ctx, p.state, eventDrop, p.log)
}

// shutdown closes the session and moves the state machine to stopped
func (p *Poller[C]) shutdown(ctx context.Context) {
	p.disconnect(ctx)
	fire(ctx, p.state, eventStop, p.log)
	fire(ctx, p.state, eventStopped, p.log)
}

// pollDue runs every flow whose interval has elapsed since its last
// successful run
func (p *Poller[C]) pollDue(ctx context.Context) error {
	for _, def := range p.defs {
		last, ran := p.lastRun[def.Name]
		if ran && p.opts.now().Sub(last) <= def.PollInterval {
			continue
		}

		p.log.Debugw("Running flow", "flow", def.Name)
		rows, err := p.extractors[def.Name].Extract(ctx, p.client, def)
		if err != nil {
			return fmt.Errorf("flow %s: %w", def.Name, err)
		}
		p.lastRun[def.Name] = p.opts.now()

		if len(rows) == 0 {
			continue
		}
		if err := p.queue.Put(ctx, flow.Message{Flow: def.Name, Rows: rows}); err != nil {
			return err
		}
		p.metrics.MessagesEnqueued.WithLabelValues(def.Name).Inc()
	}
	return nil
}
