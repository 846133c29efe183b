package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/andys/netcollector/db"
	"github.com/andys/netcollector/flow"
	"github.com/andys/netcollector/metrics"
	"github.com/andys/netcollector/queue"
)

// PersisterName is the worker name of the persistence worker
const PersisterName = "persister"

// Store is the part of a store connection the persister uses
type Store interface {
	ExecBatch(ctx context.Context, stmt db.Statement, rows []flow.Row) (int64, error)
	CheckColumns(ctx context.Context, table string, columns []string) error
	Close() error
}

// Opener opens a new store session
type Opener func(ctx context.Context) (Store, error)

// PersisterProgress is a snapshot of what the persister has done so far
type PersisterProgress struct {
	PersistedRows   int64
	DroppedMessages int64
	ErrorCount      int64
	StartTime       time.Time
}

// Persister drains the record queue into the store
type Persister struct {
	control

	open       Opener
	registry   *flow.Registry
	statements map[string]db.Statement
	queue      *queue.Queue
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	opts       options

	state      *fsm.FSM
	store      Store
	errorCount int
	failed     atomic.Bool

	persistedRows   atomic.Int64
	droppedMessages atomic.Int64
	queryErrors     atomic.Int64
	startTime       time.Time
}

// NewPersister renders the statements of every registered flow for dialect.
// A flow that cannot be rendered fails construction.
func NewPersister(
	open Opener,
	dialect db.DBType,
	registry *flow.Registry,
	q *queue.Queue,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
	opts ...Option,
) (*Persister, error) {
	statements := make(map[string]db.Statement, registry.Len())
	for _, def := range registry.All() {
		stmt, err := db.BuildStatement(dialect, def)
		if err != nil {
			return nil, fmt.Errorf("failed to build statement: %w", err)
		}
		statements[def.Name] = stmt
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log = log.Named(PersisterName)
	return &Persister{
		control:    newControl(PersisterName),
		open:       open,
		registry:   registry,
		statements: statements,
		queue:      q,
		metrics:    m,
		log:        log,
		opts:       o,
		state:      newConnectionFSM(log),
		startTime:  time.Now(),
	}, nil
}

// Failed reports whether the persister gave up on the store
func (p *Persister) Failed() bool {
	return p.failed.Load()
}

// State returns the connection state
func (p *Persister) State() string {
	return p.state.Current()
}

// GetProgress returns the current progress
func (p *Persister) GetProgress() PersisterProgress {
	return PersisterProgress{
		PersistedRows:   p.persistedRows.Load(),
		DroppedMessages: p.droppedMessages.Load(),
		ErrorCount:      p.queryErrors.Load(),
		StartTime:       p.startTime,
	}
}

// Run consumes the queue until the worker is stopped. Messages still queued
// at that point are not written.
func (p *Persister) Run(parent context.Context) error {
	ctx, cancel := p.begin(parent)
	defer cancel()
	defer p.finish()

	p.log.Infow("Starting loop", "flows", len(p.statements))
	for {
		connected := p.state.Current() == StateConnected
		if !connected {
			if p.errorCount > 0 {
				sleep(ctx, p.opts.nextCooldown())
			}
			if p.errorCount > p.opts.errorCeiling && !p.failed.Load() {
				p.log.Errorw("Could not connect to store, giving up", "attempts", p.errorCount)
				p.failed.Store(true)
				p.RequestStop()
			}
		}

		if ctx.Err() != nil {
			p.disconnect(ctx)
			fire(ctx, p.state, eventStop, p.log)
			fire(ctx, p.state, eventStopped, p.log)
			p.log.Infow("Breaking loop", "pending", p.queue.Len())
			if p.failed.Load() {
				return fmt.Errorf("worker %s: %w", p.name, ErrGaveUp)
			}
			return nil
		}

		if !connected {
			p.connect(ctx)
			continue
		}

		if msg, ok := p.queue.TryGet(); ok {
			p.persist(ctx, msg)
		}

		sleep(ctx, p.opts.idle)
	}
}

func (p *Persister) connect(ctx context.Context) {
	store, err := p.open(ctx)
	if err != nil {
		p.errorCount++
		p.metrics.ConnectFailures.WithLabelValues(p.name).Inc()
		p.log.Errorw("Error connecting to store", "error", err, "attempt", p.errorCount)
		return
	}
	p.store = store
	p.errorCount = 0
	p.opts.cooldown.Reset()
	fire(ctx, p.state, eventConnect, p.log)
	p.log.Infow("Connected to store")

	for _, def := range p.registry.All() {
		if err := store.CheckColumns(ctx, def.Table, def.Columns); err != nil {
			p.log.Warnw("Table does not match flow", "flow", def.Name, "table", def.Table, "error", err)
		}
	}
}

func (p *Persister) disconnect(ctx context.Context) {
	if p.state.Current() != StateConnected {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.Errorw("Error disconnecting store", "error", err)
	} else {
		p.log.Infow("Disconnected store")
	}
	p.store = nil
	fire(ctx, p.state, eventDrop, p.log)
}

func (p *Persister) drop(msg flow.Message, reason string) {
	p.droppedMessages.Add(1)
	p.metrics.MessagesDropped.WithLabelValues(msg.Flow, reason).Inc()
}

func (p *Persister) persist(ctx context.Context, msg flow.Message) {
	def, ok := p.registry.Lookup(msg.Flow)
	if !ok {
		p.log.Errorw("Message for unknown flow, dropping", "flow", msg.Flow, "rows", len(msg.Rows))
		p.drop(msg, metrics.ReasonUnknownFlow)
		return
	}
	for i, row := range msg.Rows {
		if len(row) != len(def.Columns) {
			p.log.Errorw("Row does not match flow columns, dropping message",
				"flow", msg.Flow, "row", i, "values", len(row), "columns", len(def.Columns))
			p.drop(msg, metrics.ReasonRowWidth)
			return
		}
	}

	affected, err := p.store.ExecBatch(ctx, p.statements[msg.Flow], msg.Rows)
	if err != nil {
		p.queryErrors.Add(1)
		p.log.Errorw("Error executing query, dropping message", "flow", msg.Flow, "rows", len(msg.Rows), "error", err)
		p.drop(msg, metrics.ReasonQueryError)
		if db.IsConnectionLost(err) {
			p.disconnect(ctx)
		}
		return
	}

	p.persistedRows.Add(int64(len(msg.Rows)))
	p.metrics.RowsPersisted.WithLabelValues(msg.Flow).Add(float64(len(msg.Rows)))
	p.log.Debugw("Persisted rows", "flow", msg.Flow, "rows", len(msg.Rows), "affected", affected)
}
