package worker

import (
	"context"

	"github.com/andys/netcollector/flow"
)

// Worker is the control surface the supervisor drives. Run blocks until the
// worker exits; RequestStop asks it to exit at its next loop pass.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	RequestStop()
	Alive() bool
}

// Extractor produces the rows of one flow from a connected client of type C.
// Width is the number of values in every row it returns.
type Extractor[C any] struct {
	Width   int
	Extract func(ctx context.Context, client C, def flow.Definition) ([]flow.Row, error)
}

// Catalog describes extractors to the flow registry so that definitions can
// be validated against exactly the routines a poller will run.
func Catalog[C any](source string, extractors map[string]Extractor[C]) flow.Catalog {
	out := make(flow.Catalog, len(extractors))
	for name, ex := range extractors {
		out[name] = flow.Routine{Source: source, Width: ex.Width}
	}
	return out
}
