package flow

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrConfig marks a flow definition that was rejected while loading
var ErrConfig = errors.New("invalid flow definition")

// Routine is what the registry knows about an extraction routine: the worker
// that runs it and how many values each of its rows carries.
type Routine struct {
	Source string
	Width  int
}

// Catalog maps flow names to the routines able to produce them
type Catalog map[string]Routine

// Merge returns a catalog holding the entries of both catalogs
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

type flowConfig struct {
	Name         string   `yaml:"name"`
	Table        string   `yaml:"table"`
	Columns      []string `yaml:"columns"`
	KeyColumns   []string `yaml:"key_columns"`
	WriteMode    string   `yaml:"write_mode"`
	PollInterval float64  `yaml:"poll_interval"`
}

// Registry holds the flow definitions accepted at startup
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry builds a registry from already validated definitions
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r
}

// Load decodes and validates each flow node on its own. A node that fails is
// logged and skipped so that the remaining flows still load.
func Load(nodes []yaml.Node, catalog Catalog, log *zap.SugaredLogger) *Registry {
	r := NewRegistry()
	for i := range nodes {
		def, err := decode(&nodes[i], catalog)
		if err == nil {
			if _, dup := r.index[def.Name]; dup {
				err = fmt.Errorf("%w: duplicate flow name %q", ErrConfig, def.Name)
			}
		}
		if err != nil {
			log.Errorw("Could not set up flow, skipping", "index", i, "line", nodes[i].Line, "error", err)
			continue
		}
		r.index[def.Name] = len(r.defs)
		r.defs = append(r.defs, def)
		log.Debugw("Loaded flow", "flow", def.Name, "table", def.Table, "source", def.Source)
	}
	return r
}

// maxPollInterval bounds intervals, in seconds, to what a time.Duration holds
const maxPollInterval = float64(math.MaxInt64) / float64(time.Second)

func decode(node *yaml.Node, catalog Catalog) (Definition, error) {
	var fc flowConfig
	if err := node.Decode(&fc); err != nil {
		return Definition{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	fc.Name = strings.TrimSpace(fc.Name)
	fc.Table = strings.TrimSpace(fc.Table)

	if fc.Name == "" {
		return Definition{}, fmt.Errorf("%w: missing name", ErrConfig)
	}
	if fc.Table == "" {
		return Definition{}, fmt.Errorf("%w: flow %q: missing table", ErrConfig, fc.Name)
	}
	if len(fc.Columns) == 0 {
		return Definition{}, fmt.Errorf("%w: flow %q: no columns", ErrConfig, fc.Name)
	}
	for _, col := range fc.Columns {
		if strings.TrimSpace(col) == "" {
			return Definition{}, fmt.Errorf("%w: flow %q: empty column name", ErrConfig, fc.Name)
		}
	}
	if fc.PollInterval <= 0 {
		return Definition{}, fmt.Errorf("%w: flow %q: poll_interval must be positive", ErrConfig, fc.Name)
	}
	if math.IsNaN(fc.PollInterval) || math.IsInf(fc.PollInterval, 0) || fc.PollInterval >= maxPollInterval {
		return Definition{}, fmt.Errorf("%w: flow %q: poll_interval %v is out of range", ErrConfig, fc.Name, fc.PollInterval)
	}
	mode, err := parseWriteMode(fc.WriteMode)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: flow %q: %w", ErrConfig, fc.Name, err)
	}
	for _, key := range fc.KeyColumns {
		if !contains(fc.Columns, key) {
			return Definition{}, fmt.Errorf("%w: flow %q: key column %q is not a column", ErrConfig, fc.Name, key)
		}
	}

	routine, ok := catalog[fc.Name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: flow %q: no extraction routine with that name", ErrConfig, fc.Name)
	}
	if routine.Width != len(fc.Columns) {
		return Definition{}, fmt.Errorf("%w: flow %q: routine yields %d values but %d columns are configured",
			ErrConfig, fc.Name, routine.Width, len(fc.Columns))
	}

	return Definition{
		Name:         fc.Name,
		Source:       routine.Source,
		Table:        fc.Table,
		Columns:      fc.Columns,
		KeyColumns:   fc.KeyColumns,
		WriteMode:    mode,
		PollInterval: time.Duration(fc.PollInterval * float64(time.Second)),
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Lookup resolves a flow by name
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// All returns every loaded definition in configuration order
func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// ForSource returns the definitions run by the given polling worker
func (r *Registry) ForSource(source string) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if d.Source == source {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of loaded definitions
func (r *Registry) Len() int {
	return len(r.defs)
}
