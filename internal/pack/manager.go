package pack

import (
	"context"
	"fmt"
	"path"
	"runtime"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/remolder/api"
	"github.com/agentic-research/remolder/internal/format"
	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/remold"
	"github.com/agentic-research/remolder/internal/resource"
)

// Manager routes resource locations to their format and remolder chain. It
// is immutable after construction and safe for concurrent use.
type Manager struct {
	registry *format.Registry
	logger   hclog.Logger
	workers  int
	rules    []rule
}

// rule is one manifest remolder compiled for every registered format.
type rule struct {
	targets []string
	entries map[string]molding.Entry
}

func (r rule) matches(location string) bool {
	for _, t := range r.targets {
		if ok, _ := path.Match(t, location); ok {
			return true
		}
	}
	return false
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithWorkers bounds how many locations Run remolds at once.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewManager compiles the manifest against every format in registry.
// config overrides the manifest's config values. Remolders whose condition
// fails are left out.
func NewManager(registry *format.Registry, manifest *api.Manifest, config map[string]any, opts ...Option) (*Manager, error) {
	m := &Manager{
		registry: registry,
		logger:   hclog.NewNullLogger(),
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(m)
	}

	values := make(map[string]any, len(manifest.Config)+len(config))
	for k, v := range manifest.Config {
		values[k] = v
	}
	for k, v := range config {
		values[k] = v
	}

	for _, r := range manifest.Remolders {
		enabled, err := Evaluate(r.When, values)
		if err != nil {
			return nil, fmt.Errorf("remolder %s: %w", r.Name, err)
		}
		if !enabled {
			m.logger.Debug("remolder disabled by condition", "remolder", r.Name)
			continue
		}
		packs, err := molding.PackPatterns(r.Packs...)
		if err != nil {
			return nil, fmt.Errorf("remolder %s: %w", r.Name, err)
		}

		def := molding.Definition{Name: r.Name, Kind: r.Kind, Params: r.Params}
		compiled := rule{
			targets: append([]string(nil), r.Targets...),
			entries: make(map[string]molding.Entry),
		}
		for _, d := range registry.Descriptors() {
			t, err := d.Mold(def)
			if err != nil {
				return nil, fmt.Errorf("format %s: %w", d.Name(), err)
			}
			compiled.entries[d.Name()] = molding.Entry{Transformation: t, Packs: packs}
		}
		m.rules = append(m.rules, compiled)
	}
	m.logger.Debug("manifest compiled", "remolders", len(m.rules), "formats", registry.Names())
	return m, nil
}

// Route finds the format for location and the entries targeting it, in
// manifest order. ok is false when no format handles the location.
func (m *Manager) Route(location string) (d format.Descriptor, entries []molding.Entry, ok bool) {
	d, ok = m.registry.ForPath(location)
	if !ok {
		return nil, nil, false
	}
	for _, r := range m.rules {
		if r.matches(location) {
			entries = append(entries, r.entries[d.Name()])
		}
	}
	return d, entries, true
}

// Remold runs the routed chain on res. Locations without a format or
// without remolders are returned untouched and are not an error. On failure
// the error is logged and returned with the original resource.
func (m *Manager) Remold(location string, res resource.Resource) (resource.Resource, error) {
	d, entries, ok := m.Route(location)
	if !ok || len(entries) == 0 {
		return res, nil
	}
	logger := m.logger.With("remold_id", uuid.NewString(), "format", d.Name())
	logger.Debug("remolding", "location", location, "pack", res.Pack(), "entries", len(entries))

	out, err := d.TryRemold(location, res, entries)
	if err != nil {
		remold.Report(logger, location, err)
		return res, err
	}
	return out, nil
}

// Outcome is the result of remolding one location of a source.
type Outcome struct {
	Location string
	Original resource.Resource
	// Remolded is Original when nothing applied or the remold failed.
	Remolded resource.Resource
	// Routed reports whether any remolder targets the location.
	Routed bool
	Err    error
}

// Run remolds every location of src and passes the outcomes to fn in
// location order. Remold failures are reported in Outcome.Err; errors from
// src, fn or ctx stop the run.
func (m *Manager) Run(ctx context.Context, src Source, fn func(Outcome) error) error {
	locations, err := src.Locations()
	if err != nil {
		return fmt.Errorf("list %s: %w", src.ID(), err)
	}

	outcomes := make([]Outcome, len(locations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, loc := range locations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := src.Resource(loc)
			if err != nil {
				return err
			}
			_, entries, _ := m.Route(loc)
			out, rerr := m.Remold(loc, res)
			outcomes[i] = Outcome{
				Location: loc,
				Original: res,
				Remolded: out,
				Routed:   len(entries) > 0,
				Err:      rerr,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, o := range outcomes {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}
