package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/l3aro/go-qtranspile/internal/log"
	"github.com/l3aro/go-qtranspile/internal/telemetry"
	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
)

// ErrMissingProvider is returned when a pass requires an analysis nobody
// registered a provider for.
var ErrMissingProvider = errors.New("no provider for required analysis")

// PassFailure is the error of an aborted run. It names the pass that failed
// and unwraps to the cause.
type PassFailure struct {
	Pass string
	Err  error
}

func (e *PassFailure) Error() string {
	return fmt.Sprintf("pass %s failed: %v", e.Pass, e.Err)
}

func (e *PassFailure) Unwrap() error { return e.Err }

// PassStat describes one executed pass.
type PassStat struct {
	Name          string        `json:"name" msgpack:"name"`
	Duration      time.Duration `json:"duration" msgpack:"duration"`
	RevisionDelta uint64        `json:"revision_delta" msgpack:"revision_delta"`
	Nodes         int           `json:"nodes" msgpack:"nodes"`
	// Provided is set when the pass ran to satisfy another pass's
	// requirement rather than from the caller's list.
	Provided bool `json:"provided,omitempty" msgpack:"provided,omitempty"`
}

// Result is the outcome of a run. Graph is the caller's graph, mutated in
// place.
type Result struct {
	RunID       string
	Graph       *circuit.DAG
	Diagnostics []Diagnostic
	Passes      []PassStat
	Cache       cache.PropertyStats
}

// Manager executes passes in order on the calling goroutine.
type Manager struct {
	providers map[cache.Kind]Provider
	logger    log.Logger
	verify    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger handed to passes.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithVerify enables a structural validation of the graph after every
// pass.
func WithVerify(enabled bool) Option {
	return func(m *Manager) { m.verify = enabled }
}

// WithProvider registers an analysis provider.
func WithProvider(p Provider) Option {
	return func(m *Manager) { m.Register(p) }
}

// NewManager creates a pass manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		providers: make(map[cache.Kind]Provider),
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes p the provider of its analysis.
func (m *Manager) Register(p Provider) {
	m.providers[p.Provides()] = p
}

// Run executes passes over g in the given order. Providers in the list are
// also registered, so later passes requiring their analysis can have it
// recomputed after a mutation. The first failing pass aborts the run with a
// *PassFailure; mutations of earlier passes are kept.
func (m *Manager) Run(ctx context.Context, g *circuit.DAG, passes ...Pass) (*Result, error) {
	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("pipeline.run_id", runID),
			attribute.Int("pipeline.passes", len(passes)),
			attribute.Int("circuit.nodes", g.Len()),
			attribute.Int("circuit.qubits", g.NumQubits()),
		),
	)
	defer span.End()

	providers := make(map[cache.Kind]Provider, len(m.providers))
	for k, p := range m.providers {
		providers[k] = p
	}
	for _, p := range passes {
		if pr, ok := p.(Provider); ok {
			providers[pr.Provides()] = pr
		}
	}

	rc := NewRunContext(g, m.logger)
	rc.RunID = runID
	res := &Result{RunID: runID, Graph: g}

	m.logger.Info("pipeline started", "run_id", runID, "passes", len(passes), "nodes", g.Len())
	start := time.Now()

	finish := func(err error) (*Result, error) {
		res.Diagnostics = rc.Diagnostics()
		res.Cache = rc.Properties.Stats()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.logger.Error("pipeline failed", "run_id", runID, "error", err)
			return res, err
		}
		span.SetStatus(codes.Ok, "")
		m.logger.Info("pipeline completed", "run_id", runID,
			"duration", time.Since(start), "nodes", g.Len(), "diagnostics", len(res.Diagnostics))
		return res, nil
	}

	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return finish(&PassFailure{Pass: p.Name(), Err: err})
		}
		if err := m.ensure(ctx, g, rc, providers, p, res, 0); err != nil {
			return finish(err)
		}
		stat, err := m.execute(ctx, g, rc, p)
		res.Passes = append(res.Passes, stat)
		if err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

// maxProviderDepth bounds provider requirement chains so a provider that
// requires itself fails instead of recursing forever.
const maxProviderDepth = 8

// ensure recomputes every analysis p requires that is not current.
func (m *Manager) ensure(ctx context.Context, g *circuit.DAG, rc *RunContext,
	providers map[cache.Kind]Provider, p Pass, res *Result, depth int) error {
	for _, kind := range p.Requires() {
		if rc.Properties.Has(kind) {
			continue
		}
		prov, ok := providers[kind]
		if !ok {
			return &PassFailure{Pass: p.Name(), Err: fmt.Errorf("%w: %s", ErrMissingProvider, kind)}
		}
		if depth >= maxProviderDepth {
			return &PassFailure{Pass: prov.Name(), Err: fmt.Errorf("provider chain for %s too deep", kind)}
		}
		if err := m.ensure(ctx, g, rc, providers, prov, res, depth+1); err != nil {
			return err
		}
		m.logger.Debug("recomputing analysis", "analysis", kind, "provider", prov.Name(), "for", p.Name())
		stat, err := m.execute(ctx, g, rc, prov)
		stat.Provided = true
		res.Passes = append(res.Passes, stat)
		if err != nil {
			return err
		}
		if !rc.Properties.Has(kind) {
			return &PassFailure{Pass: prov.Name(), Err: fmt.Errorf("provider did not store %s", kind)}
		}
	}
	return nil
}

// execute runs one pass with its span, metrics, invalidation and optional
// verification.
func (m *Manager) execute(ctx context.Context, g *circuit.DAG, rc *RunContext, p Pass) (PassStat, error) {
	name := p.Name()
	ctx, span := telemetry.Tracer().Start(ctx, "pass."+name,
		trace.WithAttributes(attribute.String("pass.name", name)),
	)
	defer span.End()

	rc.pass = name
	before := g.Revision()
	start := time.Now()

	m.logger.Debug("pass starting", "pass", name, "revision", before)
	err := p.Run(ctx, g, rc)
	duration := time.Since(start)
	telemetry.ObservePass(name, duration, err)

	stat := PassStat{
		Name:          name,
		Duration:      duration,
		RevisionDelta: g.Revision() - before,
		Nodes:         g.Len(),
	}
	span.SetAttributes(
		attribute.Int64("pass.revision_delta", int64(stat.RevisionDelta)),
		attribute.Int("pass.nodes", stat.Nodes),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var pf *PassFailure
		if errors.As(err, &pf) {
			return stat, err
		}
		return stat, &PassFailure{Pass: name, Err: err}
	}

	if stat.RevisionDelta > 0 {
		rc.Properties.Invalidate(p.Invalidates()...)
	}
	if m.verify {
		if verr := g.Validate(); verr != nil {
			span.RecordError(verr)
			span.SetStatus(codes.Error, verr.Error())
			return stat, &PassFailure{Pass: name, Err: verr}
		}
	}
	m.logger.Debug("pass finished", "pass", name, "duration", duration, "revision_delta", stat.RevisionDelta)
	return stat, nil
}
