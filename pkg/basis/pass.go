package basis

import (
	"context"
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/consolidate"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

// DefaultTolerance bounds the phase fit between an expansion and the gate
// it replaces.
const DefaultTolerance = 1e-8

// Pass translates every gate outside Basis through Library. Directives are
// always allowed. A graph already in the basis is left untouched.
type Pass struct {
	Library   *EquivalenceLibrary
	Basis     gate.Set
	Tolerance float64
}

// NewPass returns a translation pass. A nil library means
// StandardLibrary().
func NewPass(lib *EquivalenceLibrary, basis gate.Set) *Pass {
	return &Pass{Library: lib, Basis: basis}
}

func (p *Pass) Name() string           { return "basis" }
func (p *Pass) Requires() []cache.Kind { return nil }
func (p *Pass) Invalidates() []cache.Kind {
	return []cache.Kind{commutation.Kind, consolidate.Kind}
}

func (p *Pass) Run(ctx context.Context, g *circuit.DAG, rc *pipeline.RunContext) error {
	var todo []circuit.NodeID
	for _, id := range g.Nodes() {
		if !p.Basis.Allows(g.Node(id).Op.Kind) {
			todo = append(todo, id)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	lib := p.Library
	if lib == nil {
		lib = StandardLibrary()
	}
	tol := p.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	plan := lib.Search(p.Basis)
	for _, id := range todo {
		k := g.Node(id).Op.Kind
		if _, ok := plan.Cost(k); !ok {
			return fmt.Errorf("%w: %s to %s", ErrNoTranslationPath, k, p.Basis)
		}
	}

	tr := translator{plan: plan, tol: tol, memo: make(map[string]*circuit.DAG)}
	for _, id := range todo {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := g.Node(id)
		rep, err := tr.replacement(n.Op)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		if _, err := g.SubstituteNodeWithSubgraph(id, rep); err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
	}
	rc.Logger.Debug("basis translated", "nodes", len(todo), "distinct", len(tr.memo), "basis", p.Basis.String())
	return nil
}

type translator struct {
	plan *Plan
	tol  float64
	memo map[string]*circuit.DAG
}

// replacement builds the expansion of op as a graph over op's operands,
// carrying the phase difference to op's matrix.
func (t *translator) replacement(op gate.Op) (*circuit.DAG, error) {
	key, cacheable := op.Key()
	if cacheable {
		if rep, ok := t.memo[key]; ok {
			return rep, nil
		}
	}

	steps, err := t.plan.Expand(op)
	if err != nil {
		return nil, err
	}
	k := op.NumQubits()
	want, err := op.Operator()
	if err != nil {
		return nil, err
	}
	got := linalg.Identity(1 << k)
	rep := circuit.New(k, 0)
	for _, s := range steps {
		m, err := s.Op.Operator()
		if err != nil {
			return nil, err
		}
		got = linalg.ApplyLeft(got, m, s.Qubits, k)
		if _, err := rep.Append(s.Op, s.Qubits...); err != nil {
			return nil, err
		}
	}
	phase, ok := linalg.PhaseDifference(got, want, t.tol)
	if !ok {
		return nil, fmt.Errorf("%w: expansion of %s drifts by %.3g",
			linalg.ErrNumericalInstability, op, linalg.MaxDiff(got, want))
	}
	rep.SetGlobalPhase(phase)
	if cacheable {
		t.memo[key] = rep
	}
	return rep, nil
}

var _ pipeline.Pass = (*Pass)(nil)
