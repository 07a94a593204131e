package synthesis

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-qtranspile/internal/telemetry"
	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/consolidate"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

const (
	DefaultTolerance          = 1e-10
	DefaultCandidateTolerance = 1e-9
)

// Options configures the dispatcher.
type Options struct {
	Basis gate.Set
	// Coupling restricts two-qubit gate directions on global qubits. Nil
	// allows every direction.
	Coupling *Connectivity
	// Tolerance is the approximation tolerance handed to the library.
	Tolerance float64
	// CandidateTolerance bounds the distance between a candidate's
	// operator and the block operator.
	CandidateTolerance float64
	Fidelity           FidelityModel
	// Workers bounds concurrent library calls; <= 0 means GOMAXPROCS.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.CandidateTolerance <= 0 {
		o.CandidateTolerance = DefaultCandidateTolerance
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Pass resynthesizes the blocks found by consolidation.
type Pass struct {
	Library Library
	Options Options
}

// NewPass returns a dispatcher pass over lib.
func NewPass(lib Library, opts Options) *Pass {
	return &Pass{Library: lib, Options: opts}
}

func (p *Pass) Name() string           { return "synthesize" }
func (p *Pass) Requires() []cache.Kind { return []cache.Kind{consolidate.Kind} }
func (p *Pass) Invalidates() []cache.Kind {
	return []cache.Kind{consolidate.Kind, commutation.Kind}
}

// outcome is what a worker produced for one block. A nil winner means the
// block stays as it is, for the given reason.
type outcome struct {
	winner *Candidate
	reason pipeline.Reason
	detail string
}

func (p *Pass) Run(ctx context.Context, g *circuit.DAG, rc *pipeline.RunContext) error {
	if p.Library == nil {
		return errors.New("synthesize: no library configured")
	}
	blocks, ok := cache.Lookup[*consolidate.Result](rc.Properties, consolidate.Kind)
	if !ok {
		return fmt.Errorf("synthesize: %s analysis is not current", consolidate.Kind)
	}
	opts := p.Options.withDefaults()

	outcomes := make([]outcome, len(blocks.Blocks))
	var eg errgroup.Group
	eg.SetLimit(opts.Workers)
	for i, b := range blocks.Blocks {
		if ctx.Err() != nil {
			outcomes[i] = outcome{reason: pipeline.ReasonCancelled, detail: "not dispatched"}
			continue
		}
		eg.Go(func() error {
			outcomes[i] = p.resolve(ctx, g, b, opts)
			return nil
		})
	}
	eg.Wait()

	applied := 0
	for i, b := range blocks.Blocks {
		out := outcomes[i]
		telemetry.RecordSynthesisOutcome(ctx, outcomeLabel(out))
		if out.winner == nil {
			rc.Report(pipeline.Diagnostic{Reason: out.reason, Nodes: b.Nodes, Qubits: b.Qubits, Detail: out.detail})
			continue
		}
		if err := apply(g, b, out.winner); err != nil {
			if errors.Is(err, circuit.ErrShapeMismatch) {
				return err
			}
			rc.Report(pipeline.Diagnostic{
				Reason: pipeline.ReasonSynthesisError,
				Nodes:  b.Nodes,
				Qubits: b.Qubits,
				Detail: err.Error(),
			})
			continue
		}
		applied++
	}
	rc.Logger.Debug("synthesis applied", "blocks", len(blocks.Blocks), "applied", applied)
	return nil
}

func outcomeLabel(o outcome) string {
	if o.winner != nil {
		return "applied"
	}
	return string(o.reason)
}

// resolve runs on a worker. It never touches the graph except to read the
// block's gates.
func (p *Pass) resolve(ctx context.Context, g *circuit.DAG, b *consolidate.Block, opts Options) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{reason: pipeline.ReasonSynthesisError, detail: fmt.Sprintf("library panic: %v", r)}
		}
	}()
	if ctx.Err() != nil {
		return outcome{reason: pipeline.ReasonCancelled, detail: "not dispatched"}
	}

	k := len(b.Qubits)
	req := Request{
		Unitary:   b.Unitary,
		NumQubits: k,
		Basis:     opts.Basis,
		Tolerance: opts.Tolerance,
		Fidelity:  opts.Fidelity,
	}
	if k == 2 {
		req.Connectivity = opts.Coupling.Localize(b.Qubits)
	}

	start := time.Now()
	cands, err := p.Library.Synthesize(ctx, req)
	telemetry.RecordSynthesisRequest(ctx, p.Library.Name(), k, time.Since(start))
	switch {
	case errors.Is(err, ErrInfeasible):
		return outcome{reason: pipeline.ReasonInfeasible, detail: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcome{reason: pipeline.ReasonCancelled, detail: err.Error()}
	case err != nil:
		return outcome{reason: pipeline.ReasonSynthesisError, detail: err.Error()}
	case len(cands) == 0:
		return outcome{reason: pipeline.ReasonInfeasible, detail: "no candidates"}
	}

	Rank(cands)
	var winner *Candidate
	var rejected []string
	for i := range cands {
		c := cands[i]
		if err := validate(&c, req, opts.CandidateTolerance); err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		winner = &c
		break
	}
	if winner == nil {
		return outcome{reason: pipeline.ReasonCandidateRejected, detail: fmt.Sprintf("%d rejected: %s", len(rejected), rejected[0])}
	}

	if b.InBasis(opts.Basis) {
		orig := Key{TwoQubit: b.TwoQubitCount(), Gates: b.GateCount(), Fidelity: opts.Fidelity.Cost(blockInstructions(g, b))}
		if !winner.Key().Less(orig) {
			return outcome{reason: pipeline.ReasonNotImproved, detail: fmt.Sprintf("%d gates already in basis", b.GateCount())}
		}
	}
	return outcome{winner: winner}
}

func blockInstructions(g *circuit.DAG, b *consolidate.Block) []Instruction {
	out := make([]Instruction, len(b.Nodes))
	for i, id := range b.Nodes {
		n := g.Node(id)
		out[i] = Instruction{Op: n.Op, Qubits: n.Qubits}
	}
	return out
}

// validate checks basis, connectivity and operator equivalence. A phase
// difference to the target is folded into the candidate's global phase.
func validate(c *Candidate, req Request, tol float64) error {
	for i, in := range c.Ops {
		if in.Op.IsDirective() || !req.Basis.Has(in.Op.Kind) {
			return fmt.Errorf("instruction %d: %s is not in basis %s", i, in.Op.Name(), req.Basis)
		}
		if len(in.Qubits) == 2 && !req.Connectivity.Allows(in.Qubits[0], in.Qubits[1]) {
			return fmt.Errorf("instruction %d: %s on %v violates connectivity", i, in.Op.Name(), in.Qubits)
		}
	}
	m, err := c.Operator(req.NumQubits)
	if err != nil {
		return err
	}
	phase, ok := linalg.PhaseDifference(m, req.Unitary, tol)
	if !ok {
		return fmt.Errorf("operator differs by %.3g", linalg.MaxDiff(m.Scale(cmplx.Exp(complex(0, phase))), req.Unitary))
	}
	c.GlobalPhase += phase
	return nil
}

// apply replaces the block's gates with the winner: hoists first, then the
// collapse into one node, then the substitution.
func apply(g *circuit.DAG, b *consolidate.Block, winner *Candidate) error {
	rep, err := winner.Circuit(len(b.Qubits))
	if err != nil {
		return err
	}
	for _, h := range b.Hoists {
		for j := len(h.Over) - 1; j >= 0; j-- {
			if err := g.SwapAdjacent(h.Over[j], h.Node); err != nil {
				return fmt.Errorf("hoist %d over %d: %w", h.Node, h.Over[j], err)
			}
		}
	}
	id, err := g.CollapseNodes(b.Nodes, gate.NewUnitary(b.Unitary), b.Qubits)
	if err != nil {
		return err
	}
	g.AddGlobalPhase(b.Phase)
	_, err = g.SubstituteNodeWithSubgraph(id, rep)
	return err
}
