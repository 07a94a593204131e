// Package transpile wires the standard pass sequence: commutation analysis,
// block consolidation, resynthesis, then basis translation.
package transpile

import (
	"context"
	"fmt"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/internal/log"
	"github.com/l3aro/go-qtranspile/pkg/basis"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/consolidate"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
	"github.com/l3aro/go-qtranspile/pkg/synthesis"
)

// Options configures the preset pipeline.
type Options struct {
	Basis       gate.Set
	Commutation commutation.Options
	Consolidate consolidate.Options
	Synthesis   synthesis.Options
	Workers     int
	Verify      bool

	// Checker, when set, is shared across runs so its memo carries over.
	Checker *commutation.Checker
	// Library defaults to synthesis.EulerLibrary.
	Library synthesis.Library
	// Equivalences defaults to basis.StandardLibrary().
	Equivalences *basis.EquivalenceLibrary
	Logger       log.Logger
}

// DefaultOptions targets basis with every other setting at its default.
func DefaultOptions(b gate.Set) Options {
	return Options{
		Basis:       b,
		Consolidate: consolidate.Options{MaxQubits: 1},
	}
}

// FromConfig builds options from a validated config.
func FromConfig(cfg *config.Config) (Options, error) {
	b, err := cfg.BasisSet()
	if err != nil {
		return Options{}, fmt.Errorf("basis: %w", err)
	}
	opts := Options{
		Basis: b,
		Commutation: commutation.Options{
			Tolerance: cfg.Tolerances.Commutation,
			MaxQubits: cfg.CommutationMaxQubits,
			MemoSize:  cfg.MemoSize,
		},
		Consolidate: consolidate.Options{
			MaxQubits: cfg.BlockQubits,
			Absorb:    cfg.Absorb,
			Tolerance: cfg.Tolerances.Unitarity,
		},
		Synthesis: synthesis.Options{
			Tolerance:          cfg.Tolerances.Approximation,
			CandidateTolerance: cfg.Tolerances.Candidate,
			Fidelity: synthesis.FidelityModel{
				Rates:    cfg.Rates(),
				OneQubit: cfg.ErrorRates.OneQubit,
				TwoQubit: cfg.ErrorRates.TwoQubit,
			},
		},
		Workers: cfg.Workers,
		Verify:  cfg.Verify,
	}
	if len(cfg.Coupling) > 0 {
		opts.Synthesis.Coupling = synthesis.NewConnectivity(cfg.Edges())
	}
	return opts, nil
}

// NewChecker returns a commutation checker for opts, reusing opts.Checker
// when set.
func (o Options) NewChecker() *commutation.Checker {
	if o.Checker != nil {
		return o.Checker
	}
	return commutation.NewChecker(o.Commutation)
}

// DefaultPasses returns [commutation, consolidate, synthesize, basis].
func DefaultPasses(opts Options) []pipeline.Pass {
	copts := opts.Consolidate
	copts.Basis = opts.Basis
	if copts.Workers == 0 {
		copts.Workers = opts.Workers
	}

	sopts := opts.Synthesis
	sopts.Basis = opts.Basis
	if sopts.Workers == 0 {
		sopts.Workers = opts.Workers
	}
	lib := opts.Library
	if lib == nil {
		lib = synthesis.EulerLibrary{}
	}

	return []pipeline.Pass{
		commutation.NewPass(opts.NewChecker(), opts.Workers),
		consolidate.NewPass(copts),
		synthesis.NewPass(lib, sopts),
		basis.NewPass(opts.Equivalences, opts.Basis),
	}
}

// Transpile runs DefaultPasses over g, mutating it in place.
func Transpile(ctx context.Context, g *circuit.DAG, opts Options) (*pipeline.Result, error) {
	if len(opts.Basis) == 0 {
		return nil, fmt.Errorf("transpile: empty target basis")
	}
	mopts := []pipeline.Option{pipeline.WithVerify(opts.Verify)}
	if opts.Logger != nil {
		mopts = append(mopts, pipeline.WithLogger(opts.Logger))
	}
	return pipeline.NewManager(mopts...).Run(ctx, g, DefaultPasses(opts)...)
}
