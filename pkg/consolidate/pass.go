package consolidate

import (
	"context"
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

// Kind is the property-cache key of a *Result.
const Kind cache.Kind = "blocks"

// Pass finds blocks and stores them under Kind. Blocks whose operator is
// not unitary are reported as numerical_instability and left out.
type Pass struct {
	Options Options
}

// NewPass returns a consolidation pass.
func NewPass(opts Options) *Pass { return &Pass{Options: opts} }

func (p *Pass) Name() string { return "consolidate" }

func (p *Pass) Requires() []cache.Kind {
	if p.Options.Absorb {
		return []cache.Kind{commutation.Kind}
	}
	return nil
}

func (p *Pass) Invalidates() []cache.Kind { return nil }
func (p *Pass) Provides() cache.Kind      { return Kind }

func (p *Pass) Run(ctx context.Context, g *circuit.DAG, rc *pipeline.RunContext) error {
	var comm *commutation.Result
	if p.Options.Absorb {
		var ok bool
		comm, ok = cache.Lookup[*commutation.Result](rc.Properties, commutation.Kind)
		if !ok {
			return fmt.Errorf("consolidate: %s analysis is not current", commutation.Kind)
		}
	}
	res, err := Find(ctx, g, comm, p.Options)
	if err != nil {
		return err
	}
	for _, u := range res.Unstable {
		rc.Report(pipeline.Diagnostic{
			Reason: pipeline.ReasonNumericalInstability,
			Nodes:  u.Nodes,
			Qubits: u.Qubits,
			Detail: fmt.Sprintf("unitarity deviation %.3g", u.Deviation),
		})
	}
	rc.Properties.Put(Kind, res)
	rc.Logger.Debug("blocks found", "blocks", len(res.Blocks), "unstable", len(res.Unstable))
	return nil
}

var _ pipeline.Provider = (*Pass)(nil)
