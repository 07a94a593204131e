package commutation

import (
	"context"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

// Pass computes the commutation runs of the graph and stores them under
// Kind.
type Pass struct {
	Checker *Checker
	Workers int
}

// NewPass returns an analysis pass using c.
func NewPass(c *Checker, workers int) *Pass {
	return &Pass{Checker: c, Workers: workers}
}

func (p *Pass) Name() string              { return "commutation" }
func (p *Pass) Requires() []cache.Kind    { return nil }
func (p *Pass) Invalidates() []cache.Kind { return nil }
func (p *Pass) Provides() cache.Kind      { return Kind }

func (p *Pass) Run(ctx context.Context, g *circuit.DAG, rc *pipeline.RunContext) error {
	if p.Checker == nil {
		p.Checker = NewChecker(Options{})
	}
	res, err := Analyze(ctx, g, p.Checker, p.Workers)
	if err != nil {
		return err
	}
	rc.Properties.Put(Kind, res)

	stats := p.Checker.Memo().Stats()
	rc.Logger.Debug("commutation analyzed", "wires", len(res.Wires()),
		"memo_entries", stats.Length, "memo_hit_rate", stats.HitRate())
	return nil
}

var _ pipeline.Provider = (*Pass)(nil)
