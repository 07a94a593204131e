package transpile

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

var rzsx = gate.NewSet(gate.RZ, gate.SX, gate.CX)

func randomCircuit(rng *rand.Rand, qubits, ops int) *circuit.DAG {
	kinds := []gate.Kind{gate.H, gate.T, gate.Sdg, gate.X, gate.Y, gate.RY, gate.RZ, gate.U, gate.CX, gate.CZ, gate.SWAP, gate.CCX}
	g := circuit.New(qubits, 0)
	for i := 0; i < ops; i++ {
		k := kinds[rng.Intn(len(kinds))]
		spec := gate.SpecOf(k)
		params := make([]float64, spec.Params)
		for j := range params {
			params[j] = rng.Float64()*6 - 3
		}
		g.MustAppend(gate.New(k, params...), rng.Perm(qubits)[:spec.Qubits]...)
	}
	return g
}

func TestTranspilePreservesOperator(t *testing.T) {
	tests := []struct {
		name string
		opts func() Options
	}{
		{"defaults", func() Options { return DefaultOptions(rzsx) }},
		{"absorbing two-qubit blocks", func() Options {
			o := DefaultOptions(rzsx)
			o.Consolidate.MaxQubits = 2
			o.Consolidate.Absorb = true
			return o
		}},
		{"u basis", func() Options { return DefaultOptions(gate.NewSet(gate.U, gate.CX)) }},
		{"single worker", func() Options {
			o := DefaultOptions(rzsx)
			o.Workers = 1
			o.Verify = true
			return o
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(21))
			for i := 0; i < 5; i++ {
				opts := tt.opts()
				g := randomCircuit(rng, 3, 30)
				before, err := g.Operator()
				require.NoError(t, err)

				res, err := Transpile(context.Background(), g, opts)
				require.NoError(t, err)
				assert.NoError(t, g.Validate())
				for _, id := range g.Nodes() {
					assert.True(t, opts.Basis.Has(g.Node(id).Op.Kind), "%s outside basis", g.Node(id))
				}
				after, err := g.Operator()
				require.NoError(t, err)
				assert.True(t, linalg.Equal(before, after, 1e-8))
				assert.Same(t, g, res.Graph)
			}
		})
	}
}

func TestDefaultPassOrder(t *testing.T) {
	g := circuit.New(2, 0)
	g.MustAppend(gate.New(gate.H), 0)
	g.MustAppend(gate.New(gate.CX), 0, 1)

	res, err := Transpile(context.Background(), g, DefaultOptions(rzsx))
	require.NoError(t, err)
	var names []string
	for _, p := range res.Passes {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"commutation", "consolidate", "synthesize", "basis"}, names)

	passes := DefaultPasses(DefaultOptions(rzsx))
	require.Len(t, passes, 4)
	assert.Equal(t, "basis", passes[3].Name())
}

func TestTranspileIsStableOnBasisCircuits(t *testing.T) {
	g := circuit.New(2, 0)
	g.MustAppend(gate.New(gate.RZ, 0.4), 0)
	g.MustAppend(gate.New(gate.SX), 0)
	g.MustAppend(gate.New(gate.CX), 0, 1)
	rev := g.Revision()

	res, err := Transpile(context.Background(), g, DefaultOptions(rzsx))
	require.NoError(t, err)
	assert.Equal(t, rev, g.Revision())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "not_improved", string(res.Diagnostics[0].Reason))
}

func TestTranspileEmptyBasis(t *testing.T) {
	_, err := Transpile(context.Background(), circuit.New(1, 0), Options{})
	assert.Error(t, err)
}

func TestSharedCheckerKeepsMemo(t *testing.T) {
	opts := DefaultOptions(rzsx)
	opts.Checker = opts.NewChecker()
	build := func() *circuit.DAG {
		g := circuit.New(1, 0)
		g.MustAppend(gate.New(gate.H), 0)
		g.MustAppend(gate.New(gate.X), 0)
		return g
	}

	_, err := Transpile(context.Background(), build(), opts)
	require.NoError(t, err)
	first := opts.Checker.Memo().Stats()
	assert.Equal(t, int64(0), first.Hits)

	_, err = Transpile(context.Background(), build(), opts)
	require.NoError(t, err)
	assert.Greater(t, opts.Checker.Memo().Stats().Hits, first.Hits)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BlockQubits = 2
	cfg.Absorb = true
	cfg.Workers = 3
	cfg.Coupling = [][]int{{0, 1}}
	cfg.ErrorRates.Gates = map[string]float64{"cx": 0.05}

	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, opts.Basis.Has(gate.SX))
	assert.Equal(t, 2, opts.Consolidate.MaxQubits)
	assert.True(t, opts.Consolidate.Absorb)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, cfg.Tolerances.Candidate, opts.Synthesis.CandidateTolerance)
	assert.Equal(t, 0.05, opts.Synthesis.Fidelity.Rates[gate.CX])
	require.NotNil(t, opts.Synthesis.Coupling)
	assert.True(t, opts.Synthesis.Coupling.Allows(0, 1))
	assert.False(t, opts.Synthesis.Coupling.Allows(1, 0))

	cfg.Basis = []string{"nope"}
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}
