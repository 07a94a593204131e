package synthesis

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

func randomUnitary(rng *rand.Rand) linalg.Matrix {
	angle := func() float64 { return rng.Float64()*2*math.Pi - math.Pi }
	u := gate.New(gate.U, angle(), angle(), angle()).MustOperator()
	return u.Scale(cmplx.Exp(complex(0, angle())))
}

func TestEulerFamilies(t *testing.T) {
	tests := []struct {
		name  string
		basis gate.Set
		kinds []gate.Kind
	}{
		{"zyz", gate.NewSet(gate.RZ, gate.RY), []gate.Kind{gate.RZ, gate.RY}},
		{"zsx", gate.NewSet(gate.RZ, gate.SX, gate.CX), []gate.Kind{gate.RZ, gate.SX}},
		{"u", gate.NewSet(gate.U), []gate.Kind{gate.U}},
	}
	rng := rand.New(rand.NewSource(11))
	lib := EulerLibrary{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := gate.NewSet(tt.kinds...)
			for i := 0; i < 25; i++ {
				target := randomUnitary(rng)
				cands, err := lib.Synthesize(context.Background(), Request{Unitary: target, NumQubits: 1, Basis: tt.basis})
				require.NoError(t, err)
				require.Len(t, cands, 1)

				c := cands[0]
				for _, in := range c.Ops {
					assert.True(t, allowed.Has(in.Op.Kind), "%s not expected", in.Op)
				}
				got, err := c.Operator(1)
				require.NoError(t, err)
				assert.True(t, linalg.Equal(target, got, 1e-9), "target %v got %v", target, got)
			}
		})
	}
}

func TestEulerProposesEveryFamily(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	basis := gate.NewSet(gate.RZ, gate.RY, gate.SX, gate.U)
	cands, err := EulerLibrary{}.Synthesize(context.Background(), Request{Unitary: randomUnitary(rng), NumQubits: 1, Basis: basis})
	require.NoError(t, err)
	require.Len(t, cands, 3)

	Rank(cands)
	assert.Equal(t, 1, cands[0].GateCount)
	assert.Equal(t, gate.U, cands[0].Ops[0].Op.Kind)
}

func TestEulerIdentityIsEmpty(t *testing.T) {
	target := linalg.Identity(2).Scale(cmplx.Exp(complex(0, 0.7)))
	cands, err := EulerLibrary{}.Synthesize(context.Background(), Request{
		Unitary: target, NumQubits: 1, Basis: gate.NewSet(gate.RZ, gate.SX),
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Empty(t, cands[0].Ops)
	assert.InDelta(t, 0.7, cands[0].GlobalPhase, 1e-12)
}

func TestEulerIdentityCandidateRecomposes(t *testing.T) {
	for _, target := range []linalg.Matrix{
		linalg.Identity(2).Scale(-1),
		linalg.Identity(2).Scale(complex(0, 1)),
		linalg.Identity(2),
	} {
		cands, err := EulerLibrary{}.Synthesize(context.Background(), Request{
			Unitary: target, NumQubits: 1, Basis: gate.NewSet(gate.RZ, gate.RY),
		})
		require.NoError(t, err)
		require.Len(t, cands, 1)
		got, err := cands[0].Operator(1)
		require.NoError(t, err)
		assert.True(t, linalg.Equal(target, got, 1e-12), "%v recomposed to %v", target, got)
	}
}

func TestEulerDropsZeroRotations(t *testing.T) {
	target := gate.New(gate.RZ, 0.9).MustOperator()
	cands, err := EulerLibrary{}.Synthesize(context.Background(), Request{
		Unitary: target, NumQubits: 1, Basis: gate.NewSet(gate.RZ, gate.SX),
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Len(t, cands[0].Ops, 1)
	assert.Equal(t, gate.RZ, cands[0].Ops[0].Op.Kind)
	assert.InDelta(t, 0.9, cands[0].Ops[0].Op.Params[0], 1e-12)
}

func TestEulerInfeasible(t *testing.T) {
	lib := EulerLibrary{}
	_, err := lib.Synthesize(context.Background(), Request{
		Unitary: linalg.Identity(4), NumQubits: 2, Basis: gate.NewSet(gate.RZ, gate.SX),
	})
	assert.ErrorIs(t, err, ErrInfeasible)

	_, err = lib.Synthesize(context.Background(), Request{
		Unitary: gate.New(gate.H).MustOperator(), NumQubits: 1, Basis: gate.NewSet(gate.CX),
	})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestAngles(t *testing.T) {
	u := gate.New(gate.U, 0.3, -1.1, 2.0).MustOperator()
	theta, phi, lambda, alpha := Angles(u)

	rebuilt := gate.New(gate.RZ, phi).MustOperator()
	rebuilt = linalg.Mul(rebuilt, gate.New(gate.RY, theta).MustOperator())
	rebuilt = linalg.Mul(rebuilt, gate.New(gate.RZ, lambda).MustOperator())
	rebuilt = rebuilt.Scale(cmplx.Exp(complex(0, alpha)))
	assert.True(t, linalg.Equal(u, rebuilt, 1e-12))
	assert.InDelta(t, 0.3, theta, 1e-12)
}

func TestRankIsStable(t *testing.T) {
	mk := func(tag float64, twoQ, gates int, fid float64) Candidate {
		return Candidate{GlobalPhase: tag, TwoQubitCount: twoQ, GateCount: gates, FidelityCost: fid}
	}
	cands := []Candidate{
		mk(0, 1, 3, 0.1),
		mk(1, 0, 5, 0.2),
		mk(2, 0, 4, 0.3),
		mk(3, 0, 4, 0.3),
		mk(4, 0, 4, 0.1),
	}
	Rank(cands)
	var order []float64
	for _, c := range cands {
		order = append(order, c.GlobalPhase)
	}
	assert.Equal(t, []float64{4, 2, 3, 1, 0}, order)
}

func TestConnectivity(t *testing.T) {
	var none *Connectivity
	assert.True(t, none.Allows(3, 1))
	assert.Nil(t, none.Localize([]int{1, 2}))

	c := NewConnectivity([][2]int{{0, 1}, {2, 1}, {1, 3}})
	assert.True(t, c.Allows(2, 1))
	assert.False(t, c.Allows(1, 2))

	local := c.Localize([]int{1, 2})
	assert.True(t, local.Allows(1, 0))
	assert.False(t, local.Allows(0, 1))
}

func TestFidelityModel(t *testing.T) {
	ops := []Instruction{
		{Op: gate.New(gate.SX), Qubits: []int{0}},
		{Op: gate.New(gate.CX), Qubits: []int{0, 1}},
	}
	assert.InDelta(t, 1-(1-1e-4)*(1-1e-2), FidelityModel{}.Cost(ops), 1e-15)

	fm := FidelityModel{Rates: map[gate.Kind]float64{gate.CX: 0.5}, OneQubit: 0}
	assert.InDelta(t, 0.5, fm.Cost(ops), 1e-15)

	c := NewCandidate(ops, 0, fm)
	assert.Equal(t, Key{TwoQubit: 1, Gates: 2, Fidelity: c.FidelityCost}, c.Key())
}
