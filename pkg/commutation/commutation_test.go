package commutation

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
)

func pair(t *testing.T, a gate.Op, qa []int, b gate.Op, qb []int) (*circuit.Node, *circuit.Node) {
	t.Helper()
	g := circuit.New(3, 1)
	ia, err := g.Append(a, qa...)
	require.NoError(t, err)
	ib, err := g.Append(b, qb...)
	require.NoError(t, err)
	return g.Node(ia), g.Node(ib)
}

func TestCommute(t *testing.T) {
	tests := []struct {
		name string
		a    gate.Op
		qa   []int
		b    gate.Op
		qb   []int
		want bool
	}{
		{"disjoint", gate.New(gate.H), []int{0}, gate.New(gate.X), []int{1}, true},
		{"rz rz", gate.New(gate.RZ, 0.3), []int{0}, gate.New(gate.RZ, 1.1), []int{0}, true},
		{"z t", gate.New(gate.Z), []int{0}, gate.New(gate.T), []int{0}, true},
		{"rz on control", gate.New(gate.RZ, 0.4), []int{0}, gate.New(gate.CX), []int{0, 1}, true},
		{"rz on target", gate.New(gate.RZ, 0.4), []int{1}, gate.New(gate.CX), []int{0, 1}, false},
		{"x on target", gate.New(gate.X), []int{1}, gate.New(gate.CX), []int{0, 1}, true},
		{"shared control", gate.New(gate.CX), []int{0, 1}, gate.New(gate.CX), []int{0, 2}, true},
		{"crossed cx", gate.New(gate.CX), []int{0, 1}, gate.New(gate.CX), []int{1, 0}, false},
		{"h x", gate.New(gate.H), []int{0}, gate.New(gate.X), []int{0}, false},
		{"x y up to phase", gate.New(gate.X), []int{0}, gate.New(gate.Y), []int{0}, true},
		{"h h explicit", gate.New(gate.H), []int{0}, gate.New(gate.H), []int{0}, true},
		{"swap swap", gate.New(gate.SWAP), []int{0, 1}, gate.New(gate.SWAP), []int{1, 0}, true},
		{"cz cx reversed", gate.New(gate.CZ), []int{0, 1}, gate.New(gate.CX), []int{0, 1}, false},
		{"reset", gate.New(gate.Reset), []int{0}, gate.New(gate.Z), []int{0}, false},
	}
	c := NewChecker(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := pair(t, tt.a, tt.qa, tt.b, tt.qb)
			assert.Equal(t, tt.want, c.Commute(a, b))
			assert.Equal(t, tt.want, c.Commute(b, a))
		})
	}
}

func TestCommuteAgreesWithMatrices(t *testing.T) {
	// The basis shortcut must never claim commutation the commutator denies.
	kinds := []gate.Kind{gate.X, gate.Y, gate.Z, gate.H, gate.S, gate.SX, gate.RX, gate.RY, gate.RZ, gate.P,
		gate.CX, gate.CY, gate.CZ, gate.CH, gate.CP, gate.CRZ, gate.RZZ, gate.SWAP}
	rng := rand.New(rand.NewSource(7))
	c := NewChecker(Options{})
	perms := [][]int{{0, 1}, {1, 0}, {1, 2}, {2, 1}, {0, 2}}

	for _, ka := range kinds {
		for _, kb := range kinds {
			a := randomOp(rng, ka)
			b := randomOp(rng, kb)
			qa := perms[rng.Intn(len(perms))][:a.NumQubits()]
			qb := perms[rng.Intn(len(perms))][:b.NumQubits()]
			na, nb := pair(t, a, qa, b, qb)

			ea := linalg.Embed(a.MustOperator(), qa, 3)
			eb := linalg.Embed(b.MustOperator(), qb, 3)
			want := linalg.Commutes(ea, eb, 1e-9)
			assert.Equal(t, want, c.Commute(na, nb), "%s%v vs %s%v", a, qa, b, qb)
		}
	}
}

func randomOp(rng *rand.Rand, k gate.Kind) gate.Op {
	params := make([]float64, gate.SpecOf(k).Params)
	for i := range params {
		params[i] = rng.Float64()*2*math.Pi - math.Pi
	}
	return gate.New(k, params...)
}

func TestDiagonalUnitariesCommute(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := NewChecker(Options{})
	for i := 0; i < 20; i++ {
		da := linalg.Diag(phase(rng), phase(rng))
		db := linalg.Diag(phase(rng), phase(rng))
		a, b := pair(t, gate.NewUnitary(da), []int{0}, gate.NewUnitary(db), []int{0})
		assert.True(t, a.Op.IsDiagonal(1e-12))
		assert.True(t, c.Commute(a, b))
		assert.True(t, c.Commute(b, a))
	}
}

func phase(rng *rand.Rand) complex128 {
	th := rng.Float64() * 2 * math.Pi
	return complex(math.Cos(th), math.Sin(th))
}

func TestConditionedDoesNotCommute(t *testing.T) {
	g := circuit.New(1, 1)
	a := g.MustAppend(gate.New(gate.RZ, 0.2), 0)
	b, err := g.AddNode(gate.New(gate.Z), []int{0}, nil, &circuit.Condition{Clbit: 0, Value: 1})
	require.NoError(t, err)
	assert.False(t, NewChecker(Options{}).Commute(g.Node(a), g.Node(b)))
}

func TestMemo(t *testing.T) {
	c := NewChecker(Options{MemoSize: 8})
	a, b := pair(t, gate.New(gate.H), []int{0}, gate.New(gate.X), []int{0})
	c.Commute(a, b)
	c.Commute(a, b)
	// Same pattern on other qubits hits the same entry.
	a2, b2 := pair(t, gate.New(gate.H), []int{2}, gate.New(gate.X), []int{2})
	c.Commute(a2, b2)

	stats := c.Memo().Stats()
	assert.Equal(t, 1, stats.Length)
	assert.Equal(t, int64(2), stats.Hits)

	path := filepath.Join(t.TempDir(), "memo.msgpack")
	require.NoError(t, cache.PersistToFile(c.Memo(), path))
	fresh := NewChecker(Options{})
	require.NoError(t, cache.LoadFromFile(fresh.Memo(), path))
	assert.Equal(t, 1, fresh.Memo().Len())
}

func TestMaxQubitsIsConservative(t *testing.T) {
	c := NewChecker(Options{MaxQubits: 1})
	a, b := pair(t, gate.New(gate.SWAP), []int{0, 1}, gate.New(gate.SWAP), []int{0, 1})
	assert.False(t, c.Commute(a, b))
}

func TestAnalyzeRuns(t *testing.T) {
	g := circuit.New(2, 0)
	n0 := g.MustAppend(gate.New(gate.RZ, 0.1), 0)
	n1 := g.MustAppend(gate.New(gate.CX), 0, 1)
	n2 := g.MustAppend(gate.New(gate.T), 0)
	n3 := g.MustAppend(gate.New(gate.H), 0)
	n4 := g.MustAppend(gate.New(gate.X), 1)

	res, err := Analyze(context.Background(), g, NewChecker(Options{}), 2)
	require.NoError(t, err)
	assert.Equal(t, g.Revision(), res.Revision)

	q0 := circuit.Qubit(0)
	assert.Equal(t, [][]circuit.NodeID{{n0, n1, n2}, {n3}}, res.Runs(q0))
	assert.True(t, res.SameClass(q0, n0, n2))
	assert.False(t, res.SameClass(q0, n2, n3))

	q1 := circuit.Qubit(1)
	assert.Equal(t, [][]circuit.NodeID{{n1, n4}}, res.Runs(q1))
	c, ok := res.Class(q1, n4)
	require.True(t, ok)
	assert.Equal(t, 0, c)
	assert.Equal(t, 2, res.NumRuns(q0))

	_, ok = res.Class(q1, n0)
	assert.False(t, ok)
}

func TestAnalyzeRunsArePairwiseCommuting(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	kinds := []gate.Kind{gate.H, gate.RZ, gate.RX, gate.CX, gate.CZ, gate.T, gate.SX}
	g := circuit.New(3, 0)
	for i := 0; i < 60; i++ {
		k := kinds[rng.Intn(len(kinds))]
		op := randomOp(rng, k)
		q := rng.Perm(3)[:op.NumQubits()]
		g.MustAppend(op, q...)
	}
	c := NewChecker(Options{})
	res, err := Analyze(context.Background(), g, c, 0)
	require.NoError(t, err)

	for _, w := range res.Wires() {
		total := 0
		for _, run := range res.Runs(w) {
			total += len(run)
			for i := range run {
				for j := i + 1; j < len(run); j++ {
					assert.True(t, c.Commute(g.Node(run[i]), g.Node(run[j])))
				}
			}
		}
		assert.Equal(t, g.WireLen(w), total)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := circuit.New(1, 0)
	g.MustAppend(gate.New(gate.H), 0)
	_, err := Analyze(ctx, g, NewChecker(Options{}), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPassStoresResult(t *testing.T) {
	g := circuit.New(1, 0)
	g.MustAppend(gate.New(gate.H), 0)
	rc := pipeline.NewRunContext(g, nil)

	p := NewPass(nil, 1)
	require.NoError(t, p.Run(context.Background(), g, rc))
	res, ok := cache.Lookup[*Result](rc.Properties, Kind)
	require.True(t, ok)
	assert.Equal(t, 1, res.NumRuns(circuit.Qubit(0)))

	g.MustAppend(gate.New(gate.X), 0)
	assert.False(t, rc.Properties.Has(Kind))
}
