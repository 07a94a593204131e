package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// cxViaCZ is h(1) cz(0,1) h(1) over local qubits.
func cxViaCZ() *DAG {
	r := New(2, 0)
	r.MustAppend(gate.New(gate.H), 1)
	r.MustAppend(gate.New(gate.CZ), 0, 1)
	r.MustAppend(gate.New(gate.H), 1)
	return r
}

func TestSubstitutePreservesOutsideNeighbours(t *testing.T) {
	d := New(3, 0)
	h0 := d.MustAppend(gate.New(gate.H), 0)
	t2 := d.MustAppend(gate.New(gate.T), 2)
	cx := d.MustAppend(gate.New(gate.CX), 0, 1)
	x1 := d.MustAppend(gate.New(gate.X), 1)
	z0 := d.MustAppend(gate.New(gate.Z), 0)
	before := d.Clone()

	mapping, err := d.SubstituteNodeWithSubgraph(cx, cxViaCZ())
	require.NoError(t, err)
	require.Len(t, mapping, 3)
	assert.NoError(t, d.Validate())

	cz := mapping[1]
	assert.Equal(t, gate.CZ, d.Node(cz).Op.Kind)
	assert.Equal(t, []int{0, 1}, d.Node(cz).Qubits)

	succ, _ := d.Successor(h0, Qubit(0))
	assert.Equal(t, cz, succ)
	pred, _ := d.Predecessor(z0, Qubit(0))
	assert.Equal(t, cz, pred)
	pred, _ = d.Predecessor(x1, Qubit(1))
	assert.Equal(t, mapping[2], pred)
	assert.Equal(t, []NodeID{t2}, d.WireNodes(Qubit(2)))

	ok, err := Equivalent(before, d, 1e-12)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubstituteKeepsInsertionOrder(t *testing.T) {
	d := New(2, 0)
	h0 := d.MustAppend(gate.New(gate.H), 0)
	d.MustAppend(gate.New(gate.X), 1)

	r := New(1, 0)
	r.MustAppend(gate.New(gate.RZ, 0.5), 0)
	r.MustAppend(gate.New(gate.SX), 0)
	_, err := d.SubstituteNodeWithSubgraph(h0, r)
	require.NoError(t, err)

	var kinds []gate.Kind
	for _, id := range d.Nodes() {
		kinds = append(kinds, d.Node(id).Op.Kind)
	}
	assert.Equal(t, []gate.Kind{gate.RZ, gate.SX, gate.X}, kinds)
}

func TestSubstituteReversedOperands(t *testing.T) {
	d := New(2, 0)
	cx := d.MustAppend(gate.New(gate.CX), 1, 0)
	before := d.Clone()

	_, err := d.SubstituteNodeWithSubgraph(cx, cxViaCZ())
	require.NoError(t, err)
	ok, err := Equivalent(before, d, 1e-12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []NodeID{}, filterKind(d, gate.CX))
}

func filterKind(d *DAG, k gate.Kind) []NodeID {
	out := []NodeID{}
	for _, id := range d.Nodes() {
		if d.Node(id).Op.Kind == k {
			out = append(out, id)
		}
	}
	return out
}

func TestSubstituteShapeMismatch(t *testing.T) {
	d := New(2, 0)
	cx := d.MustAppend(gate.New(gate.CX), 0, 1)
	rev := d.Revision()

	_, err := d.SubstituteNodeWithSubgraph(cx, New(1, 0))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, rev, d.Revision())
	assert.NotNil(t, d.Node(cx))
}

func TestSubstituteEmptyReplacementAddsPhase(t *testing.T) {
	d := New(1, 0)
	a := d.MustAppend(gate.New(gate.H), 0)
	z := d.MustAppend(gate.New(gate.Z), 0)
	b := d.MustAppend(gate.New(gate.H), 0)

	rep := New(1, 0)
	rep.SetGlobalPhase(0.25)
	mapping, err := d.SubstituteNodeWithSubgraph(z, rep)
	require.NoError(t, err)
	assert.Empty(t, mapping)
	assert.Equal(t, []NodeID{a, b}, d.WireNodes(Qubit(0)))
	assert.InDelta(t, 0.25, d.GlobalPhase(), 1e-15)
}

func TestSubstitutePropagatesCondition(t *testing.T) {
	d := New(2, 1)
	_, err := d.AddNode(gate.New(gate.Measure), []int{0}, []int{0}, nil)
	require.NoError(t, err)
	cx, err := d.AddNode(gate.New(gate.CX), []int{0, 1}, nil, &Condition{Clbit: 0, Value: 1})
	require.NoError(t, err)
	tail, err := d.AddNode(gate.New(gate.X), []int{1}, nil, &Condition{Clbit: 0, Value: 0})
	require.NoError(t, err)

	mapping, err := d.SubstituteNodeWithSubgraph(cx, cxViaCZ())
	require.NoError(t, err)
	for _, id := range mapping {
		n := d.Node(id)
		require.NotNil(t, n.Condition)
		assert.Equal(t, Condition{Clbit: 0, Value: 1}, *n.Condition)
	}
	assert.Len(t, d.WireNodes(Clbit(0)), 5)
	pred, _ := d.Predecessor(tail, Clbit(0))
	assert.Equal(t, mapping[2], pred)
	assert.NoError(t, d.Validate())
}

func TestCollapseNodes(t *testing.T) {
	d := New(3, 0)
	pre := d.MustAppend(gate.New(gate.X), 2)
	h := d.MustAppend(gate.New(gate.H), 0)
	cx := d.MustAppend(gate.New(gate.CX), 0, 1)
	rz := d.MustAppend(gate.New(gate.RZ, 0.3), 1)
	post := d.MustAppend(gate.New(gate.CX), 1, 2)
	before := d.Clone()

	u := linalg.Identity(4)
	for _, id := range []NodeID{h, cx, rz} {
		n := d.Node(id)
		u = linalg.ApplyLeft(u, n.Op.MustOperator(), n.Qubits, 2)
	}

	id, err := d.CollapseNodes([]NodeID{h, cx, rz}, gate.NewUnitary(u), []int{0, 1})
	require.NoError(t, err)
	assert.NoError(t, d.Validate())
	assert.Equal(t, 3, d.Len())

	pred, _ := d.Predecessor(post, Qubit(1))
	assert.Equal(t, id, pred)
	assert.Equal(t, []NodeID{pre, post}, d.WireNodes(Qubit(2)))

	ok, err := Equivalent(before, d, 1e-12)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCollapseRejectsNonConvex(t *testing.T) {
	d := New(2, 0)
	a := d.MustAppend(gate.New(gate.H), 0)
	mid := d.MustAppend(gate.New(gate.CX), 0, 1)
	b := d.MustAppend(gate.New(gate.H), 0)

	assert.False(t, d.IsConvex([]NodeID{a, b}))
	assert.True(t, d.IsConvex([]NodeID{a, mid}))
	assert.False(t, d.IsConvex([]NodeID{a, 99}))

	_, err := d.CollapseNodes([]NodeID{a, b}, gate.NewUnitary(linalg.Identity(2)), []int{0})
	assert.ErrorIs(t, err, ErrStructural)
	assert.Equal(t, 3, d.Len())
}

func TestCollapseRejectsQubitMismatch(t *testing.T) {
	d := New(2, 0)
	a := d.MustAppend(gate.New(gate.H), 0)

	_, err := d.CollapseNodes([]NodeID{a}, gate.NewUnitary(linalg.Identity(4)), []int{0, 1})
	assert.ErrorIs(t, err, ErrStructural)
}

func TestSwapAdjacent(t *testing.T) {
	d := New(2, 0)
	h := d.MustAppend(gate.New(gate.H), 1)
	rz := d.MustAppend(gate.New(gate.RZ, 0.7), 0)
	cx := d.MustAppend(gate.New(gate.CX), 0, 1)
	before := d.Clone()

	require.NoError(t, d.SwapAdjacent(rz, cx))
	assert.NoError(t, d.Validate())
	assert.Equal(t, []NodeID{cx, rz}, d.WireNodes(Qubit(0)))
	assert.Equal(t, []NodeID{h, cx}, d.WireNodes(Qubit(1)))

	// rz on the control commutes with cx.
	ok, err := Equivalent(before, d, 1e-12)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSwapAdjacentRefusesCycle(t *testing.T) {
	d := New(3, 0)
	a := d.MustAppend(gate.New(gate.CX), 0, 1)
	d.MustAppend(gate.New(gate.CX), 1, 2)
	b := d.MustAppend(gate.New(gate.CX), 0, 2)

	err := d.SwapAdjacent(a, b)
	assert.ErrorIs(t, err, ErrStructural)
	assert.NoError(t, d.Validate())
}

func TestSwapAdjacentRequiresAdjacency(t *testing.T) {
	d := New(1, 0)
	a := d.MustAppend(gate.New(gate.H), 0)
	d.MustAppend(gate.New(gate.X), 0)
	b := d.MustAppend(gate.New(gate.Z), 0)

	assert.ErrorIs(t, d.SwapAdjacent(a, b), ErrStructural)
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := New(2, 1)
	d.MustAppend(gate.New(gate.U, 0.1, 0.2, 0.3), 0)
	d.MustAppend(gate.NewUnitary(gate.New(gate.CH).MustOperator()), 1, 0)
	_, err := d.AddNode(gate.New(gate.Measure), []int{1}, []int{0}, nil)
	require.NoError(t, err)
	_, err = d.AddNode(gate.New(gate.X), []int{0}, nil, &Condition{Clbit: 0, Value: 1})
	require.NoError(t, err)
	d.SetGlobalPhase(-math.Pi / 5)

	data, err := d.Snapshot()
	require.NoError(t, err)

	r, err := Restore(data)
	require.NoError(t, err)
	require.NoError(t, r.Validate())
	assert.Equal(t, d.Len(), r.Len())
	assert.InDelta(t, d.GlobalPhase(), r.GlobalPhase(), 1e-15)

	want, got := d.Nodes(), r.Nodes()
	for i := range want {
		a, b := d.Node(want[i]), r.Node(got[i])
		assert.True(t, a.Op.Equal(b.Op), "op %d", i)
		assert.Equal(t, a.Qubits, b.Qubits)
		assert.Equal(t, a.Condition, b.Condition)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := Restore([]byte{0xc1})
	assert.Error(t, err)
}
