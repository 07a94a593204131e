package circuit

import (
	"fmt"
	"math/cmplx"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// MaxOperatorQubits bounds the register size Operator will materialize.
const MaxOperatorQubits = 10

// Operator returns the full unitary of the circuit, global phase included.
// Qubit q is register position q, so qubit 0 is the most significant bit.
// Barriers are ignored; any other directive or a classical condition is an
// error.
func (d *DAG) Operator() (linalg.Matrix, error) {
	if d.numQubits > MaxOperatorQubits {
		return linalg.Matrix{}, fmt.Errorf("%w: %d qubits exceeds operator limit %d",
			ErrStructural, d.numQubits, MaxOperatorQubits)
	}
	op := linalg.Identity(1 << d.numQubits)
	order, err := d.topoSlice()
	if err != nil {
		return linalg.Matrix{}, err
	}
	for _, id := range order {
		n := d.nodes[id]
		if n.Op.Kind == gate.Barrier {
			continue
		}
		if n.Condition != nil {
			return linalg.Matrix{}, fmt.Errorf("%w: node %d is classically conditioned", ErrStructural, id)
		}
		g, err := n.Op.Operator()
		if err != nil {
			return linalg.Matrix{}, fmt.Errorf("node %d: %w", id, err)
		}
		op = linalg.ApplyLeft(op, g, n.Qubits, d.numQubits)
	}
	if d.globalPhase != 0 {
		op = op.Scale(cmplx.Exp(complex(0, d.globalPhase)))
	}
	return op, nil
}

// Equivalent reports whether two circuits implement the same operator up to
// global phase within tol.
func Equivalent(a, b *DAG, tol float64) (bool, error) {
	if a.numQubits != b.numQubits {
		return false, nil
	}
	ua, err := a.Operator()
	if err != nil {
		return false, err
	}
	ub, err := b.Operator()
	if err != nil {
		return false, err
	}
	return linalg.EqualUpToPhase(ua, ub, tol), nil
}
