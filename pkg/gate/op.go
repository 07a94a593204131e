package gate

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// ErrArity is returned when an op is applied to the wrong number of operands
// or parameters.
var ErrArity = errors.New("operand arity mismatch")

// ErrNotUnitary is returned when a matrix is requested for a directive.
var ErrNotUnitary = errors.New("operation has no unitary matrix")

// Op is one operation: a kind plus its parameters. Matrix is set only for
// the Unitary kind.
type Op struct {
	Kind   Kind
	Params []float64
	Matrix *linalg.Matrix
}

// New returns an op of the given structural kind.
func New(kind Kind, params ...float64) Op {
	return Op{Kind: kind, Params: params}
}

// NewUnitary wraps an explicit matrix.
func NewUnitary(m linalg.Matrix) Op {
	c := m.Clone()
	return Op{Kind: Unitary, Matrix: &c}
}

// Name returns the mnemonic.
func (o Op) Name() string { return o.Kind.String() }

// IsDirective reports whether o is non-unitary.
func (o Op) IsDirective() bool { return o.Kind.IsDirective() }

// NumQubits returns the operand count implied by the op, or 0 for variadic
// barriers.
func (o Op) NumQubits() int {
	if o.Kind == Unitary {
		if o.Matrix == nil {
			return 0
		}
		n, err := o.Matrix.NumQubits()
		if err != nil {
			return 0
		}
		return n
	}
	return SpecOf(o.Kind).Qubits
}

// NumClbits returns the clbit operand count.
func (o Op) NumClbits() int { return SpecOf(o.Kind).Clbits }

// Validate checks the op against an operand footprint.
func (o Op) Validate(qubits, clbits int) error {
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: invalid gate kind %d", ErrArity, o.Kind)
	}
	spec := SpecOf(o.Kind)
	switch o.Kind {
	case Barrier:
		if qubits == 0 {
			return fmt.Errorf("%w: barrier needs at least one qubit", ErrArity)
		}
	case Unitary:
		if o.Matrix == nil {
			return fmt.Errorf("%w: unitary op without matrix", ErrArity)
		}
		n, err := o.Matrix.NumQubits()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArity, err)
		}
		if n != qubits {
			return fmt.Errorf("%w: %d-qubit matrix on %d qubits", ErrArity, n, qubits)
		}
	default:
		if spec.Qubits != qubits {
			return fmt.Errorf("%w: %s takes %d qubits, got %d", ErrArity, spec.Name, spec.Qubits, qubits)
		}
	}
	if spec.Clbits != clbits {
		return fmt.Errorf("%w: %s takes %d clbits, got %d", ErrArity, spec.Name, spec.Clbits, clbits)
	}
	if o.Kind != Unitary && len(o.Params) != spec.Params {
		return fmt.Errorf("%w: %s takes %d params, got %d", ErrArity, spec.Name, spec.Params, len(o.Params))
	}
	return nil
}

// Basis returns the commuting basis of operand pos.
func (o Op) Basis(pos int, tol float64) Basis {
	if o.Kind == Unitary {
		if o.Matrix != nil && linalg.IsDiagonal(*o.Matrix, tol) {
			return BasisZ
		}
		return BasisNone
	}
	spec := SpecOf(o.Kind)
	if pos < 0 || pos >= len(spec.Bases) {
		return BasisNone
	}
	return spec.Bases[pos]
}

// IsDiagonal reports whether the op's matrix is diagonal in the
// computational basis.
func (o Op) IsDiagonal(tol float64) bool {
	if o.IsDirective() {
		return false
	}
	if o.Kind == Unitary {
		return o.Matrix != nil && linalg.IsDiagonal(*o.Matrix, tol)
	}
	for _, b := range SpecOf(o.Kind).Bases {
		if b&BasisZ == 0 {
			return false
		}
	}
	return true
}

// Equal reports structural equality. Parameters compare exactly.
func (o Op) Equal(p Op) bool {
	if o.Kind != p.Kind || len(o.Params) != len(p.Params) {
		return false
	}
	for i := range o.Params {
		if o.Params[i] != p.Params[i] {
			return false
		}
	}
	if o.Kind == Unitary {
		if o.Matrix == nil || p.Matrix == nil {
			return o.Matrix == p.Matrix
		}
		return linalg.Equal(*o.Matrix, *p.Matrix, 0)
	}
	return true
}

// Key returns a stable identity string for memoization. Explicit matrices
// have no key.
func (o Op) Key() (string, bool) {
	if o.Kind == Unitary {
		return "", false
	}
	if len(o.Params) == 0 {
		return o.Name(), true
	}
	var sb strings.Builder
	sb.WriteString(o.Name())
	sb.WriteByte('(')
	for i, p := range o.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(p, 'g', 15, 64))
	}
	sb.WriteByte(')')
	return sb.String(), true
}

// String renders the op like a QASM gate call without operands.
func (o Op) String() string {
	if k, ok := o.Key(); ok {
		return k
	}
	return fmt.Sprintf("unitary[%dq]", o.NumQubits())
}

// Operator materializes the op's matrix over its operands in order.
func (o Op) Operator() (linalg.Matrix, error) {
	if o.IsDirective() {
		return linalg.Matrix{}, fmt.Errorf("%w: %s", ErrNotUnitary, o.Name())
	}
	if o.Kind == Unitary {
		if o.Matrix == nil {
			return linalg.Matrix{}, fmt.Errorf("%w: unitary op without matrix", ErrArity)
		}
		return o.Matrix.Clone(), nil
	}
	if err := o.Validate(SpecOf(o.Kind).Qubits, SpecOf(o.Kind).Clbits); err != nil {
		return linalg.Matrix{}, err
	}
	return structuralMatrix(o.Kind, o.Params), nil
}

// MustOperator is Operator for ops already validated by their container.
func (o Op) MustOperator() linalg.Matrix {
	m, err := o.Operator()
	if err != nil {
		panic(err)
	}
	return m
}

func expi(theta float64) complex128 {
	return cmplx.Exp(complex(0, theta))
}

func controlled(u [2][2]complex128) linalg.Matrix {
	m := linalg.Identity(4)
	m.Set(2, 2, u[0][0])
	m.Set(2, 3, u[0][1])
	m.Set(3, 2, u[1][0])
	m.Set(3, 3, u[1][1])
	return m
}

func permutation(n int, swaps ...[2]int) linalg.Matrix {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for _, s := range swaps {
		perm[s[0]], perm[s[1]] = perm[s[1]], perm[s[0]]
	}
	m := linalg.New(n)
	for col, row := range perm {
		m.Set(row, col, 1)
	}
	return m
}

func structuralMatrix(k Kind, p []float64) linalg.Matrix {
	r2 := complex(1/math.Sqrt2, 0)
	switch k {
	case I:
		return linalg.Identity(2)
	case X:
		return linalg.MustFromRows([][]complex128{{0, 1}, {1, 0}})
	case Y:
		return linalg.MustFromRows([][]complex128{{0, -1i}, {1i, 0}})
	case Z:
		return linalg.Diag(1, -1)
	case H:
		return linalg.MustFromRows([][]complex128{{r2, r2}, {r2, -r2}})
	case S:
		return linalg.Diag(1, 1i)
	case Sdg:
		return linalg.Diag(1, -1i)
	case T:
		return linalg.Diag(1, expi(math.Pi/4))
	case Tdg:
		return linalg.Diag(1, expi(-math.Pi/4))
	case SX:
		return linalg.MustFromRows([][]complex128{
			{complex(0.5, 0.5), complex(0.5, -0.5)},
			{complex(0.5, -0.5), complex(0.5, 0.5)},
		})
	case SXdg:
		return linalg.MustFromRows([][]complex128{
			{complex(0.5, -0.5), complex(0.5, 0.5)},
			{complex(0.5, 0.5), complex(0.5, -0.5)},
		})
	case RX:
		c, s := math.Cos(p[0]/2), math.Sin(p[0]/2)
		return linalg.MustFromRows([][]complex128{
			{complex(c, 0), complex(0, -s)},
			{complex(0, -s), complex(c, 0)},
		})
	case RY:
		c, s := math.Cos(p[0]/2), math.Sin(p[0]/2)
		return linalg.MustFromRows([][]complex128{
			{complex(c, 0), complex(-s, 0)},
			{complex(s, 0), complex(c, 0)},
		})
	case RZ:
		return linalg.Diag(expi(-p[0]/2), expi(p[0]/2))
	case P:
		return linalg.Diag(1, expi(p[0]))
	case U:
		theta, phi, lam := p[0], p[1], p[2]
		c, s := math.Cos(theta/2), math.Sin(theta/2)
		return linalg.MustFromRows([][]complex128{
			{complex(c, 0), -expi(lam) * complex(s, 0)},
			{expi(phi) * complex(s, 0), expi(phi+lam) * complex(c, 0)},
		})
	case CX:
		return controlled([2][2]complex128{{0, 1}, {1, 0}})
	case CY:
		return controlled([2][2]complex128{{0, -1i}, {1i, 0}})
	case CZ:
		return linalg.Diag(1, 1, 1, -1)
	case CH:
		return controlled([2][2]complex128{{r2, r2}, {r2, -r2}})
	case CP:
		return linalg.Diag(1, 1, 1, expi(p[0]))
	case CRZ:
		return linalg.Diag(1, 1, expi(-p[0]/2), expi(p[0]/2))
	case RZZ:
		a, b := expi(-p[0]/2), expi(p[0]/2)
		return linalg.Diag(a, b, b, a)
	case SWAP:
		return permutation(4, [2]int{1, 2})
	case CCX:
		return permutation(8, [2]int{6, 7})
	case CSWAP:
		return permutation(8, [2]int{5, 6})
	}
	panic(fmt.Sprintf("gate: no matrix for kind %s", k))
}
