// Package linalg provides the small dense complex matrices used to reason
// about gate operators: composition, reindexing onto registers, unitarity
// and phase-insensitive comparison.
//
// Register convention: in an m-qubit register, position 0 is the most
// significant bit of the basis index. Gate operands follow the same rule,
// so a gate on operands (a, b) has a as its high bit.
package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"strings"
)

// ErrNumericalInstability is returned when a matrix that must be unitary
// deviates from unitarity beyond the allowed tolerance.
var ErrNumericalInstability = errors.New("numerical instability")

// ErrDimension is returned for matrices of incompatible or invalid size.
var ErrDimension = errors.New("invalid matrix dimension")

// Matrix is a dense square complex matrix stored row-major.
type Matrix struct {
	n    int
	data []complex128
}

// New returns an n×n zero matrix.
func New(n int) Matrix {
	return Matrix{n: n, data: make([]complex128, n*n)}
}

// Identity returns the n×n identity.
func Identity(n int) Matrix {
	m := New(n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// Diag returns a diagonal matrix with the given entries.
func Diag(vals ...complex128) Matrix {
	m := New(len(vals))
	for i, v := range vals {
		m.data[i*m.n+i] = v
	}
	return m
}

// FromRows builds a matrix from row slices. All rows must have len(rows)
// entries.
func FromRows(rows [][]complex128) (Matrix, error) {
	n := len(rows)
	if n == 0 {
		return Matrix{}, fmt.Errorf("%w: empty matrix", ErrDimension)
	}
	m := New(n)
	for i, row := range rows {
		if len(row) != n {
			return Matrix{}, fmt.Errorf("%w: row %d has %d entries, want %d", ErrDimension, i, len(row), n)
		}
		copy(m.data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// MustFromRows is FromRows for literal tables that are known to be square.
func MustFromRows(rows [][]complex128) Matrix {
	m, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Dim returns the matrix dimension.
func (m Matrix) Dim() int { return m.n }

// IsZero reports whether m is the zero value (no storage).
func (m Matrix) IsZero() bool { return m.n == 0 }

// At returns element (i, j).
func (m Matrix) At(i, j int) complex128 { return m.data[i*m.n+j] }

// Set assigns element (i, j).
func (m Matrix) Set(i, j int, v complex128) { m.data[i*m.n+j] = v }

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	c := Matrix{n: m.n, data: make([]complex128, len(m.data))}
	copy(c.data, m.data)
	return c
}

// Rows returns the matrix as row slices.
func (m Matrix) Rows() [][]complex128 {
	rows := make([][]complex128, m.n)
	for i := range rows {
		rows[i] = make([]complex128, m.n)
		copy(rows[i], m.data[i*m.n:(i+1)*m.n])
	}
	return rows
}

// NumQubits returns log2 of the dimension, or an error if the dimension is
// not a power of two.
func (m Matrix) NumQubits() (int, error) {
	if m.n == 0 || m.n&(m.n-1) != 0 {
		return 0, fmt.Errorf("%w: %d is not a power of two", ErrDimension, m.n)
	}
	return bits.TrailingZeros(uint(m.n)), nil
}

// String renders the matrix with four decimals, for diagnostics.
func (m Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.n; i++ {
		sb.WriteString("[")
		for j := 0; j < m.n; j++ {
			if j > 0 {
				sb.WriteString(" ")
			}
			v := m.At(i, j)
			fmt.Fprintf(&sb, "%.4f%+.4fi", real(v), imag(v))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// Mul returns a·b.
func Mul(a, b Matrix) Matrix {
	if a.n != b.n {
		panic(fmt.Sprintf("linalg: Mul dimension mismatch %d vs %d", a.n, b.n))
	}
	n := a.n
	out := New(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a.data[i*n+k]
			if aik == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.data[i*n+j] += aik * b.data[k*n+j]
			}
		}
	}
	return out
}

// Adjoint returns the conjugate transpose.
func (m Matrix) Adjoint() Matrix {
	out := New(m.n)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			out.data[j*m.n+i] = cmplx.Conj(m.data[i*m.n+j])
		}
	}
	return out
}

// Scale returns c·m.
func (m Matrix) Scale(c complex128) Matrix {
	out := m.Clone()
	for i := range out.data {
		out.data[i] *= c
	}
	return out
}

// Kron returns the Kronecker product a⊗b; a occupies the high bits.
func Kron(a, b Matrix) Matrix {
	n := a.n * b.n
	out := New(n)
	for i := 0; i < a.n; i++ {
		for j := 0; j < a.n; j++ {
			aij := a.data[i*a.n+j]
			if aij == 0 {
				continue
			}
			for k := 0; k < b.n; k++ {
				for l := 0; l < b.n; l++ {
					out.data[(i*b.n+k)*n+j*b.n+l] = aij * b.data[k*b.n+l]
				}
			}
		}
	}
	return out
}

// Det computes the determinant by LU decomposition with partial pivoting.
func Det(m Matrix) complex128 {
	n := m.n
	a := m.Clone()
	det := complex(1, 0)
	for col := 0; col < n; col++ {
		pivot := col
		best := cmplx.Abs(a.data[col*n+col])
		for r := col + 1; r < n; r++ {
			if v := cmplx.Abs(a.data[r*n+col]); v > best {
				best, pivot = v, r
			}
		}
		if best == 0 {
			return 0
		}
		if pivot != col {
			for j := 0; j < n; j++ {
				a.data[col*n+j], a.data[pivot*n+j] = a.data[pivot*n+j], a.data[col*n+j]
			}
			det = -det
		}
		p := a.data[col*n+col]
		det *= p
		for r := col + 1; r < n; r++ {
			f := a.data[r*n+col] / p
			if f == 0 {
				continue
			}
			for j := col; j < n; j++ {
				a.data[r*n+j] -= f * a.data[col*n+j]
			}
		}
	}
	return det
}

// MaxDiff returns the largest elementwise modulus of a-b.
func MaxDiff(a, b Matrix) float64 {
	if a.n != b.n {
		return math.Inf(1)
	}
	var worst float64
	for i := range a.data {
		if d := cmplx.Abs(a.data[i] - b.data[i]); d > worst {
			worst = d
		}
	}
	return worst
}

// Equal reports whether a and b agree elementwise within tol.
func Equal(a, b Matrix, tol float64) bool {
	return MaxDiff(a, b) <= tol
}

// PhaseDifference returns φ such that b ≈ e^{iφ}·a, and whether such a φ
// exists within tol.
func PhaseDifference(a, b Matrix, tol float64) (float64, bool) {
	if a.n != b.n {
		return 0, false
	}
	idx := -1
	var best float64
	for i, v := range a.data {
		if m := cmplx.Abs(v); m > best {
			best, idx = m, i
		}
	}
	if idx < 0 || best <= tol {
		// a is numerically zero; only a zero b matches.
		return 0, Equal(a, b, tol)
	}
	ratio := b.data[idx] / a.data[idx]
	if cmplx.Abs(ratio) == 0 {
		return 0, false
	}
	phase := cmplx.Phase(ratio)
	rot := cmplx.Exp(complex(0, phase))
	for i := range a.data {
		if cmplx.Abs(b.data[i]-rot*a.data[i]) > tol {
			return phase, false
		}
	}
	return phase, true
}

// EqualUpToPhase reports whether b ≈ e^{iφ}·a for some real φ.
func EqualUpToPhase(a, b Matrix, tol float64) bool {
	_, ok := PhaseDifference(a, b, tol)
	return ok
}

// UnitarityError returns max |(m†m - I)_ij|.
func UnitarityError(m Matrix) float64 {
	return MaxDiff(Mul(m.Adjoint(), m), Identity(m.n))
}

// IsUnitary reports whether m is unitary within tol.
func IsUnitary(m Matrix, tol float64) bool {
	return m.n > 0 && UnitarityError(m) <= tol
}

// CheckUnitary returns ErrNumericalInstability if m is not unitary within tol.
func CheckUnitary(m Matrix, tol float64) error {
	if m.n == 0 {
		return fmt.Errorf("%w: empty matrix", ErrDimension)
	}
	if dev := UnitarityError(m); dev > tol {
		return fmt.Errorf("%w: unitarity deviation %.3g exceeds %.3g", ErrNumericalInstability, dev, tol)
	}
	return nil
}

// IsDiagonal reports whether every off-diagonal entry is within tol of zero.
func IsDiagonal(m Matrix, tol float64) bool {
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if i != j && cmplx.Abs(m.data[i*m.n+j]) > tol {
				return false
			}
		}
	}
	return true
}

// Commutes reports whether a·b ≈ e^{iφ}·b·a.
func Commutes(a, b Matrix, tol float64) bool {
	return EqualUpToPhase(Mul(b, a), Mul(a, b), tol)
}

// Special splits m into a determinant-one matrix and a global phase so
// that m = e^{iφ}·s. The phase is arg(det m)/n.
func Special(m Matrix) (Matrix, float64) {
	phase := cmplx.Phase(Det(m)) / float64(m.n)
	return m.Scale(cmplx.Exp(complex(0, -phase))), phase
}

// ApplyLeft returns G'·op where op acts on an m-qubit register and G' is the
// k-qubit gate g placed on the given register positions. Operand j of g
// maps to positions[j]; positions need not be sorted, which is how operand
// order differences between gates are reconciled.
func ApplyLeft(op, g Matrix, positions []int, m int) Matrix {
	dim := 1 << m
	k := len(positions)
	gdim := 1 << k
	if op.n != dim || g.n != gdim {
		panic(fmt.Sprintf("linalg: ApplyLeft dims op=%d gate=%d for m=%d k=%d", op.n, g.n, m, k))
	}

	offsets := make([]int, gdim)
	var mask int
	for _, p := range positions {
		mask |= 1 << (m - 1 - p)
	}
	for s := 0; s < gdim; s++ {
		var off int
		for j := 0; j < k; j++ {
			if (s>>(k-1-j))&1 == 1 {
				off |= 1 << (m - 1 - positions[j])
			}
		}
		offsets[s] = off
	}

	out := New(dim)
	vec := make([]complex128, gdim)
	for col := 0; col < dim; col++ {
		for base := 0; base < dim; base++ {
			if base&mask != 0 {
				continue
			}
			for s := 0; s < gdim; s++ {
				vec[s] = op.data[(base|offsets[s])*dim+col]
			}
			for r := 0; r < gdim; r++ {
				var acc complex128
				row := g.data[r*gdim : (r+1)*gdim]
				for s, v := range vec {
					acc += row[s] * v
				}
				out.data[(base|offsets[r])*dim+col] = acc
			}
		}
	}
	return out
}

// Embed places g on the given positions of an m-qubit register.
func Embed(g Matrix, positions []int, m int) Matrix {
	return ApplyLeft(Identity(1<<m), g, positions, m)
}
