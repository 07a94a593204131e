package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

func sampleOp(k Kind) Op {
	params := make([]float64, SpecOf(k).Params)
	for i := range params {
		params[i] = 0.37 * float64(i+1)
	}
	return New(k, params...)
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, got)
	}

	k, err := ParseKind(" CNOT ")
	require.NoError(t, err)
	assert.Equal(t, CX, k)

	_, err = ParseKind("frobnicate")
	assert.Error(t, err)
}

func TestStructuralMatricesAreUnitary(t *testing.T) {
	for _, k := range Kinds() {
		if k.IsDirective() || k == Unitary {
			continue
		}
		t.Run(k.String(), func(t *testing.T) {
			m, err := sampleOp(k).Operator()
			require.NoError(t, err)
			n, err := m.NumQubits()
			require.NoError(t, err)
			assert.Equal(t, SpecOf(k).Qubits, n)
			assert.True(t, linalg.IsUnitary(m, 1e-12))
		})
	}
}

func TestBasisLabelsMatchMatrices(t *testing.T) {
	paulis := map[Basis]linalg.Matrix{
		BasisZ: New(Z).MustOperator(),
		BasisX: New(X).MustOperator(),
		BasisY: New(Y).MustOperator(),
	}

	for _, k := range Kinds() {
		if k.IsDirective() || k == Unitary {
			continue
		}
		op := sampleOp(k)
		m := op.MustOperator()
		nq := SpecOf(k).Qubits
		for pos := 0; pos < nq; pos++ {
			for label, pauli := range paulis {
				if op.Basis(pos, 1e-12)&label == 0 {
					continue
				}
				embedded := linalg.Embed(pauli, []int{pos}, nq)
				assert.True(t, linalg.Equal(linalg.Mul(m, embedded), linalg.Mul(embedded, m), 1e-12),
					"%s operand %d should commute with its basis Pauli", k, pos)
			}
		}
	}
}

func TestIsDiagonal(t *testing.T) {
	tests := []struct {
		op   Op
		want bool
	}{
		{New(RZ, 0.3), true},
		{New(T), true},
		{New(CZ), true},
		{New(RZZ, 1.1), true},
		{New(X), false},
		{New(CX), false},
		{New(Measure), false},
		{NewUnitary(linalg.Diag(1, 1i)), true},
		{NewUnitary(New(H).MustOperator()), false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.IsDiagonal(1e-12))
			if m, err := tt.op.Operator(); err == nil {
				assert.Equal(t, tt.want, linalg.IsDiagonal(m, 1e-12))
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Op
		qubits  int
		clbits  int
		wantErr bool
	}{
		{"cx ok", New(CX), 2, 0, false},
		{"cx one qubit", New(CX), 1, 0, true},
		{"rz missing param", New(RZ), 1, 0, true},
		{"measure ok", New(Measure), 1, 1, false},
		{"measure no clbit", New(Measure), 1, 0, true},
		{"barrier wide", New(Barrier), 5, 0, false},
		{"barrier empty", New(Barrier), 0, 0, true},
		{"unitary ok", NewUnitary(linalg.Identity(4)), 2, 0, false},
		{"unitary wrong width", NewUnitary(linalg.Identity(4)), 1, 0, true},
		{"invalid kind", Op{}, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate(tt.qubits, tt.clbits)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrArity)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestKeyAndEqual(t *testing.T) {
	k, ok := New(RZ, 0.5).Key()
	require.True(t, ok)
	assert.Equal(t, "rz(0.5)", k)

	k, ok = New(CX).Key()
	require.True(t, ok)
	assert.Equal(t, "cx", k)

	_, ok = NewUnitary(linalg.Identity(2)).Key()
	assert.False(t, ok)

	assert.True(t, New(U, 1, 2, 3).Equal(New(U, 1, 2, 3)))
	assert.False(t, New(U, 1, 2, 3).Equal(New(U, 1, 2, 4)))
	assert.True(t, NewUnitary(linalg.Identity(2)).Equal(NewUnitary(linalg.Identity(2))))
}

func TestOperatorRejectsDirectives(t *testing.T) {
	_, err := New(Reset).Operator()
	assert.ErrorIs(t, err, ErrNotUnitary)
}

func TestUMatchesEulerAngles(t *testing.T) {
	// u(θ,φ,λ) = e^{i(φ+λ)/2} rz(φ) ry(θ) rz(λ)
	theta, phi, lam := 0.9, -0.4, 2.1
	want := linalg.Mul(New(RZ, phi).MustOperator(),
		linalg.Mul(New(RY, theta).MustOperator(), New(RZ, lam).MustOperator()))
	got := New(U, theta, phi, lam).MustOperator()

	phase, ok := linalg.PhaseDifference(want, got, 1e-12)
	require.True(t, ok)
	assert.InDelta(t, (phi+lam)/2, phase, 1e-12)
}

func TestSet(t *testing.T) {
	s, err := ParseSet([]string{"cx", "rz", "sx"})
	require.NoError(t, err)
	assert.True(t, s.Allows(CX))
	assert.True(t, s.Allows(Measure))
	assert.False(t, s.Allows(H))
	assert.Equal(t, "sx,rz,cx", s.String())
}
