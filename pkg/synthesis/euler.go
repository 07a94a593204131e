package synthesis

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// DefaultAngleTolerance is the rotation angle below which Euler rotations
// are dropped.
const DefaultAngleTolerance = 1e-12

// EulerLibrary synthesizes one-qubit operators as Euler rotations. It
// proposes every decomposition the basis supports: ZYZ (rz ry rz), ZSX
// (rz sx rz sx rz) and a single u gate.
type EulerLibrary struct {
	// AngleTolerance defaults to DefaultAngleTolerance.
	AngleTolerance float64
}

func (EulerLibrary) Name() string { return "euler" }

// Angles returns θ, φ, λ and a phase α with U = e^{iα}·RZ(φ)·RY(θ)·RZ(λ).
func Angles(u linalg.Matrix) (theta, phi, lambda, alpha float64) {
	root := cmplx.Sqrt(linalg.Det(u))
	alpha = cmplx.Phase(root)
	v := u.Scale(1 / root)
	a, b := v.At(0, 0), v.At(1, 0)
	theta = 2 * math.Atan2(cmplx.Abs(b), cmplx.Abs(a))
	phi = cmplx.Phase(b) - cmplx.Phase(a)
	lambda = -cmplx.Phase(a) - cmplx.Phase(b)
	return theta, phi, lambda, alpha
}

func (l EulerLibrary) Synthesize(ctx context.Context, req Request) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.NumQubits != 1 || req.Unitary.Dim() != 2 {
		return nil, fmt.Errorf("%w: euler handles one qubit, got %d", ErrInfeasible, req.NumQubits)
	}
	tol := l.AngleTolerance
	if tol <= 0 {
		tol = DefaultAngleTolerance
	}
	target := req.Unitary
	fm := req.Fidelity

	if linalg.EqualUpToPhase(linalg.Identity(2), target, math.Max(req.Tolerance, tol)) {
		return []Candidate{NewCandidate(nil, cmplx.Phase(target.At(0, 0)), fm)}, nil
	}

	theta, phi, lambda, _ := Angles(target)
	var seqs [][]Instruction
	if req.Basis.Has(gate.RZ) && req.Basis.Has(gate.RY) {
		seqs = append(seqs, zyz(theta, phi, lambda, tol))
	}
	if req.Basis.Has(gate.RZ) && req.Basis.Has(gate.SX) {
		seqs = append(seqs, zsx(theta, phi, lambda, tol))
	}
	if req.Basis.Has(gate.U) {
		seqs = append(seqs, []Instruction{{Op: gate.New(gate.U, theta, phi, lambda), Qubits: []int{0}}})
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: basis %s has no euler family", ErrInfeasible, req.Basis)
	}

	out := make([]Candidate, 0, len(seqs))
	for _, ops := range seqs {
		c := NewCandidate(ops, 0, fm)
		m, err := c.Operator(1)
		if err != nil {
			return nil, err
		}
		// The sequences are exact up to phase; fold the phase in.
		phase, ok := linalg.PhaseDifference(m, target, 1e-6)
		if !ok {
			continue
		}
		c.GlobalPhase = phase
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no euler sequence reproduced the operator", ErrInfeasible)
	}
	return out, nil
}

// zyz builds RZ(λ), RY(θ), RZ(φ) in time order.
func zyz(theta, phi, lambda, tol float64) []Instruction {
	if math.Abs(theta) < tol {
		return rz(nil, phi+lambda, tol)
	}
	ops := rz(nil, lambda, tol)
	ops = append(ops, Instruction{Op: gate.New(gate.RY, theta), Qubits: []int{0}})
	return rz(ops, phi, tol)
}

// zsx uses RY(θ) = RX(-π/2)·RZ(θ)·RX(π/2) and RX(-π/2) = RZ(π)·RX(π/2)·RZ(-π),
// giving RZ(λ), SX, RZ(θ-π), SX, RZ(φ+π) in time order.
func zsx(theta, phi, lambda, tol float64) []Instruction {
	if math.Abs(theta) < tol {
		return rz(nil, phi+lambda, tol)
	}
	sx := Instruction{Op: gate.New(gate.SX), Qubits: []int{0}}
	ops := rz(nil, lambda, tol)
	ops = append(ops, sx)
	ops = rz(ops, theta-math.Pi, tol)
	ops = append(ops, sx)
	return rz(ops, phi+math.Pi, tol)
}

// rz appends an RZ unless its angle is zero modulo 2π.
func rz(ops []Instruction, angle, tol float64) []Instruction {
	angle = wrap(angle)
	if math.Abs(angle) < tol {
		return ops
	}
	return append(ops, Instruction{Op: gate.New(gate.RZ, angle), Qubits: []int{0}})
}

// wrap maps an angle into (-π, π].
func wrap(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
