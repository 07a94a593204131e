package basis

import (
	"math"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

func q(qs ...int) []int { return qs }

func fixed(vals ...float64) func([]float64) []float64 {
	return func([]float64) []float64 { return append([]float64(nil), vals...) }
}

func scaled(i int, f float64) func([]float64) []float64 {
	return func(p []float64) []float64 { return []float64{f * p[i]} }
}

func t1(k gate.Kind, qubits []int) Template { return Template{Kind: k, Qubits: qubits} }

func tp(k gate.Kind, qubits []int, params func([]float64) []float64) Template {
	return Template{Kind: k, Qubits: qubits, Params: params}
}

func rule(src gate.Kind, body ...Template) Rule {
	return Rule{Source: src, Cost: 1, Body: body}
}

// StandardRules returns the built-in rule table. Alternatives for the same
// kind let the search reach rz/sx, rz/ry and u based targets.
func StandardRules() []Rule {
	pi := math.Pi
	return []Rule{
		rule(gate.I),
		rule(gate.H, tp(gate.RZ, q(0), fixed(pi/2)), t1(gate.SX, q(0)), tp(gate.RZ, q(0), fixed(pi/2))),
		rule(gate.H, tp(gate.RZ, q(0), fixed(pi)), tp(gate.RY, q(0), fixed(pi/2))),
		rule(gate.H, tp(gate.U, q(0), fixed(pi/2, 0, pi))),
		rule(gate.X, t1(gate.SX, q(0)), t1(gate.SX, q(0))),
		rule(gate.X, tp(gate.RX, q(0), fixed(pi))),
		rule(gate.X, tp(gate.U, q(0), fixed(pi, 0, pi))),
		rule(gate.Y, t1(gate.Z, q(0)), t1(gate.X, q(0))),
		rule(gate.Y, tp(gate.RY, q(0), fixed(pi))),
		rule(gate.Z, tp(gate.RZ, q(0), fixed(pi))),
		rule(gate.S, tp(gate.RZ, q(0), fixed(pi/2))),
		rule(gate.Sdg, tp(gate.RZ, q(0), fixed(-pi/2))),
		rule(gate.T, tp(gate.RZ, q(0), fixed(pi/4))),
		rule(gate.Tdg, tp(gate.RZ, q(0), fixed(-pi/4))),
		rule(gate.P, tp(gate.RZ, q(0), scaled(0, 1))),
		rule(gate.RZ, tp(gate.P, q(0), scaled(0, 1))),
		rule(gate.RZ, tp(gate.U, q(0), func(p []float64) []float64 { return []float64{0, 0, p[0]} })),
		rule(gate.SX, tp(gate.RX, q(0), fixed(pi/2))),
		rule(gate.SX, tp(gate.U, q(0), fixed(pi/2, -pi/2, pi/2))),
		rule(gate.SXdg, tp(gate.RX, q(0), fixed(-pi/2))),
		rule(gate.SXdg, tp(gate.RZ, q(0), fixed(pi)), t1(gate.SX, q(0)), tp(gate.RZ, q(0), fixed(pi))),
		rule(gate.RX, t1(gate.H, q(0)), tp(gate.RZ, q(0), scaled(0, 1)), t1(gate.H, q(0))),
		rule(gate.RX, tp(gate.U, q(0), func(p []float64) []float64 { return []float64{p[0], -pi / 2, pi / 2} })),
		rule(gate.RY, t1(gate.Sdg, q(0)), tp(gate.RX, q(0), scaled(0, 1)), t1(gate.S, q(0))),
		rule(gate.RY, tp(gate.U, q(0), func(p []float64) []float64 { return []float64{p[0], 0, 0} })),
		rule(gate.U,
			tp(gate.RZ, q(0), scaled(2, 1)),
			tp(gate.RY, q(0), scaled(0, 1)),
			tp(gate.RZ, q(0), scaled(1, 1)),
		),

		rule(gate.CZ, t1(gate.H, q(1)), t1(gate.CX, q(0, 1)), t1(gate.H, q(1))),
		rule(gate.CX, t1(gate.H, q(1)), t1(gate.CZ, q(0, 1)), t1(gate.H, q(1))),
		rule(gate.CY, t1(gate.Sdg, q(1)), t1(gate.CX, q(0, 1)), t1(gate.S, q(1))),
		rule(gate.CH, tp(gate.RY, q(1), fixed(pi/4)), t1(gate.CX, q(0, 1)), tp(gate.RY, q(1), fixed(-pi/4))),
		rule(gate.CP,
			tp(gate.P, q(0), scaled(0, 0.5)),
			t1(gate.CX, q(0, 1)),
			tp(gate.P, q(1), scaled(0, -0.5)),
			t1(gate.CX, q(0, 1)),
			tp(gate.P, q(1), scaled(0, 0.5)),
		),
		rule(gate.CRZ,
			tp(gate.RZ, q(1), scaled(0, 0.5)),
			t1(gate.CX, q(0, 1)),
			tp(gate.RZ, q(1), scaled(0, -0.5)),
			t1(gate.CX, q(0, 1)),
		),
		rule(gate.RZZ, t1(gate.CX, q(0, 1)), tp(gate.RZ, q(1), scaled(0, 1)), t1(gate.CX, q(0, 1))),
		rule(gate.SWAP, t1(gate.CX, q(0, 1)), t1(gate.CX, q(1, 0)), t1(gate.CX, q(0, 1))),
		rule(gate.CCX,
			t1(gate.H, q(2)),
			t1(gate.CX, q(1, 2)),
			t1(gate.Tdg, q(2)),
			t1(gate.CX, q(0, 2)),
			t1(gate.T, q(2)),
			t1(gate.CX, q(1, 2)),
			t1(gate.Tdg, q(2)),
			t1(gate.CX, q(0, 2)),
			t1(gate.T, q(1)),
			t1(gate.T, q(2)),
			t1(gate.H, q(2)),
			t1(gate.CX, q(0, 1)),
			t1(gate.T, q(0)),
			t1(gate.Tdg, q(1)),
			t1(gate.CX, q(0, 1)),
		),
		rule(gate.CSWAP, t1(gate.CX, q(2, 1)), t1(gate.CCX, q(0, 1, 2)), t1(gate.CX, q(2, 1))),
	}
}

// StandardLibrary returns a library holding StandardRules.
func StandardLibrary() *EquivalenceLibrary {
	l := NewEquivalenceLibrary()
	for _, r := range StandardRules() {
		l.MustRegister(r)
	}
	return l
}
