// Package synthesis turns block operators back into gate sequences. A
// Library proposes candidates; the dispatcher pass ranks, validates and
// applies them.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// ErrInfeasible is returned by a Library that cannot synthesize a request
// under its constraints.
var ErrInfeasible = errors.New("synthesis infeasible")

// Library synthesizes operators. Implementations must be safe for
// concurrent use.
type Library interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]Candidate, error)
}

// Request asks for gate sequences implementing Unitary over NumQubits local
// qubits.
type Request struct {
	Unitary   linalg.Matrix
	NumQubits int
	Basis     gate.Set
	// Connectivity restricts two-qubit gate directions on local qubits. Nil
	// allows every direction.
	Connectivity *Connectivity
	// Tolerance is the approximation the library may make.
	Tolerance float64
	Fidelity  FidelityModel
}

// Instruction is one gate of a candidate on local qubits.
type Instruction struct {
	Op     gate.Op
	Qubits []int
}

// Candidate is one proposed gate sequence. Its operator is
// e^{i·GlobalPhase} times the product of its instructions.
type Candidate struct {
	Ops           []Instruction
	GlobalPhase   float64
	TwoQubitCount int
	GateCount     int
	FidelityCost  float64
}

// NewCandidate builds a candidate and fills in its cost fields.
func NewCandidate(ops []Instruction, phase float64, fm FidelityModel) Candidate {
	c := Candidate{Ops: ops, GlobalPhase: phase, GateCount: len(ops)}
	for _, in := range ops {
		if len(in.Qubits) >= 2 {
			c.TwoQubitCount++
		}
	}
	c.FidelityCost = fm.Cost(ops)
	return c
}

// Key is the ranking key of a candidate.
type Key struct {
	TwoQubit int
	Gates    int
	Fidelity float64
}

// Key returns the candidate's ranking key.
func (c Candidate) Key() Key {
	return Key{TwoQubit: c.TwoQubitCount, Gates: c.GateCount, Fidelity: c.FidelityCost}
}

// Less orders keys lexicographically: two-qubit count, gate count, then
// fidelity cost.
func (k Key) Less(o Key) bool {
	if k.TwoQubit != o.TwoQubit {
		return k.TwoQubit < o.TwoQubit
	}
	if k.Gates != o.Gates {
		return k.Gates < o.Gates
	}
	return k.Fidelity < o.Fidelity
}

// Rank sorts candidates best first. Ties keep the library's order.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Key().Less(cands[j].Key()) })
}

// Operator recomposes the candidate over k qubits, phase included.
func (c Candidate) Operator(k int) (linalg.Matrix, error) {
	op := linalg.Identity(1 << k)
	for i, in := range c.Ops {
		if err := in.Op.Validate(len(in.Qubits), 0); err != nil {
			return linalg.Matrix{}, fmt.Errorf("instruction %d: %w", i, err)
		}
		m, err := in.Op.Operator()
		if err != nil {
			return linalg.Matrix{}, fmt.Errorf("instruction %d: %w", i, err)
		}
		seen := make(map[int]bool, len(in.Qubits))
		for _, q := range in.Qubits {
			if q < 0 || q >= k || seen[q] {
				return linalg.Matrix{}, fmt.Errorf("instruction %d: bad qubit %d for %d-qubit block", i, q, k)
			}
			seen[q] = true
		}
		op = linalg.ApplyLeft(op, m, in.Qubits, k)
	}
	return op.Scale(complex(math.Cos(c.GlobalPhase), math.Sin(c.GlobalPhase))), nil
}

// Circuit builds the candidate as a k-qubit replacement graph.
func (c Candidate) Circuit(k int) (*circuit.DAG, error) {
	g := circuit.New(k, 0)
	for i, in := range c.Ops {
		if _, err := g.Append(in.Op, in.Qubits...); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	g.SetGlobalPhase(c.GlobalPhase)
	return g, nil
}

// Connectivity is a set of allowed (control, target) directions.
type Connectivity struct {
	edges map[[2]int]bool
}

// NewConnectivity returns a connectivity allowing exactly the given
// directions.
func NewConnectivity(edges [][2]int) *Connectivity {
	c := &Connectivity{edges: make(map[[2]int]bool, len(edges))}
	for _, e := range edges {
		c.edges[e] = true
	}
	return c
}

// Allows reports whether a two-qubit gate may act from a to b. A nil
// connectivity allows everything.
func (c *Connectivity) Allows(a, b int) bool {
	if c == nil {
		return true
	}
	return c.edges[[2]int{a, b}]
}

// Localize restricts c to qubits, renumbering qubits[i] to i.
func (c *Connectivity) Localize(qubits []int) *Connectivity {
	if c == nil {
		return nil
	}
	local := &Connectivity{edges: make(map[[2]int]bool)}
	for i, a := range qubits {
		for j, b := range qubits {
			if i != j && c.edges[[2]int{a, b}] {
				local.edges[[2]int{i, j}] = true
			}
		}
	}
	return local
}

// FidelityModel assigns error rates to gate kinds. The fidelity cost of a
// sequence is 1 - Π(1 - rate).
type FidelityModel struct {
	Rates map[gate.Kind]float64
	// OneQubit and TwoQubit are the rates of kinds missing from Rates.
	OneQubit float64
	TwoQubit float64
}

// DefaultFidelity is used when a request carries a zero model.
var DefaultFidelity = FidelityModel{OneQubit: 1e-4, TwoQubit: 1e-2}

// Rate returns the error rate of kind on n qubits.
func (fm FidelityModel) Rate(kind gate.Kind, n int) float64 {
	if r, ok := fm.Rates[kind]; ok {
		return r
	}
	if fm.OneQubit == 0 && fm.TwoQubit == 0 && fm.Rates == nil {
		fm = DefaultFidelity
	}
	if n >= 2 {
		return fm.TwoQubit
	}
	return fm.OneQubit
}

// Cost returns the fidelity cost of a candidate's instructions.
func (fm FidelityModel) Cost(ops []Instruction) float64 {
	keep := 1.0
	for _, in := range ops {
		keep *= 1 - fm.Rate(in.Op.Kind, len(in.Qubits))
	}
	return 1 - keep
}
