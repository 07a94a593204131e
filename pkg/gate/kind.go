// Package gate defines the closed set of operation kinds a circuit may hold,
// their structural metadata, and how each kind materializes as a matrix.
//
// Every kind except Unitary is structural: its matrix is a function of its
// real parameters. Unitary is the explicit-matrix fallback and carries its
// operator literally.
package gate

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags an operation.
type Kind uint8

const (
	Invalid Kind = iota
	I
	X
	Y
	Z
	H
	S
	Sdg
	T
	Tdg
	SX
	SXdg
	RX
	RY
	RZ
	P
	U
	CX
	CY
	CZ
	CH
	CP
	CRZ
	RZZ
	SWAP
	CCX
	CSWAP
	Measure
	Reset
	Barrier
	Unitary

	numKinds
)

// Basis is a bitmask of single-qubit Pauli bases in which an operation is
// block diagonal on one operand. Two operations commute when, on every
// qubit they share, their masks intersect.
type Basis uint8

const (
	BasisNone Basis = 0
	BasisZ    Basis = 1
	BasisX    Basis = 2
	BasisY    Basis = 4
	BasisAny        = BasisZ | BasisX | BasisY
)

// Spec describes the structure of a kind.
type Spec struct {
	Name string
	// Qubits is the fixed operand count, or 0 when the count comes from the
	// operands (Barrier) or the matrix (Unitary).
	Qubits int
	Clbits int
	Params int
	// Directive marks non-unitary operations (measure, reset, barrier).
	Directive bool
	// Bases gives the commuting basis of each operand for fixed-arity kinds.
	Bases []Basis
}

var specs = [numKinds]Spec{
	Invalid: {Name: "invalid"},
	I:       {Name: "id", Qubits: 1, Bases: []Basis{BasisAny}},
	X:       {Name: "x", Qubits: 1, Bases: []Basis{BasisX}},
	Y:       {Name: "y", Qubits: 1, Bases: []Basis{BasisY}},
	Z:       {Name: "z", Qubits: 1, Bases: []Basis{BasisZ}},
	H:       {Name: "h", Qubits: 1, Bases: []Basis{BasisNone}},
	S:       {Name: "s", Qubits: 1, Bases: []Basis{BasisZ}},
	Sdg:     {Name: "sdg", Qubits: 1, Bases: []Basis{BasisZ}},
	T:       {Name: "t", Qubits: 1, Bases: []Basis{BasisZ}},
	Tdg:     {Name: "tdg", Qubits: 1, Bases: []Basis{BasisZ}},
	SX:      {Name: "sx", Qubits: 1, Bases: []Basis{BasisX}},
	SXdg:    {Name: "sxdg", Qubits: 1, Bases: []Basis{BasisX}},
	RX:      {Name: "rx", Qubits: 1, Params: 1, Bases: []Basis{BasisX}},
	RY:      {Name: "ry", Qubits: 1, Params: 1, Bases: []Basis{BasisY}},
	RZ:      {Name: "rz", Qubits: 1, Params: 1, Bases: []Basis{BasisZ}},
	P:       {Name: "p", Qubits: 1, Params: 1, Bases: []Basis{BasisZ}},
	U:       {Name: "u", Qubits: 1, Params: 3, Bases: []Basis{BasisNone}},
	CX:      {Name: "cx", Qubits: 2, Bases: []Basis{BasisZ, BasisX}},
	CY:      {Name: "cy", Qubits: 2, Bases: []Basis{BasisZ, BasisY}},
	CZ:      {Name: "cz", Qubits: 2, Bases: []Basis{BasisZ, BasisZ}},
	CH:      {Name: "ch", Qubits: 2, Bases: []Basis{BasisZ, BasisNone}},
	CP:      {Name: "cp", Qubits: 2, Params: 1, Bases: []Basis{BasisZ, BasisZ}},
	CRZ:     {Name: "crz", Qubits: 2, Params: 1, Bases: []Basis{BasisZ, BasisZ}},
	RZZ:     {Name: "rzz", Qubits: 2, Params: 1, Bases: []Basis{BasisZ, BasisZ}},
	SWAP:    {Name: "swap", Qubits: 2, Bases: []Basis{BasisNone, BasisNone}},
	CCX:     {Name: "ccx", Qubits: 3, Bases: []Basis{BasisZ, BasisZ, BasisX}},
	CSWAP:   {Name: "cswap", Qubits: 3, Bases: []Basis{BasisZ, BasisNone, BasisNone}},
	Measure: {Name: "measure", Qubits: 1, Clbits: 1, Directive: true},
	Reset:   {Name: "reset", Qubits: 1, Directive: true},
	Barrier: {Name: "barrier", Directive: true},
	Unitary: {Name: "unitary"},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Kind(1); k < numKinds; k++ {
		m[specs[k].Name] = k
	}
	// Common aliases.
	m["cnot"] = CX
	m["i"] = I
	m["u3"] = U
	m["u1"] = P
	m["toffoli"] = CCX
	m["fredkin"] = CSWAP
	return m
}()

// SpecOf returns the structural description of k.
func SpecOf(k Kind) Spec {
	if k >= numKinds {
		return specs[Invalid]
	}
	return specs[k]
}

// String returns the lowercase mnemonic of k.
func (k Kind) String() string {
	return SpecOf(k).Name
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k > Invalid && k < numKinds
}

// IsDirective reports whether k is non-unitary.
func (k Kind) IsDirective() bool {
	return SpecOf(k).Directive
}

// ParseKind maps a mnemonic (case-insensitive) to its kind.
func ParseKind(name string) (Kind, error) {
	k, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Invalid, fmt.Errorf("unknown gate kind %q", name)
	}
	return k, nil
}

// Kinds returns all valid kinds in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := Kind(1); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Set is a set of kinds, used for target bases.
type Set map[Kind]struct{}

// NewSet builds a set from kinds.
func NewSet(kinds ...Kind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// ParseSet builds a set from mnemonics.
func ParseSet(names []string) (Set, error) {
	s := make(Set, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		s[k] = struct{}{}
	}
	return s, nil
}

// Has reports membership.
func (s Set) Has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// Allows reports whether an op of kind k may appear in a circuit restricted
// to s. Directives are always allowed.
func (s Set) Allows(k Kind) bool {
	return k.IsDirective() || s.Has(k)
}

// Sorted returns the members in declaration order.
func (s Set) Sorted() []Kind {
	out := make([]Kind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as a comma-separated list.
func (s Set) String() string {
	names := make([]string, 0, len(s))
	for _, k := range s.Sorted() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}
