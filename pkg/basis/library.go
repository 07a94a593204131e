// Package basis rewrites a circuit into a target gate set using a library of
// equivalence rules.
package basis

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

var (
	// ErrNoTranslationPath is returned when some kind in the circuit cannot
	// reach the target basis through the library's rules.
	ErrNoTranslationPath = errors.New("no translation path")

	// ErrInvalidRule is returned by Register for malformed or numerically
	// wrong rules.
	ErrInvalidRule = errors.New("invalid equivalence rule")
)

// ValidationTolerance bounds the distance, up to global phase, between a
// rule's composition and its source at registration.
const ValidationTolerance = 1e-9

// sampleParams are the parameter values rules are checked against.
var sampleParams = [][]float64{
	{0.3, -1.2, 2.5},
	{1.7, 0.4, -0.9},
	{-2.8, 2.2, 0.05},
}

// Template is one gate of a rule body. Qubits index the source operation's
// operands. Params derives the gate's parameters from the source's; nil
// means the gate takes none.
type Template struct {
	Kind   gate.Kind
	Qubits []int
	Params func(p []float64) []float64
}

func (t Template) op(params []float64) gate.Op {
	if t.Params == nil {
		return gate.New(t.Kind)
	}
	return gate.New(t.Kind, t.Params(params)...)
}

// Rule rewrites one gate kind as a sequence of templates, in time order.
type Rule struct {
	Source gate.Kind
	Cost   float64
	Body   []Template

	index int
}

// Key identifies the source of a rule.
type Key struct {
	Kind   gate.Kind
	Params int
}

// Key returns the rule's source key.
func (r *Rule) Key() Key {
	return Key{Kind: r.Source, Params: gate.SpecOf(r.Source).Params}
}

// Index is the rule's registration position.
func (r *Rule) Index() int { return r.index }

func (r *Rule) String() string {
	s := r.Source.String() + " ->"
	if len(r.Body) == 0 {
		return s + " (empty)"
	}
	for _, t := range r.Body {
		s += fmt.Sprintf(" %s%v", t.Kind, t.Qubits)
	}
	return s
}

// children returns the distinct kinds of the rule body.
func (r *Rule) children() []gate.Kind {
	seen := make(map[gate.Kind]bool, len(r.Body))
	var out []gate.Kind
	for _, t := range r.Body {
		if !seen[t.Kind] {
			seen[t.Kind] = true
			out = append(out, t.Kind)
		}
	}
	return out
}

// EquivalenceLibrary holds equivalence rules in registration order. It is
// safe for concurrent reads once registration is done.
type EquivalenceLibrary struct {
	rules []*Rule
	byKey map[Key][]*Rule
}

// NewEquivalenceLibrary returns an empty library.
func NewEquivalenceLibrary() *EquivalenceLibrary {
	return &EquivalenceLibrary{byKey: make(map[Key][]*Rule)}
}

// Register validates r and adds it to the library.
func (l *EquivalenceLibrary) Register(r Rule) error {
	if err := validateRule(&r); err != nil {
		return err
	}
	r.index = len(l.rules)
	stored := &r
	l.rules = append(l.rules, stored)
	l.byKey[r.Key()] = append(l.byKey[r.Key()], stored)
	return nil
}

// MustRegister is Register for static rule tables.
func (l *EquivalenceLibrary) MustRegister(r Rule) {
	if err := l.Register(r); err != nil {
		panic(err)
	}
}

// Rules returns every rule in registration order.
func (l *EquivalenceLibrary) Rules() []*Rule {
	out := make([]*Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Lookup returns the rules for a source key in registration order.
func (l *EquivalenceLibrary) Lookup(k Key) []*Rule {
	return l.byKey[k]
}

// Len returns the number of rules.
func (l *EquivalenceLibrary) Len() int { return len(l.rules) }

func structural(k gate.Kind) bool {
	return k.Valid() && !k.IsDirective() && k != gate.Unitary && gate.SpecOf(k).Qubits > 0
}

func validateRule(r *Rule) error {
	if !structural(r.Source) {
		return fmt.Errorf("%w: source %s has no fixed matrix", ErrInvalidRule, r.Source)
	}
	if r.Cost <= 0 {
		return fmt.Errorf("%w: %s: cost %v must be positive", ErrInvalidRule, r, r.Cost)
	}
	src := gate.SpecOf(r.Source)
	for i, t := range r.Body {
		if !structural(t.Kind) {
			return fmt.Errorf("%w: %s: template %d has kind %s", ErrInvalidRule, r, i, t.Kind)
		}
		if len(t.Qubits) != gate.SpecOf(t.Kind).Qubits {
			return fmt.Errorf("%w: %s: template %d wants %d qubits, got %d",
				ErrInvalidRule, r, i, gate.SpecOf(t.Kind).Qubits, len(t.Qubits))
		}
		seen := make(map[int]bool, len(t.Qubits))
		for _, q := range t.Qubits {
			if q < 0 || q >= src.Qubits || seen[q] {
				return fmt.Errorf("%w: %s: template %d has bad qubit %d", ErrInvalidRule, r, i, q)
			}
			seen[q] = true
		}
	}

	for _, sample := range sampleParams {
		params := sample[:src.Params]
		want, err := gate.New(r.Source, params...).Operator()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r, err)
		}
		got := linalg.Identity(1 << src.Qubits)
		for i, t := range r.Body {
			op := t.op(params)
			if err := op.Validate(len(t.Qubits), 0); err != nil {
				return fmt.Errorf("%w: %s: template %d: %v", ErrInvalidRule, r, i, err)
			}
			m, err := op.Operator()
			if err != nil {
				return fmt.Errorf("%w: %s: template %d: %v", ErrInvalidRule, r, i, err)
			}
			got = linalg.ApplyLeft(got, m, t.Qubits, src.Qubits)
		}
		if !linalg.EqualUpToPhase(got, want, ValidationTolerance) {
			return fmt.Errorf("%w: %s does not reproduce %s for params %v", ErrInvalidRule, r, r.Source, params)
		}
	}
	return nil
}
