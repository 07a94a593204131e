// Package commutation decides when two operations may be reordered and
// groups each wire's operations into maximal mutually commuting runs.
package commutation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// Defaults for Options.
const (
	DefaultTolerance = 1e-10
	DefaultMaxQubits = 4
	DefaultMemoSize  = 4096
)

// Options configures a Checker.
type Options struct {
	// Tolerance is the elementwise tolerance of the explicit commutator
	// check.
	Tolerance float64
	// MaxQubits bounds the joint register of the explicit check; wider
	// pairs are reported as not commuting.
	MaxQubits int
	// MemoSize bounds the memo of explicit checks.
	MemoSize int
}

// Checker decides commutation up to global phase. It is safe for
// concurrent use.
type Checker struct {
	tol       float64
	maxQubits int
	memo      *cache.LRU[bool]
}

// NewChecker builds a checker, filling zero options with defaults.
func NewChecker(opts Options) *Checker {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxQubits <= 0 {
		opts.MaxQubits = DefaultMaxQubits
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	return &Checker{
		tol:       opts.Tolerance,
		maxQubits: opts.MaxQubits,
		memo:      cache.NewLRU[bool](cache.Options{MaxSize: opts.MemoSize}),
	}
}

// Memo exposes the memo of explicit checks, for statistics and
// persistence.
func (c *Checker) Memo() *cache.LRU[bool] { return c.memo }

// Tolerance returns the commutator tolerance.
func (c *Checker) Tolerance() float64 { return c.tol }

// Commute reports whether a and b may be exchanged without changing the
// composed operator up to global phase.
func (c *Checker) Commute(a, b *circuit.Node) bool {
	shared := sharedWires(a, b)
	if len(shared) == 0 {
		return true
	}
	if !a.IsGate() || !b.IsGate() {
		return false
	}
	if basesAgree(a, b, shared, c.tol) {
		return true
	}
	return c.explicit(a, b)
}

func sharedWires(a, b *circuit.Node) []circuit.Wire {
	var out []circuit.Wire
	for _, w := range a.Wires() {
		if b.Touches(w) {
			out = append(out, w)
		}
	}
	return out
}

// basesAgree reports whether on every shared qubit both operations are
// block diagonal in a common Pauli basis.
func basesAgree(a, b *circuit.Node, shared []circuit.Wire, tol float64) bool {
	for _, w := range shared {
		if w.Clbit {
			return false
		}
		ba := a.Op.Basis(operandIndex(a.Qubits, w.Index), tol)
		bb := b.Op.Basis(operandIndex(b.Qubits, w.Index), tol)
		if ba&bb == 0 {
			return false
		}
	}
	return true
}

func operandIndex(qubits []int, q int) int {
	for i, x := range qubits {
		if x == q {
			return i
		}
	}
	return -1
}

// explicit compares AB and BA over the union of the two operations' qubits.
func (c *Checker) explicit(a, b *circuit.Node) bool {
	union := unionQubits(a.Qubits, b.Qubits)
	if len(union) > c.maxQubits {
		return false
	}
	key, memoizable := placementKey(a, b, union)
	if memoizable {
		if v, ok := c.memo.Get(key); ok {
			return v
		}
	}

	ma, err := a.Op.Operator()
	if err != nil {
		return false
	}
	mb, err := b.Op.Operator()
	if err != nil {
		return false
	}
	m := len(union)
	ea := linalg.Embed(ma, localPositions(a.Qubits, union), m)
	eb := linalg.Embed(mb, localPositions(b.Qubits, union), m)
	result := linalg.Commutes(ea, eb, c.tol)

	if memoizable {
		c.memo.Set(key, result)
	}
	return result
}

func unionQubits(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, q := range append(append([]int(nil), a...), b...) {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	sort.Ints(out)
	return out
}

func localPositions(qubits, union []int) []int {
	out := make([]int, len(qubits))
	for i, q := range qubits {
		out[i] = operandIndex(union, q)
	}
	return out
}

// placementKey identifies the pair up to relabeling of qubits: the two op
// keys plus each op's operand positions within the sorted union.
func placementKey(a, b *circuit.Node, union []int) (string, bool) {
	ka, ok := a.Op.Key()
	if !ok {
		return "", false
	}
	kb, ok := b.Op.Key()
	if !ok {
		return "", false
	}
	var sb strings.Builder
	write := func(k string, qubits []int) {
		sb.WriteString(k)
		sb.WriteByte('@')
		for i, p := range localPositions(qubits, union) {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(p))
		}
	}
	write(ka, a.Qubits)
	sb.WriteByte('|')
	write(kb, b.Qubits)
	return sb.String(), true
}
