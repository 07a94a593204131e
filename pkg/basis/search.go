package basis

import (
	"container/heap"
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// Plan is the cheapest rule choice per kind for one target basis.
type Plan struct {
	basis gate.Set
	cost  map[gate.Kind]float64
	rule  map[gate.Kind]*Rule
}

type costEntry struct {
	kind gate.Kind
	cost float64
}

type costHeap []costEntry

func (h costHeap) Len() int { return len(h) }
func (h costHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].kind < h[j].kind
}
func (h costHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *costHeap) Push(x any)   { *h = append(*h, x.(costEntry)) }
func (h *costHeap) Pop() any {
	old := *h
	e := old[len(old)-1]
	*h = old[:len(old)-1]
	return e
}

// Search computes the translation plan for basis. Kinds in the basis cost
// nothing; any other kind costs the minimum over its rules of the rule cost
// plus the costs of the rule's gates. A rule is only considered once every
// kind it uses has a final cost, so the chosen rules never form a cycle.
// Equal costs keep the rule registered first.
func (l *EquivalenceLibrary) Search(basis gate.Set) *Plan {
	p := &Plan{
		basis: basis,
		cost:  make(map[gate.Kind]float64),
		rule:  make(map[gate.Kind]*Rule),
	}
	h := &costHeap{}
	for _, k := range basis.Sorted() {
		p.cost[k] = 0
		heap.Push(h, costEntry{kind: k})
	}

	pending := make(map[*Rule]int, len(l.rules))
	users := make(map[gate.Kind][]*Rule)
	for _, r := range l.rules {
		kids := r.children()
		pending[r] = len(kids)
		for _, k := range kids {
			users[k] = append(users[k], r)
		}
		if len(kids) == 0 {
			p.relax(h, r)
		}
	}

	done := make(map[gate.Kind]bool)
	for h.Len() > 0 {
		e := heap.Pop(h).(costEntry)
		if done[e.kind] || e.cost != p.cost[e.kind] {
			continue
		}
		done[e.kind] = true
		for _, r := range users[e.kind] {
			pending[r]--
			if pending[r] == 0 && !done[r.Source] {
				p.relax(h, r)
			}
		}
	}
	return p
}

func (p *Plan) relax(h *costHeap, r *Rule) {
	c := r.Cost
	for _, t := range r.Body {
		c += p.cost[t.Kind]
	}
	cur, ok := p.cost[r.Source]
	switch {
	case !ok, c < cur:
	case c == cur && p.rule[r.Source] != nil && r.index < p.rule[r.Source].index:
	default:
		return
	}
	p.cost[r.Source] = c
	p.rule[r.Source] = r
	heap.Push(h, costEntry{kind: r.Source, cost: c})
}

// Basis returns the plan's target basis.
func (p *Plan) Basis() gate.Set { return p.basis }

// Cost returns the expansion cost of kind and whether it can reach the
// basis at all.
func (p *Plan) Cost(k gate.Kind) (float64, bool) {
	if k.IsDirective() {
		return 0, true
	}
	c, ok := p.cost[k]
	return c, ok
}

// Rule returns the rule chosen for kind, or nil for kinds in the basis and
// unreachable kinds.
func (p *Plan) Rule(k gate.Kind) *Rule { return p.rule[k] }

// Step is one gate of an expansion on the source operation's operands.
type Step struct {
	Op     gate.Op
	Qubits []int
}

// Expand rewrites op, applied to its operands 0..n-1, into basis gates.
func (p *Plan) Expand(op gate.Op) ([]Step, error) {
	qubits := make([]int, op.NumQubits())
	for i := range qubits {
		qubits[i] = i
	}
	return p.expand(op, qubits, nil)
}

func (p *Plan) expand(op gate.Op, qubits []int, out []Step) ([]Step, error) {
	if p.basis.Allows(op.Kind) {
		return append(out, Step{Op: op, Qubits: qubits}), nil
	}
	r := p.rule[op.Kind]
	if r == nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoTranslationPath, op.Name(), p.basis)
	}
	var err error
	for _, t := range r.Body {
		local := make([]int, len(t.Qubits))
		for i, q := range t.Qubits {
			local[i] = qubits[q]
		}
		if out, err = p.expand(t.op(op.Params), local, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
