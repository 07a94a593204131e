// Package consolidate collects runs of gates confined to one or two qubits
// into blocks and computes the operator each block implements.
package consolidate

import (
	"context"
	"fmt"
	"math/cmplx"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

const (
	DefaultMaxQubits = 2
	DefaultTolerance = 1e-9
)

// Options configures block discovery.
type Options struct {
	// MaxQubits is the widest block, 1 or 2.
	MaxQubits int
	// Absorb lets blocks grow past wider gates they commute with. It needs
	// the commutation analysis of the graph.
	Absorb bool
	// Tolerance bounds the unitarity deviation of a block operator.
	Tolerance float64
	// Basis is the target gate set. A block that is a single gate of the
	// basis is not reported. A nil basis skips nothing.
	Basis gate.Set
	// Workers bounds the goroutines composing block operators; <= 0 means
	// GOMAXPROCS.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.MaxQubits <= 0 {
		o.MaxQubits = DefaultMaxQubits
	}
	if o.MaxQubits > 2 {
		o.MaxQubits = 2
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Hoist moves Node in front of the nodes in Over, which it commutes with.
// Over is in topological order; the moves are made last to first.
type Hoist struct {
	Node circuit.NodeID   `json:"node"`
	Over []circuit.NodeID `json:"over"`
}

// Block is a convex group of gates on at most two qubits.
type Block struct {
	ID int `json:"id"`
	// Qubits are the block's qubits in ascending order. Qubits[0] is the
	// most significant bit of Unitary.
	Qubits []int `json:"qubits"`
	// Nodes are the member gates in topological order, Kinds their kinds.
	Nodes  []circuit.NodeID `json:"nodes"`
	Kinds  []gate.Kind      `json:"kinds"`
	Hoists []Hoist          `json:"hoists,omitempty"`
	// Unitary has determinant one; the block operator is e^{i·Phase}·Unitary.
	Unitary linalg.Matrix `json:"-"`
	Phase   float64       `json:"phase"`

	twoQubit int
}

// Operator returns the operator the block implements, phase included.
func (b *Block) Operator() linalg.Matrix {
	return b.Unitary.Scale(cmplx.Exp(complex(0, b.Phase)))
}

// GateCount returns the number of member gates.
func (b *Block) GateCount() int { return len(b.Nodes) }

// TwoQubitCount returns the number of two-qubit member gates.
func (b *Block) TwoQubitCount() int { return b.twoQubit }

// InBasis reports whether every member gate is in basis.
func (b *Block) InBasis(basis gate.Set) bool {
	for _, k := range b.Kinds {
		if !basis.Allows(k) {
			return false
		}
	}
	return true
}

func (b *Block) String() string {
	return fmt.Sprintf("block %d q%v: %d gates", b.ID, b.Qubits, len(b.Nodes))
}

// Unstable describes a block dropped because its operator was not unitary
// within tolerance.
type Unstable struct {
	Qubits    []int
	Nodes     []circuit.NodeID
	Deviation float64
}

// Result lists the blocks of one graph revision in discovery order.
type Result struct {
	Revision uint64
	Blocks   []*Block
	Unstable []Unstable
}

// Find discovers the blocks of g. comm is required when opts.Absorb is set
// and ignored otherwise. The graph must not be mutated until Find returns.
func Find(ctx context.Context, g *circuit.DAG, comm *commutation.Result, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if opts.Absorb && comm == nil {
		return nil, fmt.Errorf("consolidate: absorption needs the commutation analysis")
	}
	if comm != nil && comm.Revision != g.Revision() {
		return nil, fmt.Errorf("consolidate: commutation analysis of revision %d is stale at %d", comm.Revision, g.Revision())
	}

	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}
	f := &finder{
		g:     g,
		opts:  opts,
		comm:  comm,
		pos:   make(map[circuit.NodeID]int, len(order)),
		owned: make(map[circuit.NodeID]bool, len(order)),
	}
	for i, id := range order {
		f.pos[id] = i
	}

	var drafts []*draft
	for _, id := range order {
		n := g.Node(id)
		if f.owned[id] || !f.eligible(n) {
			continue
		}
		d := f.grow(n)
		if len(d.members) == 1 && opts.Basis != nil && opts.Basis.Has(n.Op.Kind) {
			continue
		}
		drafts = append(drafts, d)
	}

	blocks := make([]*Block, len(drafts))
	deviations := make([]float64, len(drafts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, d := range drafts {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, dev, err := f.compose(d)
			if err != nil {
				return err
			}
			blocks[i], deviations[i] = b, dev
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Revision: g.Revision()}
	for i, b := range blocks {
		if deviations[i] > opts.Tolerance {
			res.Unstable = append(res.Unstable, Unstable{Qubits: b.Qubits, Nodes: b.Nodes, Deviation: deviations[i]})
			continue
		}
		b.ID = len(res.Blocks)
		res.Blocks = append(res.Blocks, b)
	}
	return res, nil
}

func topoOrder(g *circuit.DAG) ([]circuit.NodeID, error) {
	it := g.TopologicalOrder()
	out := make([]circuit.NodeID, 0, g.Len())
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out, it.Err()
}

type finder struct {
	g     *circuit.DAG
	opts  Options
	comm  *commutation.Result
	pos   map[circuit.NodeID]int
	owned map[circuit.NodeID]bool
}

// draft is a block under construction. For each block qubit, tail is the
// last member on the wire and cursor the last node examined on it; the
// nodes between them are the skipped wider gates.
type draft struct {
	qubits  []int
	members map[circuit.NodeID]bool
	cursor  map[int]circuit.NodeID
	skipped map[int][]circuit.NodeID
	hoists  []Hoist
}

func (d *draft) has(q int) bool {
	_, ok := d.cursor[q]
	return ok
}

func (d *draft) skipping() bool {
	for _, s := range d.skipped {
		if len(s) > 0 {
			return true
		}
	}
	return false
}

// eligible reports whether n can be a block member.
func (f *finder) eligible(n *circuit.Node) bool {
	if !n.IsGate() || len(n.Clbits) > 0 {
		return false
	}
	k := len(n.Qubits)
	return k >= 1 && k <= f.opts.MaxQubits && n.Op.NumQubits() == k
}

// crossable reports whether a block may grow past n. Only gates that can
// never be members qualify.
func (f *finder) crossable(n *circuit.Node) bool {
	return f.opts.Absorb && n.IsGate() && len(n.Clbits) == 0 && len(n.Qubits) > f.opts.MaxQubits
}

func (f *finder) add(d *draft, n *circuit.Node) {
	d.members[n.ID] = true
	f.owned[n.ID] = true
	for _, q := range n.Qubits {
		if !d.has(q) {
			d.qubits = append(d.qubits, q)
		}
		d.cursor[q] = n.ID
	}
}

func (f *finder) grow(seed *circuit.Node) *draft {
	d := &draft{
		members: make(map[circuit.NodeID]bool),
		cursor:  make(map[int]circuit.NodeID),
		skipped: make(map[int][]circuit.NodeID),
	}
	f.add(d, seed)
	for progress := true; progress; {
		progress = false
		for _, q := range append([]int(nil), d.qubits...) {
			if f.step(d, q) {
				progress = true
			}
		}
	}
	return d
}

// step examines the node after the cursor of q.
func (f *finder) step(d *draft, q int) bool {
	next, ok := f.g.Successor(d.cursor[q], circuit.Qubit(q))
	if !ok || d.members[next] {
		return false
	}
	n := f.g.Node(next)
	if f.owned[next] {
		return false
	}
	if f.eligible(n) {
		return f.join(d, n)
	}
	if f.crossable(n) {
		d.skipped[q] = append(d.skipped[q], next)
		d.cursor[q] = next
		return true
	}
	return false
}

// join adds n to d if the block stays convex, within MaxQubits, and every
// skipped gate n must be hoisted over commutes with it.
func (f *finder) join(d *draft, n *circuit.Node) bool {
	var fresh []int
	for _, q := range n.Qubits {
		if !d.has(q) {
			fresh = append(fresh, q)
		}
	}
	if len(d.qubits)+len(fresh) > f.opts.MaxQubits {
		return false
	}

	var over []circuit.NodeID
	for _, q := range n.Qubits {
		if !d.has(q) {
			continue
		}
		w := circuit.Qubit(q)
		if p, _ := f.g.Predecessor(n.ID, w); p != d.cursor[q] {
			return false
		}
		for _, x := range d.skipped[q] {
			if !f.comm.SameClass(w, x, n.ID) || touchesOther(f.g.Node(x), n, q) {
				return false
			}
			over = append(over, x)
		}
	}

	if len(fresh) > 0 {
		if d.skipping() {
			return false
		}
		backfill := f.backfill(n, fresh)
		if !f.g.IsConvex(f.candidate(d, n, backfill)) {
			backfill = nil
			if !f.g.IsConvex(f.candidate(d, n, nil)) {
				return false
			}
		}
		for _, id := range backfill {
			f.add(d, f.g.Node(id))
		}
	}

	f.add(d, n)
	if len(over) > 0 {
		sort.Slice(over, func(i, j int) bool { return f.pos[over[i]] < f.pos[over[j]] })
		d.hoists = append(d.hoists, Hoist{Node: n.ID, Over: over})
	}
	return true
}

// backfill returns the unowned single-qubit gates directly preceding n on
// each of the fresh qubits.
func (f *finder) backfill(n *circuit.Node, fresh []int) []circuit.NodeID {
	var out []circuit.NodeID
	for _, q := range fresh {
		w := circuit.Qubit(q)
		cur := n.ID
		for {
			p, ok := f.g.Predecessor(cur, w)
			if !ok {
				break
			}
			pn := f.g.Node(p)
			if f.owned[p] || !f.eligible(pn) || len(pn.Qubits) != 1 {
				break
			}
			out = append(out, p)
			cur = p
		}
	}
	return out
}

func (f *finder) candidate(d *draft, n *circuit.Node, extra []circuit.NodeID) []circuit.NodeID {
	ids := make([]circuit.NodeID, 0, len(d.members)+1+len(extra))
	for id := range d.members {
		ids = append(ids, id)
	}
	ids = append(ids, n.ID)
	return append(ids, extra...)
}

// touchesOther reports whether x shares a qubit with n other than q.
func touchesOther(x, n *circuit.Node, q int) bool {
	for _, r := range n.Qubits {
		if r != q && x.Touches(circuit.Qubit(r)) {
			return true
		}
	}
	return false
}

// compose builds the block and its operator. It returns the unitarity
// deviation of the composed operator.
func (f *finder) compose(d *draft) (*Block, float64, error) {
	nodes := make([]circuit.NodeID, 0, len(d.members))
	for id := range d.members {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return f.pos[nodes[i]] < f.pos[nodes[j]] })
	qubits := append([]int(nil), d.qubits...)
	sort.Ints(qubits)

	b := &Block{
		Qubits: qubits,
		Nodes:  nodes,
		Kinds:  make([]gate.Kind, len(nodes)),
		Hoists: d.hoists,
	}
	k := len(qubits)
	op := linalg.Identity(1 << k)
	for i, id := range nodes {
		n := f.g.Node(id)
		m, err := n.Op.Operator()
		if err != nil {
			return nil, 0, fmt.Errorf("consolidate: node %d: %w", id, err)
		}
		positions := make([]int, len(n.Qubits))
		for j, q := range n.Qubits {
			positions[j] = sort.SearchInts(qubits, q)
		}
		op = linalg.ApplyLeft(op, m, positions, k)
		b.Kinds[i] = n.Op.Kind
		if len(n.Qubits) == 2 {
			b.twoQubit++
		}
	}
	dev := linalg.UnitarityError(op)
	b.Unitary, b.Phase = linalg.Special(op)
	return b, dev, nil
}
