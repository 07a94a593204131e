// Package circuit provides the mutable circuit graph: an arena of operation
// nodes addressed by stable integer ids, with one ordered chain per qubit or
// clbit wire.
//
// Edges are never stored as pointers. Each node keeps, for every wire it
// touches, the id of its predecessor and successor on that wire, and the
// graph keeps the head and tail of every wire. Removed nodes leave a
// tombstone; ids are never reused.
package circuit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

var (
	// ErrStructural is returned for malformed graphs and invalid operands.
	ErrStructural = errors.New("structural error")

	// ErrShapeMismatch is returned when a replacement does not match the
	// operand footprint of the node it replaces.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNodeNotFound is returned for ids that are out of range or removed.
	ErrNodeNotFound = fmt.Errorf("%w: node not found", ErrStructural)
)

// NodeID identifies a node for the lifetime of a graph.
type NodeID int

// None is the absent node, used at wire ends.
const None NodeID = -1

// Wire names one qubit or clbit.
type Wire struct {
	Clbit bool
	Index int
}

// Qubit returns the wire of qubit i.
func Qubit(i int) Wire { return Wire{Index: i} }

// Clbit returns the wire of clbit i.
func Clbit(i int) Wire { return Wire{Clbit: true, Index: i} }

func (w Wire) String() string {
	if w.Clbit {
		return fmt.Sprintf("c%d", w.Index)
	}
	return fmt.Sprintf("q%d", w.Index)
}

// Condition gates an operation on the value of one clbit.
type Condition struct {
	Clbit int `msgpack:"clbit"`
	Value int `msgpack:"value"`
}

// Node is one operation in the graph. Nodes returned by the graph must be
// treated as read-only.
type Node struct {
	ID        NodeID
	Op        gate.Op
	Qubits    []int
	Clbits    []int
	Condition *Condition

	seq   uint64
	wires []Wire
	prev  []NodeID
	next  []NodeID
}

// Wires returns every wire the node occupies: its qubits, its clbits, then
// the condition clbit if it is not already an operand.
func (n *Node) Wires() []Wire {
	out := make([]Wire, len(n.wires))
	copy(out, n.wires)
	return out
}

// Conditioned reports whether the node carries a classical condition.
func (n *Node) Conditioned() bool { return n.Condition != nil }

// IsGate reports whether the node is an unconditioned unitary operation.
func (n *Node) IsGate() bool {
	return !n.Op.IsDirective() && n.Condition == nil
}

// Seq returns the node's insertion sequence number, the topological
// tie-breaker.
func (n *Node) Seq() uint64 { return n.seq }

func (n *Node) wireIndex(w Wire) int {
	for i, x := range n.wires {
		if x == w {
			return i
		}
	}
	return -1
}

// Touches reports whether the node occupies w.
func (n *Node) Touches(w Wire) bool { return n.wireIndex(w) >= 0 }

func (n *Node) String() string {
	s := n.Op.String() + " q" + fmt.Sprint(n.Qubits)
	if len(n.Clbits) > 0 {
		s += " c" + fmt.Sprint(n.Clbits)
	}
	if n.Condition != nil {
		s += fmt.Sprintf(" if c%d==%d", n.Condition.Clbit, n.Condition.Value)
	}
	return s
}

type wireEnds struct {
	head NodeID
	tail NodeID
	size int
}

// DAG is the circuit graph. It is not safe for concurrent mutation; any
// number of goroutines may read it while no goroutine mutates it.
type DAG struct {
	numQubits int
	numClbits int

	nodes []*Node
	ends  []wireEnds
	live  int

	seq         uint64
	revision    uint64
	globalPhase float64
}

// New returns an empty graph over the given register sizes.
func New(numQubits, numClbits int) *DAG {
	if numQubits < 0 || numClbits < 0 {
		panic("circuit: negative register size")
	}
	d := &DAG{
		numQubits: numQubits,
		numClbits: numClbits,
		ends:      make([]wireEnds, numQubits+numClbits),
	}
	for i := range d.ends {
		d.ends[i] = wireEnds{head: None, tail: None}
	}
	return d
}

// NumQubits returns the qubit register size.
func (d *DAG) NumQubits() int { return d.numQubits }

// NumClbits returns the clbit register size.
func (d *DAG) NumClbits() int { return d.numClbits }

// Len returns the number of live nodes.
func (d *DAG) Len() int { return d.live }

// Revision returns the mutation counter.
func (d *DAG) Revision() uint64 { return d.revision }

// GlobalPhase returns the graph's global phase in radians.
func (d *DAG) GlobalPhase() float64 { return d.globalPhase }

// SetGlobalPhase replaces the global phase, normalized to (-π, π].
func (d *DAG) SetGlobalPhase(phase float64) {
	p := normalizePhase(phase)
	if p != d.globalPhase {
		d.globalPhase = p
		d.revision++
	}
}

// AddGlobalPhase adds to the global phase.
func (d *DAG) AddGlobalPhase(delta float64) {
	if delta != 0 {
		d.SetGlobalPhase(d.globalPhase + delta)
	}
}

func normalizePhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p <= -math.Pi {
		p += 2 * math.Pi
	} else if p > math.Pi {
		p -= 2 * math.Pi
	}
	return p
}

// Wires returns all wires: qubits first, then clbits.
func (d *DAG) Wires() []Wire {
	out := make([]Wire, 0, len(d.ends))
	for i := 0; i < d.numQubits; i++ {
		out = append(out, Qubit(i))
	}
	for i := 0; i < d.numClbits; i++ {
		out = append(out, Clbit(i))
	}
	return out
}

func (d *DAG) slot(w Wire) (int, bool) {
	if w.Index < 0 {
		return 0, false
	}
	if w.Clbit {
		if w.Index >= d.numClbits {
			return 0, false
		}
		return d.numQubits + w.Index, true
	}
	if w.Index >= d.numQubits {
		return 0, false
	}
	return w.Index, true
}

// Node returns the live node with the given id, or nil.
func (d *DAG) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

func (d *DAG) mustNode(id NodeID) (*Node, error) {
	n := d.Node(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n, nil
}

// AddNode appends an operation at the end of every wire it touches.
func (d *DAG) AddNode(op gate.Op, qubits, clbits []int, cond *Condition) (NodeID, error) {
	n, err := d.newNode(op, qubits, clbits, cond)
	if err != nil {
		return None, err
	}
	for i, w := range n.wires {
		s, _ := d.slot(w)
		n.prev[i] = d.ends[s].tail
		if n.prev[i] == None {
			d.ends[s].head = n.ID
		} else {
			p := d.nodes[n.prev[i]]
			p.next[p.wireIndex(w)] = n.ID
		}
		d.ends[s].tail = n.ID
		d.ends[s].size++
	}
	d.revision++
	return n.ID, nil
}

// Append adds an unconditioned operation without clbits.
func (d *DAG) Append(op gate.Op, qubits ...int) (NodeID, error) {
	return d.AddNode(op, qubits, nil, nil)
}

// MustAppend is Append for graphs built from literals.
func (d *DAG) MustAppend(op gate.Op, qubits ...int) NodeID {
	id, err := d.Append(op, qubits...)
	if err != nil {
		panic(err)
	}
	return id
}

// newNode validates operands and allocates an unlinked node.
func (d *DAG) newNode(op gate.Op, qubits, clbits []int, cond *Condition) (*Node, error) {
	if err := op.Validate(len(qubits), len(clbits)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	wires := make([]Wire, 0, len(qubits)+len(clbits)+1)
	seen := make(map[Wire]bool, cap(wires))
	add := func(w Wire) error {
		if _, ok := d.slot(w); !ok {
			return fmt.Errorf("%w: %s out of range for %s", ErrStructural, w, op.Name())
		}
		if seen[w] {
			return fmt.Errorf("%w: duplicate operand %s for %s", ErrStructural, w, op.Name())
		}
		seen[w] = true
		wires = append(wires, w)
		return nil
	}
	for _, q := range qubits {
		if err := add(Qubit(q)); err != nil {
			return nil, err
		}
	}
	for _, c := range clbits {
		if err := add(Clbit(c)); err != nil {
			return nil, err
		}
	}
	var condCopy *Condition
	if cond != nil {
		if cond.Value != 0 && cond.Value != 1 {
			return nil, fmt.Errorf("%w: condition value %d is not a bit", ErrStructural, cond.Value)
		}
		w := Clbit(cond.Clbit)
		if _, ok := d.slot(w); !ok {
			return nil, fmt.Errorf("%w: condition %s out of range", ErrStructural, w)
		}
		if !seen[w] {
			wires = append(wires, w)
		}
		c := *cond
		condCopy = &c
	}

	n := &Node{
		ID:        NodeID(len(d.nodes)),
		Op:        op,
		Qubits:    append([]int(nil), qubits...),
		Clbits:    append([]int(nil), clbits...),
		Condition: condCopy,
		seq:       d.seq,
		wires:     wires,
		prev:      make([]NodeID, len(wires)),
		next:      make([]NodeID, len(wires)),
	}
	for i := range n.next {
		n.prev[i], n.next[i] = None, None
	}
	d.seq++
	d.nodes = append(d.nodes, n)
	d.live++
	return n, nil
}

// unlink splices n out of every wire, joining its neighbours.
func (d *DAG) unlink(n *Node) {
	for i, w := range n.wires {
		s, _ := d.slot(w)
		p, q := n.prev[i], n.next[i]
		if p == None {
			d.ends[s].head = q
		} else {
			pn := d.nodes[p]
			pn.next[pn.wireIndex(w)] = q
		}
		if q == None {
			d.ends[s].tail = p
		} else {
			qn := d.nodes[q]
			qn.prev[qn.wireIndex(w)] = p
		}
		d.ends[s].size--
		n.prev[i], n.next[i] = None, None
	}
}

// linkAfter inserts n on wire w directly after node after (None inserts at
// the head).
func (d *DAG) linkAfter(n *Node, w Wire, after NodeID) {
	s, _ := d.slot(w)
	i := n.wireIndex(w)
	var next NodeID
	if after == None {
		next = d.ends[s].head
		d.ends[s].head = n.ID
	} else {
		an := d.nodes[after]
		j := an.wireIndex(w)
		next = an.next[j]
		an.next[j] = n.ID
	}
	if next == None {
		d.ends[s].tail = n.ID
	} else {
		nn := d.nodes[next]
		nn.prev[nn.wireIndex(w)] = n.ID
	}
	n.prev[i], n.next[i] = after, next
	d.ends[s].size++
}

// RemoveNode deletes a node, joining its predecessor and successor on each
// wire.
func (d *DAG) RemoveNode(id NodeID) error {
	n, err := d.mustNode(id)
	if err != nil {
		return err
	}
	d.unlink(n)
	d.nodes[id] = nil
	d.live--
	d.revision++
	return nil
}

// Predecessor returns the node before id on w.
func (d *DAG) Predecessor(id NodeID, w Wire) (NodeID, bool) {
	n := d.Node(id)
	if n == nil {
		return None, false
	}
	i := n.wireIndex(w)
	if i < 0 || n.prev[i] == None {
		return None, false
	}
	return n.prev[i], true
}

// Successor returns the node after id on w.
func (d *DAG) Successor(id NodeID, w Wire) (NodeID, bool) {
	n := d.Node(id)
	if n == nil {
		return None, false
	}
	i := n.wireIndex(w)
	if i < 0 || n.next[i] == None {
		return None, false
	}
	return n.next[i], true
}

// Predecessors returns the distinct direct predecessors of id, sorted.
func (d *DAG) Predecessors(id NodeID) []NodeID {
	n := d.Node(id)
	if n == nil {
		return nil
	}
	return uniqueIDs(n.prev)
}

// Successors returns the distinct direct successors of id, sorted.
func (d *DAG) Successors(id NodeID) []NodeID {
	n := d.Node(id)
	if n == nil {
		return nil
	}
	return uniqueIDs(n.next)
}

func uniqueIDs(ids []NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if id != None {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	j := 0
	for i, id := range out {
		if i == 0 || id != out[j-1] {
			out[j] = id
			j++
		}
	}
	return out[:j]
}

// WireNodes returns the nodes on w in wire order.
func (d *DAG) WireNodes(w Wire) []NodeID {
	s, ok := d.slot(w)
	if !ok {
		return nil
	}
	out := make([]NodeID, 0, d.ends[s].size)
	for id := d.ends[s].head; id != None; {
		out = append(out, id)
		n := d.nodes[id]
		id = n.next[n.wireIndex(w)]
	}
	return out
}

// WireLen returns the number of nodes on w.
func (d *DAG) WireLen(w Wire) int {
	s, ok := d.slot(w)
	if !ok {
		return 0
	}
	return d.ends[s].size
}

// First returns the head of w.
func (d *DAG) First(w Wire) (NodeID, bool) {
	s, ok := d.slot(w)
	if !ok || d.ends[s].head == None {
		return None, false
	}
	return d.ends[s].head, true
}

// Clone returns a deep copy with identical ids, revision and phase.
func (d *DAG) Clone() *DAG {
	c := &DAG{
		numQubits:   d.numQubits,
		numClbits:   d.numClbits,
		nodes:       make([]*Node, len(d.nodes)),
		ends:        append([]wireEnds(nil), d.ends...),
		live:        d.live,
		seq:         d.seq,
		revision:    d.revision,
		globalPhase: d.globalPhase,
	}
	for i, n := range d.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Op.Params = append([]float64(nil), n.Op.Params...)
		cp.Qubits = append([]int(nil), n.Qubits...)
		cp.Clbits = append([]int(nil), n.Clbits...)
		if n.Condition != nil {
			cond := *n.Condition
			cp.Condition = &cond
		}
		cp.wires = append([]Wire(nil), n.wires...)
		cp.prev = append([]NodeID(nil), n.prev...)
		cp.next = append([]NodeID(nil), n.next...)
		c.nodes[i] = &cp
	}
	return c
}
