package circuit

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// ErrConcurrentMutation is reported by a TopoIterator whose graph changed
// while it was being consumed.
var ErrConcurrentMutation = errors.New("graph mutated during iteration")

type seqHeap struct {
	ids   []NodeID
	nodes []*Node
}

func (h *seqHeap) Len() int { return len(h.ids) }
func (h *seqHeap) Less(i, j int) bool {
	a, b := h.nodes[h.ids[i]], h.nodes[h.ids[j]]
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.ID < b.ID
}
func (h *seqHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *seqHeap) Push(x any)    { h.ids = append(h.ids, x.(NodeID)) }
func (h *seqHeap) Pop() any {
	old := h.ids
	id := old[len(old)-1]
	h.ids = old[:len(old)-1]
	return id
}

// TopoIterator yields node ids in a topological order. Among nodes that are
// ready at the same time the earliest inserted comes first. An iterator is
// single use.
type TopoIterator struct {
	d        *DAG
	revision uint64
	indeg    map[NodeID]int
	ready    *seqHeap
	emitted  int
	err      error
}

// TopologicalOrder returns a fresh iterator over the graph.
func (d *DAG) TopologicalOrder() *TopoIterator {
	it := &TopoIterator{
		d:        d,
		revision: d.revision,
		indeg:    make(map[NodeID]int, d.live),
		ready:    &seqHeap{nodes: d.nodes},
	}
	for _, n := range d.nodes {
		if n == nil {
			continue
		}
		deg := 0
		for _, p := range n.prev {
			if p != None {
				deg++
			}
		}
		if deg == 0 {
			it.ready.ids = append(it.ready.ids, n.ID)
		} else {
			it.indeg[n.ID] = deg
		}
	}
	heap.Init(it.ready)
	return it
}

// Next returns the next node id. It returns false when the order is
// exhausted or the graph changed; check Err to tell the two apart.
func (it *TopoIterator) Next() (NodeID, bool) {
	if it.err != nil {
		return None, false
	}
	if it.d.revision != it.revision {
		it.err = ErrConcurrentMutation
		return None, false
	}
	if it.ready.Len() == 0 {
		if it.emitted != it.d.live {
			it.err = fmt.Errorf("%w: cycle detected after %d of %d nodes", ErrStructural, it.emitted, it.d.live)
		}
		return None, false
	}
	id := heap.Pop(it.ready).(NodeID)
	for _, s := range it.d.nodes[id].next {
		if s == None {
			continue
		}
		it.indeg[s]--
		if it.indeg[s] == 0 {
			delete(it.indeg, s)
			heap.Push(it.ready, s)
		}
	}
	it.emitted++
	return id, true
}

// Err returns the error that stopped iteration, if any.
func (it *TopoIterator) Err() error { return it.err }

// Nodes returns the live node ids in topological order. It panics if the
// graph is cyclic, which Validate reports as an error.
func (d *DAG) Nodes() []NodeID {
	order, err := d.topoSlice()
	if err != nil {
		panic(err)
	}
	return order
}

func (d *DAG) topoSlice() ([]NodeID, error) {
	it := d.TopologicalOrder()
	out := make([]NodeID, 0, d.live)
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out, it.Err()
}

// Validate checks wire consistency and acyclicity.
func (d *DAG) Validate() error {
	count := 0
	for _, n := range d.nodes {
		if n == nil {
			continue
		}
		count++
		for i, w := range n.wires {
			if p := n.prev[i]; p != None {
				pn := d.Node(p)
				if pn == nil || !pn.Touches(w) || pn.next[pn.wireIndex(w)] != n.ID {
					return fmt.Errorf("%w: broken link %d <- %d on %s", ErrStructural, p, n.ID, w)
				}
			}
			if q := n.next[i]; q != None {
				qn := d.Node(q)
				if qn == nil || !qn.Touches(w) || qn.prev[qn.wireIndex(w)] != n.ID {
					return fmt.Errorf("%w: broken link %d -> %d on %s", ErrStructural, n.ID, q, w)
				}
			}
		}
	}
	if count != d.live {
		return fmt.Errorf("%w: %d live nodes, counter says %d", ErrStructural, count, d.live)
	}
	for _, w := range d.Wires() {
		s, _ := d.slot(w)
		size := 0
		prev := None
		for id := d.ends[s].head; id != None; {
			n := d.Node(id)
			if n == nil {
				return fmt.Errorf("%w: dangling node %d on %s", ErrStructural, id, w)
			}
			i := n.wireIndex(w)
			if i < 0 || n.prev[i] != prev {
				return fmt.Errorf("%w: wire %s is inconsistent at node %d", ErrStructural, w, id)
			}
			size++
			if size > count {
				return fmt.Errorf("%w: wire %s loops", ErrStructural, w)
			}
			prev = id
			id = n.next[i]
		}
		if prev != d.ends[s].tail || size != d.ends[s].size {
			return fmt.Errorf("%w: wire %s tail or size mismatch", ErrStructural, w)
		}
	}
	_, err := d.topoSlice()
	return err
}

// Depth returns the length of the longest path counting operations.
// Barriers do not contribute.
func (d *DAG) Depth() int {
	level := make(map[NodeID]int, d.live)
	best := 0
	for _, id := range d.Nodes() {
		n := d.nodes[id]
		l := 0
		for _, p := range n.prev {
			if p != None && level[p] > l {
				l = level[p]
			}
		}
		if n.Op.Kind != gate.Barrier {
			l++
		}
		level[id] = l
		if l > best {
			best = l
		}
	}
	return best
}

// CountOps returns the number of live nodes per kind.
func (d *DAG) CountOps() map[gate.Kind]int {
	out := make(map[gate.Kind]int)
	for _, n := range d.nodes {
		if n != nil {
			out[n.Op.Kind]++
		}
	}
	return out
}

// TwoQubitCount returns the number of unitary operations on two or more
// qubits.
func (d *DAG) TwoQubitCount() int {
	c := 0
	for _, n := range d.nodes {
		if n != nil && !n.Op.IsDirective() && len(n.Qubits) >= 2 {
			c++
		}
	}
	return c
}

// GateCount returns the number of non-directive operations.
func (d *DAG) GateCount() int {
	c := 0
	for _, n := range d.nodes {
		if n != nil && !n.Op.IsDirective() {
			c++
		}
	}
	return c
}
