package circuit

import (
	"fmt"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// SubstituteNodeWithSubgraph replaces node id with the contents of rep.
//
// Qubit i of rep stands for the node's i-th qubit operand and clbit j for
// its j-th clbit operand, so rep must have exactly as many qubits and
// clbits as the node has operands. The replacement's operations are spliced
// into the node's position on every wire in rep's topological order; every
// inserted operation inherits the node's condition. rep's global phase is
// added to the graph's. Inserted operations inherit the node's insertion
// sequence, so topological tie breaks are unchanged. The returned map takes
// rep node ids to the new ids.
func (d *DAG) SubstituteNodeWithSubgraph(id NodeID, rep *DAG) (map[NodeID]NodeID, error) {
	n, err := d.mustNode(id)
	if err != nil {
		return nil, err
	}
	if rep.numQubits != len(n.Qubits) || rep.numClbits != len(n.Clbits) {
		return nil, fmt.Errorf("%w: replacement has %d qubits and %d clbits, node %s has %d and %d",
			ErrShapeMismatch, rep.numQubits, rep.numClbits, n.Op.Name(), len(n.Qubits), len(n.Clbits))
	}

	order := rep.Nodes()
	specs := make([]struct {
		qubits []int
		clbits []int
		cond   *Condition
	}, len(order))
	for i, rid := range order {
		rn := rep.nodes[rid]
		if rn.Condition != nil && n.Condition != nil {
			return nil, fmt.Errorf("%w: conditioned replacement for conditioned node %d", ErrShapeMismatch, id)
		}
		specs[i].qubits = make([]int, len(rn.Qubits))
		for j, q := range rn.Qubits {
			specs[i].qubits[j] = n.Qubits[q]
		}
		specs[i].clbits = make([]int, len(rn.Clbits))
		for j, c := range rn.Clbits {
			specs[i].clbits[j] = n.Clbits[c]
		}
		switch {
		case rn.Condition != nil:
			specs[i].cond = &Condition{Clbit: n.Clbits[rn.Condition.Clbit], Value: rn.Condition.Value}
		case n.Condition != nil:
			specs[i].cond = n.Condition
		}
	}

	cursor := make(map[Wire]NodeID, len(n.wires))
	for i, w := range n.wires {
		cursor[w] = n.prev[i]
	}
	d.unlink(n)
	d.nodes[id] = nil
	d.live--

	mapping := make(map[NodeID]NodeID, len(order))
	for i, rid := range order {
		nn, err := d.newNode(rep.nodes[rid].Op, specs[i].qubits, specs[i].clbits, specs[i].cond)
		if err != nil {
			// Operands were remapped from a validated footprint, so this only
			// fires for a corrupt replacement.
			return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		nn.seq = n.seq
		for _, w := range nn.wires {
			d.linkAfter(nn, w, cursor[w])
			cursor[w] = nn.ID
		}
		mapping[rid] = nn.ID
	}
	d.globalPhase = normalizePhase(d.globalPhase + rep.globalPhase)
	d.revision++
	return mapping, nil
}

// CollapseNodes contracts a convex set of unconditioned gates into a single
// node carrying op. qubits must be exactly the union of the set's qubits;
// they become the new node's operands in the given order. The new node
// takes the place of the set on each of those wires.
func (d *DAG) CollapseNodes(ids []NodeID, op gate.Op, qubits []int) (NodeID, error) {
	if len(ids) == 0 {
		return None, fmt.Errorf("%w: collapse of empty node set", ErrStructural)
	}
	if err := op.Validate(len(qubits), 0); err != nil {
		return None, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	members := make(map[NodeID]bool, len(ids))
	used := make(map[int]bool)
	var seq uint64
	for i, id := range ids {
		n, err := d.mustNode(id)
		if err != nil {
			return None, err
		}
		if !n.IsGate() || len(n.Clbits) > 0 {
			return None, fmt.Errorf("%w: node %d (%s) cannot be collapsed", ErrStructural, id, n.Op.Name())
		}
		if members[id] {
			return None, fmt.Errorf("%w: node %d listed twice", ErrStructural, id)
		}
		members[id] = true
		for _, q := range n.Qubits {
			used[q] = true
		}
		if i == 0 || n.seq < seq {
			seq = n.seq
		}
	}
	if len(used) != len(qubits) {
		return None, fmt.Errorf("%w: collapse qubits %v do not match node qubits", ErrStructural, qubits)
	}
	for _, q := range qubits {
		if !used[q] {
			return None, fmt.Errorf("%w: collapse qubit %d not used by nodes", ErrStructural, q)
		}
	}
	if !d.convex(members) {
		return None, fmt.Errorf("%w: node set is not convex", ErrStructural)
	}

	// The set is contiguous on each of its wires; find the outside
	// neighbour before the first member.
	before := make(map[Wire]NodeID, len(qubits))
	for _, q := range qubits {
		w := Qubit(q)
		for _, id := range ids {
			n := d.nodes[id]
			i := n.wireIndex(w)
			if i >= 0 && !members[n.prev[i]] {
				before[w] = n.prev[i]
				break
			}
		}
	}
	for _, id := range ids {
		d.unlink(d.nodes[id])
		d.nodes[id] = nil
		d.live--
	}

	nn, err := d.newNode(op, qubits, nil, nil)
	if err != nil {
		return None, err
	}
	nn.seq = seq
	for _, w := range nn.wires {
		d.linkAfter(nn, w, before[w])
	}
	d.revision++
	return nn.ID, nil
}

// IsConvex reports whether the live nodes ids form a convex set: no path
// leaves the set and re-enters it. Unknown ids make the set non-convex.
func (d *DAG) IsConvex(ids []NodeID) bool {
	members := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		if d.Node(id) == nil {
			return false
		}
		members[id] = true
	}
	return d.convex(members)
}

// convex reports whether no path leaves the set and re-enters it.
func (d *DAG) convex(members map[NodeID]bool) bool {
	var stack []NodeID
	visited := make(map[NodeID]bool)
	for id := range members {
		for _, s := range d.nodes[id].next {
			if s != None && !members[s] && !visited[s] {
				visited[s] = true
				stack = append(stack, s)
			}
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range d.nodes[id].next {
			if s == None || visited[s] {
				continue
			}
			if members[s] {
				return false
			}
			visited[s] = true
			stack = append(stack, s)
		}
	}
	return true
}

// reachesIndirectly reports whether to is reachable from from without using the
// direct wire edges from -> to.
func (d *DAG) reachesIndirectly(from, to NodeID) bool {
	var stack []NodeID
	visited := map[NodeID]bool{}
	for _, s := range d.nodes[from].next {
		if s != None && s != to && !visited[s] {
			visited[s] = true
			stack = append(stack, s)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range d.nodes[id].next {
			if s == to {
				return true
			}
			if s != None && !visited[s] {
				visited[s] = true
				stack = append(stack, s)
			}
		}
	}
	return false
}

// SwapAdjacent exchanges a and b, where a directly precedes b on every
// wire they share. It does not check that the two operations commute.
func (d *DAG) SwapAdjacent(a, b NodeID) error {
	na, err := d.mustNode(a)
	if err != nil {
		return err
	}
	nb, err := d.mustNode(b)
	if err != nil {
		return err
	}
	var shared []Wire
	for i, w := range na.wires {
		if !nb.Touches(w) {
			continue
		}
		if na.next[i] != b {
			return fmt.Errorf("%w: nodes %d and %d are not adjacent on %s", ErrStructural, a, b, w)
		}
		shared = append(shared, w)
	}
	if len(shared) == 0 {
		return fmt.Errorf("%w: nodes %d and %d share no wire", ErrStructural, a, b)
	}
	if d.reachesIndirectly(a, b) {
		return fmt.Errorf("%w: swapping %d and %d would create a cycle", ErrStructural, a, b)
	}
	for _, w := range shared {
		ia, ib := na.wireIndex(w), nb.wireIndex(w)
		p, q := na.prev[ia], nb.next[ib]
		s, _ := d.slot(w)
		// p a b q -> p b a q
		if p == None {
			d.ends[s].head = b
		} else {
			pn := d.nodes[p]
			pn.next[pn.wireIndex(w)] = b
		}
		if q == None {
			d.ends[s].tail = a
		} else {
			qn := d.nodes[q]
			qn.prev[qn.wireIndex(w)] = a
		}
		nb.prev[ib], nb.next[ib] = p, a
		na.prev[ia], na.next[ia] = b, q
	}
	d.revision++
	return nil
}
