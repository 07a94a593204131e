package commutation

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
)

// Kind is the property-cache key of a *Result.
const Kind cache.Kind = "commutation"

// Result holds the commutation runs of every wire of one graph revision.
type Result struct {
	// Revision is the graph revision the runs describe.
	Revision uint64

	wires []circuit.Wire
	slot  map[circuit.Wire]int
	runs  [][][]circuit.NodeID
	class []map[circuit.NodeID]int
}

// Wires returns the analyzed wires, qubits first.
func (r *Result) Wires() []circuit.Wire { return r.wires }

// Runs returns the runs of w in wire order. Each run is a maximal sequence
// of mutually commuting operations.
func (r *Result) Runs(w circuit.Wire) [][]circuit.NodeID {
	s, ok := r.slot[w]
	if !ok {
		return nil
	}
	return r.runs[s]
}

// NumRuns returns the number of runs on w.
func (r *Result) NumRuns(w circuit.Wire) int { return len(r.Runs(w)) }

// Class returns the run index of id on w.
func (r *Result) Class(w circuit.Wire, id circuit.NodeID) (int, bool) {
	s, ok := r.slot[w]
	if !ok {
		return 0, false
	}
	c, ok := r.class[s][id]
	return c, ok
}

// SameClass reports whether a and b belong to the same run on w.
func (r *Result) SameClass(w circuit.Wire, a, b circuit.NodeID) bool {
	ca, ok := r.Class(w, a)
	if !ok {
		return false
	}
	cb, ok := r.Class(w, b)
	return ok && ca == cb
}

// Analyze groups the operations of every wire of g into commutation runs.
// Wires are scanned by at most workers goroutines; workers <= 0 means
// GOMAXPROCS. The graph must not be mutated until Analyze returns.
func Analyze(ctx context.Context, g *circuit.DAG, c *Checker, workers int) (*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	wires := g.Wires()
	res := &Result{
		Revision: g.Revision(),
		wires:    wires,
		slot:     make(map[circuit.Wire]int, len(wires)),
		runs:     make([][][]circuit.NodeID, len(wires)),
		class:    make([]map[circuit.NodeID]int, len(wires)),
	}
	for i, w := range wires {
		res.slot[w] = i
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, w := range wires {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.runs[i], res.class[i] = scanWire(g, c, w)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if g.Revision() != res.Revision {
		return nil, fmt.Errorf("commutation: %w", circuit.ErrConcurrentMutation)
	}
	return res, nil
}

// scanWire is the single forward scan of one wire. A node extends the open
// run only if it commutes with every member; otherwise it opens a new run.
func scanWire(g *circuit.DAG, c *Checker, w circuit.Wire) ([][]circuit.NodeID, map[circuit.NodeID]int) {
	ids := g.WireNodes(w)
	class := make(map[circuit.NodeID]int, len(ids))
	var runs [][]circuit.NodeID
	var open []*circuit.Node

	for _, id := range ids {
		n := g.Node(id)
		joins := len(open) > 0
		for _, m := range open {
			if !c.Commute(m, n) {
				joins = false
				break
			}
		}
		if joins {
			last := len(runs) - 1
			runs[last] = append(runs[last], id)
			open = append(open, n)
		} else {
			runs = append(runs, []circuit.NodeID{id})
			open = []*circuit.Node{n}
		}
		class[id] = len(runs) - 1
	}
	return runs, class
}
