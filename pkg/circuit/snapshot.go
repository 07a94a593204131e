package circuit

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// snapshotVersion is bumped whenever the encoded layout changes.
const snapshotVersion = 1

type snapshot struct {
	Version     int        `msgpack:"version"`
	Qubits      int        `msgpack:"qubits"`
	Clbits      int        `msgpack:"clbits"`
	GlobalPhase float64    `msgpack:"global_phase"`
	Ops         []opRecord `msgpack:"ops"`
}

type opRecord struct {
	Gate      string     `msgpack:"gate"`
	Params    []float64  `msgpack:"params,omitempty"`
	Qubits    []int      `msgpack:"qubits"`
	Clbits    []int      `msgpack:"clbits,omitempty"`
	Condition *Condition `msgpack:"condition,omitempty"`
	// Re and Im hold an explicit matrix row-major.
	Re []float64 `msgpack:"re,omitempty"`
	Im []float64 `msgpack:"im,omitempty"`
}

// Snapshot encodes the graph with msgpack. Operations are written in
// topological order, so ids are not preserved by a round trip but the
// circuit is.
func (d *DAG) Snapshot() ([]byte, error) {
	order, err := d.topoSlice()
	if err != nil {
		return nil, err
	}
	s := snapshot{
		Version:     snapshotVersion,
		Qubits:      d.numQubits,
		Clbits:      d.numClbits,
		GlobalPhase: d.globalPhase,
		Ops:         make([]opRecord, 0, len(order)),
	}
	for _, id := range order {
		n := d.nodes[id]
		rec := opRecord{
			Gate:      n.Op.Name(),
			Params:    n.Op.Params,
			Qubits:    n.Qubits,
			Clbits:    n.Clbits,
			Condition: n.Condition,
		}
		if n.Op.Matrix != nil {
			dim := n.Op.Matrix.Dim()
			rec.Re = make([]float64, 0, dim*dim)
			rec.Im = make([]float64, 0, dim*dim)
			for i := 0; i < dim; i++ {
				for j := 0; j < dim; j++ {
					v := n.Op.Matrix.At(i, j)
					rec.Re = append(rec.Re, real(v))
					rec.Im = append(rec.Im, imag(v))
				}
			}
		}
		s.Ops = append(s.Ops, rec)
	}
	return msgpack.Marshal(&s)
}

// Restore decodes a graph written by Snapshot.
func Restore(data []byte) (*DAG, error) {
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrStructural, s.Version)
	}
	if s.Qubits < 0 || s.Clbits < 0 {
		return nil, fmt.Errorf("%w: negative register size", ErrStructural)
	}
	d := New(s.Qubits, s.Clbits)
	for i, rec := range s.Ops {
		op, err := recordOp(rec)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		if _, err := d.AddNode(op, rec.Qubits, rec.Clbits, rec.Condition); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}
	d.SetGlobalPhase(s.GlobalPhase)
	return d, nil
}

func recordOp(rec opRecord) (gate.Op, error) {
	kind, err := gate.ParseKind(rec.Gate)
	if err != nil {
		return gate.Op{}, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	if kind != gate.Unitary {
		return gate.New(kind, rec.Params...), nil
	}
	if len(rec.Re) != len(rec.Im) {
		return gate.Op{}, fmt.Errorf("%w: matrix parts differ in length", ErrStructural)
	}
	dim := 0
	for dim*dim < len(rec.Re) {
		dim++
	}
	if dim == 0 || dim*dim != len(rec.Re) {
		return gate.Op{}, fmt.Errorf("%w: matrix with %d entries is not square", ErrStructural, len(rec.Re))
	}
	m := linalg.New(dim)
	for i := range rec.Re {
		m.Set(i/dim, i%dim, complex(rec.Re[i], rec.Im[i]))
	}
	return gate.NewUnitary(m), nil
}
