package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/linalg"
)

// CircuitFile is the YAML form of a circuit.
type CircuitFile struct {
	Qubits      int      `yaml:"qubits"`
	Clbits      int      `yaml:"clbits"`
	GlobalPhase float64  `yaml:"global_phase"`
	Ops         []OpSpec `yaml:"ops"`
}

// OpSpec is one operation in a circuit file. Matrix rows hold [re, im]
// pairs and are only read for gate "unitary".
type OpSpec struct {
	Gate      string         `yaml:"gate"`
	Qubits    []int          `yaml:"qubits"`
	Clbits    []int          `yaml:"clbits,omitempty"`
	Params    []float64      `yaml:"params,omitempty"`
	Condition *ConditionSpec `yaml:"condition,omitempty"`
	Matrix    [][][2]float64 `yaml:"matrix,omitempty"`
}

// ConditionSpec gates an operation on a classical bit.
type ConditionSpec struct {
	Clbit int `yaml:"clbit"`
	Value int `yaml:"value"`
}

// LoadCircuit reads and builds the circuit at path.
func LoadCircuit(path string) (*circuit.DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading circuit %s: %w", path, err)
	}
	g, err := ParseCircuit(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseCircuit builds a circuit from its YAML form.
func ParseCircuit(data []byte) (*circuit.DAG, error) {
	var f CircuitFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing circuit: %w", err)
	}
	if f.Qubits < 0 || f.Clbits < 0 {
		return nil, fmt.Errorf("negative register size")
	}

	g := circuit.New(f.Qubits, f.Clbits)
	for i, spec := range f.Ops {
		op, err := spec.op()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		var cond *circuit.Condition
		if spec.Condition != nil {
			cond = &circuit.Condition{Clbit: spec.Condition.Clbit, Value: spec.Condition.Value}
		}
		if _, err := g.AddNode(op, spec.Qubits, spec.Clbits, cond); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, spec.Gate, err)
		}
	}
	g.SetGlobalPhase(f.GlobalPhase)
	return g, nil
}

func (s OpSpec) op() (gate.Op, error) {
	kind, err := gate.ParseKind(s.Gate)
	if err != nil {
		return gate.Op{}, err
	}
	if kind != gate.Unitary {
		if len(s.Matrix) > 0 {
			return gate.Op{}, fmt.Errorf("matrix given for %s", kind)
		}
		return gate.New(kind, s.Params...), nil
	}
	rows := make([][]complex128, len(s.Matrix))
	for i, row := range s.Matrix {
		rows[i] = make([]complex128, len(row))
		for j, v := range row {
			rows[i][j] = complex(v[0], v[1])
		}
	}
	m, err := linalg.FromRows(rows)
	if err != nil {
		return gate.Op{}, err
	}
	return gate.NewUnitary(m), nil
}
