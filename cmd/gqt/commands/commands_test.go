package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
)

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"rz", "sx", "cx"}, splitNames(" rz, sx,,cx "))
	assert.Nil(t, splitNames(""))
}

func TestStatsOf(t *testing.T) {
	g, err := ParseCircuit([]byte(bell))
	require.NoError(t, err)

	s := statsOf(g)
	assert.Equal(t, 2, s.Qubits)
	assert.Equal(t, 5, s.Ops)
	assert.Equal(t, 1, s.TwoQubit)
	assert.Equal(t, 1, s.Counts["cx"])
	assert.Equal(t, 1, s.Counts["measure"])
}

func TestTranspileCommandWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "c.yaml")
	out := filepath.Join(dir, "c.msgpack")
	src := "qubits: 2\nops:\n  - gate: h\n    qubits: [0]\n  - gate: cz\n    qubits: [0, 1]\n"
	require.NoError(t, os.WriteFile(in, []byte(src), 0644))
	t.Setenv("GQT_LOG_LEVEL", "error")

	RootCmd.SetArgs([]string{"transpile", in, "--basis", "rz,sx,cx", "--verify", "--json", "--out", out})
	require.NoError(t, RootCmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	g, err := circuit.Restore(data)
	require.NoError(t, err)

	orig, err := LoadCircuit(in)
	require.NoError(t, err)
	ok, err := circuit.Equivalent(orig, g, 1e-8)
	require.NoError(t, err)
	assert.True(t, ok)
	for k := range g.CountOps() {
		assert.Contains(t, []string{"rz", "sx", "cx"}, k.String())
	}
}

func TestTranspileCommandBatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	circuits := map[string]string{
		"a.yaml":        "qubits: 1\nops:\n  - gate: h\n    qubits: [0]\n",
		"sub/b.yml":     "qubits: 2\nops:\n  - gate: swap\n    qubits: [0, 1]\n",
		"skip.gen.yaml": "qubits: 1\nops:\n  - gate: nope\n    qubits: [0]\n",
		".gqtignore":    "*.gen.yaml\n",
	}
	for name, src := range circuits {
		path := filepath.Join(in, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	t.Setenv("GQT_LOG_LEVEL", "error")

	RootCmd.SetArgs([]string{"transpile", in, "--basis", "rz,sx,cx", "--verify", "--json", "--out", out})
	require.NoError(t, RootCmd.ExecuteContext(context.Background()))

	for _, name := range []string{"a.msgpack", "sub/b.msgpack"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err, name)
		_, err = circuit.Restore(data)
		require.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(out, "skip.gen.msgpack"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildInitConfig(t *testing.T) {
	cfg, err := buildInitConfig("rz, sx, cx", "2", " 4 ", true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"rz", "sx", "cx"}, cfg.Basis)
	assert.Equal(t, 2, cfg.BlockQubits)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Absorb)
	assert.True(t, cfg.Verify)

	tests := []struct {
		name        string
		blockQubits string
		workers     string
	}{
		{"non-numeric workers", "1", "four"},
		{"negative workers", "1", "-1"},
		{"empty workers", "1", ""},
		{"non-numeric block qubits", "wide", "0"},
		{"block qubits out of range", "3", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildInitConfig("rz,sx,cx", tt.blockQubits, tt.workers, false, false)
			assert.Error(t, err)
		})
	}
}
