// Package pipeline runs an ordered list of passes over a circuit graph,
// keeping the analysis cache honest between them.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/l3aro/go-qtranspile/internal/log"
	"github.com/l3aro/go-qtranspile/internal/telemetry"
	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
)

// Pass is one step of a pipeline.
type Pass interface {
	Name() string
	// Requires lists the analyses that must be current before Run.
	Requires() []cache.Kind
	// Invalidates lists analyses dropped after Run mutates the graph.
	Invalidates() []cache.Kind
	Run(ctx context.Context, g *circuit.DAG, rc *RunContext) error
}

// Provider is a pass that computes one analysis and stores it in the run's
// property set.
type Provider interface {
	Pass
	Provides() cache.Kind
}

// Reason classifies a diagnostic.
type Reason string

const (
	ReasonNumericalInstability Reason = "numerical_instability"
	ReasonInfeasible           Reason = "infeasible"
	ReasonNotImproved          Reason = "not_improved"
	ReasonCandidateRejected    Reason = "candidate_rejected"
	ReasonSynthesisError       Reason = "synthesis_error"
	ReasonCancelled            Reason = "cancelled"
)

// Diagnostic records a region a pass left untransformed, and why.
type Diagnostic struct {
	Pass   string           `json:"pass" msgpack:"pass"`
	Reason Reason           `json:"reason" msgpack:"reason"`
	Nodes  []circuit.NodeID `json:"nodes,omitempty" msgpack:"nodes,omitempty"`
	Qubits []int            `json:"qubits,omitempty" msgpack:"qubits,omitempty"`
	Detail string           `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s", d.Pass, d.Reason)
	if len(d.Qubits) > 0 {
		s += fmt.Sprintf(" on q%v", d.Qubits)
	}
	if d.Detail != "" {
		s += " (" + d.Detail + ")"
	}
	return s
}

// RunContext is what a pass sees of the run besides the graph.
type RunContext struct {
	RunID      string
	Properties *cache.PropertySet
	Logger     log.Logger

	pass string

	mu    sync.Mutex
	diags []Diagnostic
}

// NewRunContext returns a run context bound to g. Manager.Run builds one per
// run; tests use it to drive passes directly.
func NewRunContext(g *circuit.DAG, logger log.Logger) *RunContext {
	if logger == nil {
		logger = log.Nop()
	}
	return &RunContext{
		Properties: cache.NewPropertySet(g),
		Logger:     logger,
	}
}

// Pass returns the name of the pass that is running.
func (rc *RunContext) Pass() string { return rc.pass }

// Report records a diagnostic. It is safe for concurrent use.
func (rc *RunContext) Report(d Diagnostic) {
	if d.Pass == "" {
		d.Pass = rc.pass
	}
	rc.mu.Lock()
	rc.diags = append(rc.diags, d)
	rc.mu.Unlock()
	telemetry.CountDiagnostic(d.Pass, string(d.Reason))
	rc.Logger.Debug("diagnostic", "pass", d.Pass, "reason", d.Reason, "qubits", d.Qubits, "detail", d.Detail)
}

// Diagnostics returns the diagnostics recorded so far.
func (rc *RunContext) Diagnostics() []Diagnostic {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]Diagnostic, len(rc.diags))
	copy(out, rc.diags)
	return out
}

// CountByReason tallies diagnostics.
func CountByReason(diags []Diagnostic) map[Reason]int {
	out := make(map[Reason]int)
	for _, d := range diags {
		out[d.Reason]++
	}
	return out
}

// SortedReasons returns the reasons present in counts, ordered by name.
func SortedReasons(counts map[Reason]int) []Reason {
	out := make([]Reason, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
