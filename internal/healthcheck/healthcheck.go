package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/pkg/basis"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/gate"
	"github.com/l3aro/go-qtranspile/pkg/transpile"
)

// Status values reported for a component.
const (
	StatusReady   = "ready"
	StatusPartial = "partial"
	StatusError   = "error"
)

// smokeTimeout bounds the smoke transpile.
const smokeTimeout = 10 * time.Second

// ComponentStatus represents the health of one part of the effective
// configuration.
type ComponentStatus struct {
	Name   string
	Status string // "ready", "partial" or "error"
	Detail string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global", "project" or "" for defaults
	EffectivePath  string
	EffectiveScope string
	Rules          ComponentStatus
	Basis          ComponentStatus
	Smoke          ComponentStatus
	// Unreachable lists the gate kinds without a translation path into
	// the configured basis.
	Unreachable []string
}

// Failed reports whether any component is in error.
func (r *HealthCheckResult) Failed() bool {
	for _, c := range []ComponentStatus{r.Rules, r.Basis, r.Smoke} {
		if c.Status == StatusError {
			return true
		}
	}
	return false
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	var lib *basis.EquivalenceLibrary
	result.Rules, lib = checkRules()
	result.Basis, result.Unreachable = checkBasis(cfg, lib)
	if result.Basis.Status == StatusError {
		result.Smoke = ComponentStatus{Name: "smoke", Status: StatusError, Error: "skipped: basis unusable"}
	} else {
		result.Smoke = checkSmoke(cfg, lib)
	}

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".gqt")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkRules registers the standard rules into a fresh library, which
// re-runs their numeric checks.
func checkRules() (ComponentStatus, *basis.EquivalenceLibrary) {
	status := ComponentStatus{Name: "rules", Status: StatusReady}
	lib := basis.NewEquivalenceLibrary()
	var failed []string
	for _, r := range basis.StandardRules() {
		if err := lib.Register(r); err != nil {
			failed = append(failed, err.Error())
		}
	}
	status.Detail = fmt.Sprintf("%d rules registered", lib.Len())
	if len(failed) > 0 {
		status.Status = StatusError
		status.Error = strings.Join(failed, "; ")
	}
	return status, lib
}

// checkBasis reports which gate kinds cannot reach the configured basis.
// A basis that cannot express CX cannot express any entangling gate and is
// an error; other gaps are partial.
func checkBasis(cfg *config.Config, lib *basis.EquivalenceLibrary) (ComponentStatus, []string) {
	status := ComponentStatus{Name: "basis", Status: StatusReady}
	target, err := cfg.BasisSet()
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status, nil
	}
	status.Detail = target.String()

	plan := lib.Search(target)
	var unreachable []string
	for _, k := range gate.Kinds() {
		if k.IsDirective() || k == gate.Unitary {
			continue
		}
		if _, ok := plan.Cost(k); !ok {
			unreachable = append(unreachable, k.String())
		}
	}
	if len(unreachable) == 0 {
		return status, nil
	}
	status.Status = StatusPartial
	if _, ok := plan.Cost(gate.CX); !ok {
		status.Status = StatusError
		status.Error = "no entangling gate is reachable"
	}
	return status, unreachable
}

// checkSmoke transpiles a small fixed circuit under cfg and compares
// operators.
func checkSmoke(cfg *config.Config, lib *basis.EquivalenceLibrary) ComponentStatus {
	status := ComponentStatus{Name: "smoke", Status: StatusReady}
	fail := func(err error) ComponentStatus {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	opts, err := transpile.FromConfig(cfg)
	if err != nil {
		return fail(err)
	}
	opts.Equivalences = lib
	opts.Verify = true

	g := smokeCircuit()
	before := g.Clone()
	ctx, cancel := context.WithTimeout(context.Background(), smokeTimeout)
	defer cancel()

	start := time.Now()
	res, err := transpile.Transpile(ctx, g, opts)
	if err != nil {
		return fail(err)
	}
	ok, err := circuit.Equivalent(before, g, 1e-8)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return fail(fmt.Errorf("transpiled operator differs from the input"))
	}
	status.Detail = fmt.Sprintf("%d ops -> %d ops, %d diagnostics in %v",
		before.Len(), g.Len(), len(res.Diagnostics), time.Since(start).Round(time.Millisecond))
	return status
}

func smokeCircuit() *circuit.DAG {
	g := circuit.New(3, 0)
	g.MustAppend(gate.New(gate.H), 0)
	g.MustAppend(gate.New(gate.T), 0)
	g.MustAppend(gate.New(gate.CX), 0, 1)
	g.MustAppend(gate.New(gate.RY, 0.7), 2)
	g.MustAppend(gate.New(gate.CCX), 0, 1, 2)
	g.MustAppend(gate.New(gate.SWAP), 1, 2)
	return g
}
