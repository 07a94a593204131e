package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/internal/scanner"
	"github.com/l3aro/go-qtranspile/internal/telemetry"
	"github.com/l3aro/go-qtranspile/pkg/cache"
	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/pipeline"
	"github.com/l3aro/go-qtranspile/pkg/transpile"
)

// verifyTolerance bounds the operator distance accepted by --verify.
const verifyTolerance = 1e-8

// CircuitStats summarizes a circuit for JSON output.
type CircuitStats struct {
	Qubits      int            `json:"qubits"`
	Ops         int            `json:"ops"`
	TwoQubit    int            `json:"two_qubit"`
	Depth       int            `json:"depth"`
	Counts      map[string]int `json:"counts"`
	GlobalPhase float64        `json:"global_phase"`
}

// TranspileOutput represents the output structure for JSON
type TranspileOutput struct {
	Path        string                `json:"path"`
	RunID       string                `json:"run_id"`
	Before      CircuitStats          `json:"before"`
	After       CircuitStats          `json:"after"`
	Passes      []pipeline.PassStat   `json:"passes"`
	Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
	Verified    *bool                 `json:"verified,omitempty"`
}

func statsOf(g *circuit.DAG) CircuitStats {
	counts := make(map[string]int)
	for k, n := range g.CountOps() {
		counts[k.String()] = n
	}
	return CircuitStats{
		Qubits:      g.NumQubits(),
		Ops:         g.Len(),
		TwoQubit:    g.TwoQubitCount(),
		Depth:       g.Depth(),
		Counts:      counts,
		GlobalPhase: g.GlobalPhase(),
	}
}

// transpileCmd represents the transpile command
var transpileCmd = &cobra.Command{
	Use:   "transpile <circuit.yaml | dir>",
	Short: "Run the full pass pipeline over a circuit",
	Long: `Loads a YAML circuit and runs commutation analysis, block consolidation,
resynthesis and basis translation. Prints a before/after summary and every
diagnostic the passes recorded.

Given a directory, every circuit file below it is transpiled with a shared
commutation memo; --out then names a directory for the snapshots.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyBasisFlag(cmd, cfg); err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetBool("verify"); v {
			cfg.Verify = true
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		inputs, batch, err := circuitInputs(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if trace, _ := cmd.Flags().GetBool("trace"); trace {
			shutdown, err := telemetry.EnableTracing(os.Stderr)
			if err != nil {
				return fmt.Errorf("enabling tracing: %w", err)
			}
			defer shutdown(context.Background())
		}

		opts, err := transpile.FromConfig(cfg)
		if err != nil {
			return err
		}
		opts.Logger = logger
		opts.Checker = opts.NewChecker()

		memoPath, _ := cmd.Flags().GetString("memo")
		if memoPath != "" {
			if err := cache.LoadFromFile(opts.Checker.Memo(), memoPath); err != nil {
				logger.Warn("ignoring commutation memo", "path", memoPath, "error", err)
			}
		}

		out, _ := cmd.Flags().GetString("out")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		var outputs []TranspileOutput
		mismatches := 0
		for _, in := range inputs {
			snapshot := out
			if batch && out != "" {
				snapshot = filepath.Join(out, strings.TrimSuffix(in.Path, filepath.Ext(in.Path))+".msgpack")
			}
			res, err := transpileFile(ctx, in.FullPath, snapshot, cfg.Verify, opts)
			if err != nil {
				return err
			}
			res.output.Path = in.Path
			if res.output.Verified != nil && !*res.output.Verified {
				mismatches++
			}
			switch {
			case jsonOutput:
				outputs = append(outputs, res.output)
			case batch:
				printBatchLine(res)
			default:
				printTranspile(res)
			}
		}

		if memoPath != "" {
			if err := cache.PersistToFile(opts.Checker.Memo(), memoPath); err != nil {
				return fmt.Errorf("saving commutation memo: %w", err)
			}
		}

		if jsonOutput {
			var v any = outputs
			if !batch {
				v = outputs[0]
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
		}

		if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
			if err := telemetry.WriteMetrics(os.Stderr); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}

		if mismatches > 0 {
			return fmt.Errorf("%d transpiled circuits do not match their input operator", mismatches)
		}
		return nil
	},
}

// circuitInputs resolves the transpile argument to circuit files. batch is
// set when arg is a directory.
func circuitInputs(arg string) (files []scanner.FileInfo, batch bool, err error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, false, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, false, fmt.Errorf("getting absolute path: %w", err)
		}
		return []scanner.FileInfo{{Path: filepath.Base(arg), FullPath: abs, Size: info.Size()}}, false, nil
	}
	files, err = scanner.New(scanner.DefaultOptions()).Scan(arg)
	if err != nil {
		return nil, true, fmt.Errorf("scanning directory: %w", err)
	}
	if len(files) == 0 {
		return nil, true, fmt.Errorf("no circuit files found in %s", arg)
	}
	return files, true, nil
}

type fileResult struct {
	before, after *circuit.DAG
	result        *pipeline.Result
	output        TranspileOutput
}

// transpileFile runs the pipeline over the circuit at path and writes the
// snapshot when snapshot is not empty.
func transpileFile(ctx context.Context, path, snapshot string, verify bool, opts transpile.Options) (*fileResult, error) {
	g, err := LoadCircuit(path)
	if err != nil {
		return nil, err
	}
	original := g.Clone()

	res, err := transpile.Transpile(ctx, g, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var verified *bool
	if verify {
		ok, err := circuit.Equivalent(original, g, verifyTolerance)
		if err != nil {
			opts.Logger.Warn("operator check skipped", "path", path, "error", err)
		} else {
			verified = &ok
		}
	}

	if snapshot != "" {
		data, err := g.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("encoding snapshot: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(snapshot), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(snapshot), err)
		}
		if err := os.WriteFile(snapshot, data, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", snapshot, err)
		}
		opts.Logger.Info("snapshot written", "path", snapshot, "bytes", len(data))
	}

	return &fileResult{
		before: original,
		after:  g,
		result: res,
		output: TranspileOutput{
			RunID:       res.RunID,
			Before:      statsOf(original),
			After:       statsOf(g),
			Passes:      res.Passes,
			Diagnostics: res.Diagnostics,
			Verified:    verified,
		},
	}, nil
}

func printBatchLine(r *fileResult) {
	status := okStyle.Render("ok")
	if v := r.output.Verified; v != nil && !*v {
		status = warnStyle.Render("mismatch")
	}
	fmt.Printf("%s %s %d -> %d ops, depth %d -> %d, %d diagnostics\n",
		status, labelStyle.Render(r.output.Path),
		r.output.Before.Ops, r.output.After.Ops,
		r.output.Before.Depth, r.output.After.Depth,
		len(r.output.Diagnostics))
}

func printTranspile(r *fileResult) {
	before, after, res, verified := r.before, r.after, r.result, r.output.Verified
	fmt.Println(dimStyle.Render("run " + res.RunID))
	fmt.Println(circuitSummary("before", before))
	fmt.Println(circuitSummary("after", after))
	for _, p := range res.Passes {
		note := ""
		if p.Provided {
			note = dimStyle.Render(" (provided)")
		}
		fmt.Printf("  %s %v, %d rewrites%s\n", labelStyle.Render(p.Name), p.Duration, p.RevisionDelta, note)
	}
	fmt.Println(diagnosticsSummary(res.Diagnostics))
	if verified != nil {
		if *verified {
			fmt.Println(okStyle.Render("operator verified"))
		} else {
			fmt.Println(warnStyle.Render("operator mismatch"))
		}
	}
}

func init() {
	transpileCmd.Flags().String("basis", "", "Target basis, comma separated (overrides config)")
	transpileCmd.Flags().StringP("out", "o", "", "Write the result as a msgpack snapshot")
	transpileCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	transpileCmd.Flags().Bool("verify", false, "Check graph structure after every pass and compare operators")
	transpileCmd.Flags().Bool("trace", false, "Write OpenTelemetry spans to stderr")
	transpileCmd.Flags().Bool("metrics", false, "Write Prometheus metrics to stderr")
	transpileCmd.Flags().String("memo", "", "Load and save the commutation memo at this path")
	RootCmd.AddCommand(transpileCmd)
}
