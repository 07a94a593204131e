package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/transpile"
)

// WireRuns represents the commutation runs of one wire for JSON
type WireRuns struct {
	Wire string             `json:"wire"`
	Runs [][]circuit.NodeID `json:"runs"`
}

// commuteCmd represents the commute command
var commuteCmd = &cobra.Command{
	Use:   "commute <circuit.yaml>",
	Short: "Show commutation runs per wire",
	Long: `Groups the operations on every wire into maximal runs of mutually
commuting operations and prints them in wire order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g, err := LoadCircuit(args[0])
		if err != nil {
			return err
		}
		opts, err := transpile.FromConfig(cfg)
		if err != nil {
			return err
		}

		res, err := commutation.Analyze(cmd.Context(), g, opts.NewChecker(), opts.Workers)
		if err != nil {
			return fmt.Errorf("analyzing commutation: %w", err)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			out := make([]WireRuns, 0, len(res.Wires()))
			for _, w := range res.Wires() {
				out = append(out, WireRuns{Wire: w.String(), Runs: res.Runs(w)})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		printRuns(g, res)
		return nil
	},
}

func printRuns(g *circuit.DAG, res *commutation.Result) {
	fmt.Println(titleStyle.Render("commutation runs"))
	for _, w := range res.Wires() {
		runs := res.Runs(w)
		if len(runs) == 0 {
			continue
		}
		parts := make([]string, 0, len(runs))
		for _, run := range runs {
			names := make([]string, 0, len(run))
			for _, id := range run {
				names = append(names, fmt.Sprintf("%d:%s", id, g.Node(id).Op))
			}
			parts = append(parts, "["+strings.Join(names, " ")+"]")
		}
		fmt.Println(labelStyle.Render(w.String()) + strings.Join(parts, " "))
	}
}

func init() {
	commuteCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(commuteCmd)
}
