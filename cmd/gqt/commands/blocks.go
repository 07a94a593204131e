package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/pkg/circuit"
	"github.com/l3aro/go-qtranspile/pkg/commutation"
	"github.com/l3aro/go-qtranspile/pkg/consolidate"
	"github.com/l3aro/go-qtranspile/pkg/transpile"
)

// blocksCmd represents the blocks command
var blocksCmd = &cobra.Command{
	Use:   "blocks <circuit.yaml>",
	Short: "Show consolidated blocks",
	Long: `Finds the convex one- and two-qubit blocks consolidation would hand to
synthesis, with their gate counts and the hoists needed to form them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyBasisFlag(cmd, cfg); err != nil {
			return err
		}
		if cmd.Flags().Changed("qubits") {
			cfg.BlockQubits, _ = cmd.Flags().GetInt("qubits")
		}
		if cmd.Flags().Changed("absorb") {
			cfg.Absorb, _ = cmd.Flags().GetBool("absorb")
		}
		if err := cfg.Validate(); err != nil {
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

		var comm *commutation.Result
		if opts.Consolidate.Absorb {
			comm, err = commutation.Analyze(cmd.Context(), g, opts.NewChecker(), opts.Workers)
			if err != nil {
				return fmt.Errorf("analyzing commutation: %w", err)
			}
		}
		copts := opts.Consolidate
		copts.Basis = opts.Basis
		copts.Workers = opts.Workers
		res, err := consolidate.Find(cmd.Context(), g, comm, copts)
		if err != nil {
			return fmt.Errorf("finding blocks: %w", err)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		printBlocks(g, res)
		return nil
	},
}

func printBlocks(g *circuit.DAG, res *consolidate.Result) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("%d blocks", len(res.Blocks))))
	for _, b := range res.Blocks {
		names := make([]string, 0, len(b.Nodes))
		for _, id := range b.Nodes {
			names = append(names, g.Node(id).Op.String())
		}
		line := fmt.Sprintf("%s%s", labelStyle.Render(fmt.Sprintf("#%d q%v", b.ID, b.Qubits)), strings.Join(names, " "))
		if len(b.Hoists) > 0 {
			line += dimStyle.Render(fmt.Sprintf("  %d hoists", len(b.Hoists)))
		}
		fmt.Println(line)
	}
	for _, u := range res.Unstable {
		fmt.Println(warnStyle.Render(fmt.Sprintf("unstable q%v: deviation %.3g", u.Qubits, u.Deviation)))
	}
}

func init() {
	blocksCmd.Flags().String("basis", "", "Target basis, comma separated (overrides config)")
	blocksCmd.Flags().Int("qubits", 1, "Widest block, 1 or 2 (overrides config)")
	blocksCmd.Flags().Bool("absorb", false, "Grow blocks past commuting wider gates (overrides config)")
	blocksCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(blocksCmd)
}
