package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/pkg/basis"
	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the standard equivalence rules",
	Long: `Lists the rules of the standard equivalence library in registration order.

With --validate the command fails unless every rule passes its numeric
check. With --basis the cheapest translation cost of every gate into that
basis is shown too.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		validateRules, _ := cmd.Flags().GetBool("validate")
		// Register checks every rule numerically.
		lib := basis.NewEquivalenceLibrary()
		failed := 0
		for _, r := range basis.StandardRules() {
			if err := lib.Register(r); err != nil {
				failed++
				fmt.Println(warnStyle.Render(err.Error()))
			}
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%d rules", lib.Len())))
		for _, r := range lib.Rules() {
			fmt.Printf("%s%s\n", labelStyle.Render(fmt.Sprintf("#%d", r.Index())), r)
		}

		if cmd.Flags().Changed("basis") {
			raw, _ := cmd.Flags().GetString("basis")
			target, err := gate.ParseSet(splitNames(raw))
			if err != nil {
				return fmt.Errorf("--basis: %w", err)
			}
			printPlan(lib.Search(target))
		}

		if failed > 0 && validateRules {
			return fmt.Errorf("%d rules failed validation", failed)
		}
		if validateRules {
			fmt.Println(okStyle.Render("all rules verified"))
		}
		return nil
	},
}

func printPlan(plan *basis.Plan) {
	fmt.Println(titleStyle.Render("costs into " + plan.Basis().String()))
	for _, k := range gate.Kinds() {
		if k.IsDirective() {
			continue
		}
		cost, ok := plan.Cost(k)
		if !ok {
			fmt.Println(labelStyle.Render(k.String()) + warnStyle.Render("unreachable"))
			continue
		}
		fmt.Println(field(k.String(), cost))
	}
}

func init() {
	rulesCmd.Flags().Bool("validate", false, "Fail unless every rule passes its numeric check")
	rulesCmd.Flags().String("basis", "", "Show translation costs into this basis, comma separated")
	RootCmd.AddCommand(rulesCmd)
}
