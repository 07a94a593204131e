// Package main implements the go-qtranspile CLI (gqt).
// It loads circuits from YAML, runs the transpiler passes over them and
// reports what each pass did.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/cmd/gqt/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	// Add version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gqt version %s\n", version)
			if buildTime != "" {
				fmt.Printf("built %s\n", buildTime)
			}
			fmt.Printf("go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
	commands.RootCmd.AddCommand(versionCmd)

	commands.RootCmd.SetVersionTemplate(`gqt version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
