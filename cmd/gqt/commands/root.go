// Package commands provides the CLI commands for the gqt transpiler.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gqt",
	Short: "gqt - Quantum circuit transpiler",
	Long: `gqt rewrites quantum circuits into a target gate basis.

Commands:
  transpile   Run the full pass pipeline over a circuit
  commute     Show commutation runs per wire
  blocks      Show consolidated blocks
  rules       List the standard equivalence rules
  init        Create a config file interactively

Use "gqt [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: project, env, then global config)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig resolves the config for cmd, honouring --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	return cfg, nil
}

// newLogger builds the stderr logger described by cfg.
func newLogger(cfg *config.Config) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.JSONLogs,
		Output:     os.Stderr,
	}), nil
}

// applyBasisFlag overrides the configured basis with --basis when given.
func applyBasisFlag(cmd *cobra.Command, cfg *config.Config) error {
	if !cmd.Flags().Changed("basis") {
		return nil
	}
	raw, _ := cmd.Flags().GetString("basis")
	cfg.Basis = splitNames(raw)
	if _, err := cfg.BasisSet(); err != nil {
		return fmt.Errorf("--basis: %w", err)
	}
	return nil
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
