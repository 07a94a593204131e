package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and rules",
	Long: `Checks the effective configuration, re-validates the equivalence rules,
reports gates the target basis cannot express and transpiles a small
circuit end to end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfigWithPath(cmd)
		if err != nil {
			return err
		}

		result, err := healthcheck.Check(cfg, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if result.Failed() {
			return fmt.Errorf("health check failed: one or more checks reported errors")
		}

		return nil
	},
}

// loadConfigWithPath loads the effective config and names the file that
// took priority, or "" when only defaults and env apply.
func loadConfigWithPath(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return cfg, path, nil
	}

	if projectPath := config.ProjectConfigFilePath(); fileExists(projectPath) {
		return cfg, projectPath, nil
	}
	if globalPath := config.GlobalConfigFilePath(); fileExists(globalPath) {
		return cfg, globalPath, nil
	}
	return cfg, "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Println("Using config: defaults (no config file found)")
	} else {
		fmt.Printf("Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	fmt.Println()

	for _, c := range []healthcheck.ComponentStatus{result.Rules, result.Basis, result.Smoke} {
		printComponentStatus(c)
	}
	if len(result.Unreachable) > 0 {
		fmt.Printf("  Unreachable gates: %s\n", strings.Join(result.Unreachable, " "))
	}
}

func printComponentStatus(c healthcheck.ComponentStatus) {
	icon := formatStatusIcon(c.Status)
	line := fmt.Sprintf("%s %s", icon, labelStyle.Render(c.Name))
	if c.Detail != "" {
		line += c.Detail
	}
	fmt.Println(line)
	if c.Error != "" {
		fmt.Println(warnStyle.Render("  Error: " + c.Error))
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return okStyle.Render("✓")
	case healthcheck.StatusPartial:
		return warnStyle.Render("◐")
	case healthcheck.StatusError:
		return warnStyle.Render("✗")
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
