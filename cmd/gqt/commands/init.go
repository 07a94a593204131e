package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-qtranspile/internal/config"
	"github.com/l3aro/go-qtranspile/internal/healthcheck"
	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gqt configuration interactively",
	Long: `Guides you through setting up gqt configuration step by step.
Creates a config file with the target basis, block consolidation and
verification settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

// basisPresets are the target sets offered by init.
var basisPresets = []struct {
	label string
	value string
}{
	{"IBM (rz, sx, x, cx)", "rz,sx,x,cx"},
	{"Minimal IBM (rz, sx, cx)", "rz,sx,cx"},
	{"Euler ZYZ (rz, ry, cx)", "rz,ry,cx"},
	{"Generic (u, cx)", "u,cx"},
	{"CZ native (rz, sx, cz)", "rz,sx,cz"},
	{"Custom", "custom"},
}

// parseWorkers reads the worker count entered in the init form.
func parseWorkers(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("workers must be a non-negative integer, got %q", s)
	}
	return n, nil
}

// buildInitConfig turns the init form answers into a validated config.
func buildInitConfig(basisNames, blockQubits, workers string, absorb, verify bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Basis = splitNames(basisNames)
	n, err := strconv.Atoi(strings.TrimSpace(blockQubits))
	if err != nil {
		return nil, fmt.Errorf("block qubits must be an integer, got %q", blockQubits)
	}
	cfg.BlockQubits = n
	if cfg.Workers, err = parseWorkers(workers); err != nil {
		return nil, err
	}
	cfg.Absorb = absorb
	cfg.Verify = verify

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func runInit() error {
	// === SECTION 1: Target basis ===
	var basisChoice string
	options := make([]huh.Option[string], 0, len(basisPresets))
	for _, p := range basisPresets {
		options = append(options, huh.NewOption(p.label, p.value))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target Basis - Gates the transpiled circuit may use").
				Description("Select a preset or enter a custom set").
				Options(options...).
				Value(&basisChoice),
		),
	)
	err := form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	basisNames := basisChoice
	if basisChoice == "custom" {
		basisNames = "rz,sx,cx"
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Gate names, comma separated").
					Placeholder("rz,sx,cx").
					Validate(func(s string) error {
						_, err := gate.ParseSet(splitNames(s))
						return err
					}).
					Value(&basisNames),
			),
		)
		err = form.Run()
		if err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	// === SECTION 2: Consolidation ===
	var blockQubits string
	var absorb bool
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Block width").
				Description("Widest block handed to resynthesis").
				Options(
					huh.NewOption("1 qubit", "1"),
					huh.NewOption("2 qubits", "2"),
				).
				Value(&blockQubits),
			huh.NewConfirm().
				Title("Absorb commuting gates?").
				Description("Let blocks grow past wider gates they commute with").
				Affirmative("Yes").
				Negative("No").
				Value(&absorb),
		),
	)
	err = form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Verification ===
	var verify bool
	workers := "0"
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Verify after every pass?").
				Description("Checks graph structure after each pass; slower").
				Affirmative("Yes").
				Negative("No").
				Value(&verify),
			huh.NewInput().
				Title("Worker goroutines (0 uses every CPU)").
				Placeholder("0").
				Validate(func(s string) error {
					_, err := parseWorkers(s)
					return err
				}).
				Value(&workers),
		),
	)
	err = form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.gqt/config.yaml)", "global"),
					huh.NewOption("Project (./.gqt/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	err = form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		err = form.Run()
		if err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	cfg, err := buildInitConfig(basisNames, blockQubits, workers, absorb, verify)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Basis: %s\n", strings.Join(cfg.Basis, ", "))
	fmt.Printf("Block qubits: %d\n", cfg.BlockQubits)
	fmt.Printf("Absorb: %t\n", cfg.Absorb)
	fmt.Printf("Verify: %t\n", cfg.Verify)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 5: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	if result.SavedScope == "global" {
		fmt.Printf("Config Path: %s\n", configPath)
	} else {
		absPath, _ := filepath.Abs(configPath)
		fmt.Printf("Config Path: %s\n", absPath)
	}
	fmt.Println()
	displayDoctorResult(result)

	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
