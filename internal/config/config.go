package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-qtranspile/pkg/gate"
)

// Tolerances are the numerical thresholds of the pipeline.
type Tolerances struct {
	// Commutation bounds ‖AB − BA‖ for explicit commutation checks.
	Commutation float64 `yaml:"commutation" validate:"gt=0,lt=1"`
	// Unitarity bounds the deviation of a composed block from unitarity.
	Unitarity float64 `yaml:"unitarity" validate:"gt=0,lt=1"`
	// Approximation is handed to synthesis libraries.
	Approximation float64 `yaml:"approximation" validate:"gt=0,lt=1"`
	// Candidate bounds the distance of an accepted candidate to its block.
	Candidate float64 `yaml:"candidate" validate:"gt=0,lt=1"`
}

// ErrorRates feed the synthesis fidelity model. Gates overrides the one- and
// two-qubit defaults per gate name.
type ErrorRates struct {
	OneQubit float64            `yaml:"one_qubit" validate:"gte=0,lt=1"`
	TwoQubit float64            `yaml:"two_qubit" validate:"gte=0,lt=1"`
	Gates    map[string]float64 `yaml:"gates,omitempty" validate:"dive,keys,required,endkeys,gte=0,lt=1"`
}

// Config holds all configuration for gqt.
type Config struct {
	// Basis is the target gate set, by mnemonic.
	Basis []string `yaml:"basis" env:"GQT_BASIS" validate:"required,min=1,dive,required"`

	Tolerances Tolerances `yaml:"tolerances"`

	// Workers bounds the worker pools; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" env:"GQT_WORKERS" validate:"gte=0,lte=1024"`

	// Block consolidation
	BlockQubits int  `yaml:"block_qubits" env:"GQT_BLOCK_QUBITS" validate:"gte=1,lte=2"`
	Absorb      bool `yaml:"absorb" env:"GQT_ABSORB"`

	// Commutation memo
	MemoSize             int `yaml:"memo_size" env:"GQT_MEMO_SIZE" validate:"gte=0"`
	CommutationMaxQubits int `yaml:"commutation_max_qubits" env:"GQT_COMMUTATION_MAX_QUBITS" validate:"gte=1,lte=8"`

	// Coupling lists allowed (control, target) pairs. Empty allows all.
	Coupling [][]int `yaml:"coupling,omitempty" validate:"dive,len=2,dive,gte=0"`

	ErrorRates ErrorRates `yaml:"error_rates"`

	// Verify checks graph structure after every pass.
	Verify bool `yaml:"verify" env:"GQT_VERIFY"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GQT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	JSONLogs bool   `yaml:"json_logs" env:"GQT_JSON_LOGS"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Basis: []string{"rz", "sx", "cx"},
		Tolerances: Tolerances{
			Commutation:   1e-10,
			Unitarity:     1e-9,
			Approximation: 1e-10,
			Candidate:     1e-9,
		},
		Workers:              0,
		BlockQubits:          1,
		Absorb:               false,
		MemoSize:             4096,
		CommutationMaxQubits: 4,
		ErrorRates: ErrorRates{
			OneQubit: 1e-4,
			TwoQubit: 1e-2,
		},
		Verify:   false,
		LogLevel: "info",
		JSONLogs: false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gqt/config.yaml).
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gqt/config.yaml"
	}
	return filepath.Join(home, ".gqt", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gqt/config.yaml).
func ProjectConfigFilePath() string {
	return filepath.Join(".gqt", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.gqt/config.yaml)
// 2. Environment variables
// 3. Global config (~/.gqt/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return loadLayers(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func loadLayers(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is not
// an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path, with
// environment overrides applied on top.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies GQT_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GQT_BASIS"); v != "" {
		cfg.Basis = splitList(v)
	}
	floats := []struct {
		env string
		dst *float64
	}{
		{"GQT_TOL_COMMUTATION", &cfg.Tolerances.Commutation},
		{"GQT_TOL_UNITARITY", &cfg.Tolerances.Unitarity},
		{"GQT_TOL_APPROXIMATION", &cfg.Tolerances.Approximation},
		{"GQT_TOL_CANDIDATE", &cfg.Tolerances.Candidate},
	}
	for _, f := range floats {
		if v := os.Getenv(f.env); v != "" {
			x, ok := parseFloat(v)
			if !ok {
				return fmt.Errorf("%s: %q is not a number", f.env, v)
			}
			*f.dst = x
		}
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"GQT_WORKERS", &cfg.Workers},
		{"GQT_BLOCK_QUBITS", &cfg.BlockQubits},
		{"GQT_MEMO_SIZE", &cfg.MemoSize},
		{"GQT_COMMUTATION_MAX_QUBITS", &cfg.CommutationMaxQubits},
	}
	for _, i := range ints {
		if v := os.Getenv(i.env); v != "" {
			x, ok := parseInt(v)
			if !ok {
				return fmt.Errorf("%s: %q is not an integer", i.env, v)
			}
			*i.dst = x
		}
	}
	if v := os.Getenv("GQT_ABSORB"); v != "" {
		cfg.Absorb = parseBool(v)
	}
	if v := os.Getenv("GQT_VERIFY"); v != "" {
		cfg.Verify = parseBool(v)
	}
	if v := os.Getenv("GQT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("GQT_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	return nil
}

// Validate checks struct constraints, then the fields that need the gate
// table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s", describe(verrs[0]))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := c.BasisSet(); err != nil {
		return fmt.Errorf("invalid config: basis: %w", err)
	}
	for name := range c.ErrorRates.Gates {
		if _, err := gate.ParseKind(name); err != nil {
			return fmt.Errorf("invalid config: error_rates.gates: %w", err)
		}
	}
	for _, e := range c.Coupling {
		if e[0] == e[1] {
			return fmt.Errorf("invalid config: coupling pair %v joins a qubit to itself", e)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s fails %s", field, fe.Tag())
}

// BasisSet parses the target basis.
func (c *Config) BasisSet() (gate.Set, error) {
	return gate.ParseSet(c.Basis)
}

// Rates returns the per-gate error rates keyed by kind. Names are assumed
// valid, as checked by Validate.
func (c *Config) Rates() map[gate.Kind]float64 {
	if len(c.ErrorRates.Gates) == 0 {
		return nil
	}
	out := make(map[gate.Kind]float64, len(c.ErrorRates.Gates))
	for name, r := range c.ErrorRates.Gates {
		if k, err := gate.ParseKind(name); err == nil {
			out[k] = r
		}
	}
	return out
}

// Edges returns the coupling map as pairs.
func (c *Config) Edges() [][2]int {
	out := make([][2]int, 0, len(c.Coupling))
	for _, e := range c.Coupling {
		out = append(out, [2]int{e[0], e[1]})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFloat attempts to parse a string as float64
func parseFloat(s string) (float64, bool) {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0, false
	}
	return f, true
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, bool) {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0, false
	}
	return i, true
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
