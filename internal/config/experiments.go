package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/util"
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() models.Config {
	return models.Config{
		ResultsDir: "results",
		Catalog:    "catalog.toml",
		Simulator: models.SimulatorConfig{
			Backend:    models.BackendLocal,
			Path:       "new_fdm",
			TimeoutSec: 300,
			Modal: models.ModalConfig{
				AppName: "fdmopt",
				CPUs:    1,
			},
		},
		Search: models.SearchConfig{
			InitialUpperBound: 50,
			MaxIterations:     200,
		},
	}
}

// LoadConfig loads and parses an experiments.yaml file. Relative file references are
// resolved against the directory holding the file.
func LoadConfig(path string) (models.Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading experiments config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing experiments config: %w", err)
	}

	switch cfg.Simulator.Backend {
	case "", models.BackendLocal, models.BackendDocker, models.BackendModal, models.BackendApple:
	default:
		return cfg, fmt.Errorf("simulator: unknown backend %q", cfg.Simulator.Backend)
	}
	if cfg.Simulator.Backend == models.BackendDocker && cfg.Simulator.Docker.Image == "" {
		return cfg, fmt.Errorf("simulator: docker backend needs an image")
	}
	if cfg.Simulator.Backend == models.BackendModal && cfg.Simulator.Modal.Image == "" {
		return cfg, fmt.Errorf("simulator: modal backend needs an image")
	}
	if cfg.Simulator.Backend == models.BackendApple && cfg.Simulator.Apple.Image == "" {
		return cfg, fmt.Errorf("simulator: apple backend needs an image")
	}
	if cfg.Simulator.TimeoutSec < 0 {
		return cfg, fmt.Errorf("simulator: negative timeout_sec")
	}

	seen := make(map[string]bool)
	for i := range cfg.Experiments {
		exp := &cfg.Experiments[i]
		if exp.Name == "" {
			return cfg, fmt.Errorf("experiments[%d]: missing name", i)
		}
		if seen[exp.Name] {
			return cfg, fmt.Errorf("experiments[%d]: duplicate name %q", i, exp.Name)
		}
		seen[exp.Name] = true
		if exp.Design == "" {
			return cfg, fmt.Errorf("experiment %s: missing design", exp.Name)
		}
		params, err := models.ParametersFrom(exp.RawParameters, exp.Name+".parameters")
		if err != nil {
			return cfg, fmt.Errorf("experiment %s: %w", exp.Name, err)
		}
		exp.Parameters = params
	}

	// Apply defaults for missing values
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = "results"
	}
	if cfg.Simulator.Backend == "" {
		cfg.Simulator.Backend = models.BackendLocal
	}
	if cfg.Simulator.Path == "" {
		cfg.Simulator.Path = "new_fdm"
	}
	if cfg.Simulator.TimeoutSec == 0 {
		cfg.Simulator.TimeoutSec = 300
	}
	if cfg.Search.InitialUpperBound == 0 {
		cfg.Search.InitialUpperBound = 50
	}
	if cfg.Search.MaxIterations == 0 {
		cfg.Search.MaxIterations = 200
	}
	if cfg.Simulator.Modal.Memory != "" {
		mb, err := util.ParseMemory(cfg.Simulator.Modal.Memory)
		if err != nil {
			return cfg, fmt.Errorf("parsing modal memory %q: %w", cfg.Simulator.Modal.Memory, err)
		}
		cfg.Simulator.Modal.MemoryMB = mb
	}
	if cfg.Simulator.Apple.Memory != "" {
		mb, err := util.ParseMemory(cfg.Simulator.Apple.Memory)
		if err != nil {
			return cfg, fmt.Errorf("parsing apple memory %q: %w", cfg.Simulator.Apple.Memory, err)
		}
		cfg.Simulator.Apple.MemoryMB = mb
	}

	base := filepath.Dir(path)
	cfg.ResultsDir = resolve(base, cfg.ResultsDir)
	cfg.Catalog = resolve(base, cfg.Catalog)
	for i := range cfg.Experiments {
		exp := &cfg.Experiments[i]
		exp.Design = resolve(base, exp.Design)
		exp.Testbench = resolve(base, exp.Testbench)
		exp.PropellersData = resolve(base, exp.PropellersData)
	}

	return cfg, nil
}

// Experiment looks up an experiment by name.
func Experiment(cfg models.Config, name string) (models.ExperimentConfig, bool) {
	i := slices.IndexFunc(cfg.Experiments, func(e models.ExperimentConfig) bool { return e.Name == name })
	if i < 0 {
		return models.ExperimentConfig{}, false
	}
	return cfg.Experiments[i], true
}

// ExperimentNames lists the configured experiments, sorted.
func ExperimentNames(cfg models.Config) []string {
	names := make([]string, len(cfg.Experiments))
	for i, e := range cfg.Experiments {
		names[i] = e.Name
	}
	slices.Sort(names)
	return names
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
