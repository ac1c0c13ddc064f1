package models

// Simulator backends.
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
	BackendModal  = "modal"
	BackendApple  = "apple"
)

// Config represents the experiments.yaml file.
type Config struct {
	ResultsDir  string             `yaml:"results_dir"`
	Catalog     string             `yaml:"catalog"`
	Simulator   SimulatorConfig    `yaml:"simulator"`
	Search      SearchConfig       `yaml:"search"`
	Sweep       []SweepEntry       `yaml:"sweep"`
	Experiments []ExperimentConfig `yaml:"experiments"`
}

// SimulatorConfig selects and configures the backend that runs new_fdm.
type SimulatorConfig struct {
	Backend    string       `yaml:"backend"`
	Path       string       `yaml:"path"`
	TimeoutSec float64      `yaml:"timeout_sec"`
	Docker     DockerConfig `yaml:"docker"`
	Modal      ModalConfig  `yaml:"modal"`
	Apple      AppleConfig  `yaml:"apple"`
}

type DockerConfig struct {
	Image string `yaml:"image"`
}

// AppleConfig configures the macOS container backend.
type AppleConfig struct {
	Image    string `yaml:"image"`
	CPUs     int    `yaml:"cpus"`
	Memory   string `yaml:"memory"`
	MemoryMB int    `yaml:"-"`
}

type ModalConfig struct {
	AppName  string   `yaml:"app_name"`
	Image    string   `yaml:"image"`
	CPUs     float64  `yaml:"cpus"`
	Memory   string   `yaml:"memory"`
	MemoryMB int      `yaml:"-"`
	Regions  []string `yaml:"regions"`
}

// SearchConfig tunes the per-point search and the sweep.
type SearchConfig struct {
	InitialUpperBound float64 `yaml:"initial_upper_bound"`
	MaxIterations     int     `yaml:"max_iterations"`
	FailFast          bool    `yaml:"fail_fast"`
	MaxTasks          int     `yaml:"max_tasks"`
	RecordRuns        bool    `yaml:"record_runs"`
}

// SweepEntry is one swept parameter. Exactly one of Values, Linspace or Geomspace is set.
type SweepEntry struct {
	Name      string    `yaml:"name"`
	Values    []float64 `yaml:"values"`
	Linspace  *Range    `yaml:"linspace"`
	Geomspace *Range    `yaml:"geomspace"`
}

type Range struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Num   int     `yaml:"num"`
}

// ExperimentConfig names a seed design, its testbench and fixed parameter overrides.
type ExperimentConfig struct {
	Name           string     `yaml:"name"`
	Design         string     `yaml:"design"`
	Testbench      string     `yaml:"testbench"`
	PropellersData string     `yaml:"propellers_data"`
	Propeller      string     `yaml:"propeller"`
	RawParameters  any        `yaml:"parameters"`
	Parameters     Parameters `yaml:"-"`
}
