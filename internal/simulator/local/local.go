// Package local runs the simulator executable on this host.
package local

import (
	"context"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/simulator"
)

// Simulator runs new_fdm as a child process in the run's working directory.
type Simulator struct {
	binary string
}

// New creates a local simulator for the given executable path or name on PATH.
func New(binary string) *Simulator {
	if binary == "" {
		binary = "new_fdm"
	}
	return &Simulator{binary: binary}
}

// Name returns the backend name.
func (s *Simulator) Name() string {
	return models.BackendLocal
}

// Run executes one analysis pass.
func (s *Simulator) Run(ctx context.Context, inv simulator.Invocation) (*models.PassResult, error) {
	if err := simulator.RunProcess(ctx, inv, s.binary); err != nil {
		return nil, err
	}
	return simulator.Collect(inv)
}
