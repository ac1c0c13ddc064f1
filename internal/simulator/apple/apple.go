// Package apple runs the simulator with the macOS container CLI.
package apple

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/simulator"
)

const (
	containerWorkDir = "/work"
	deleteTimeout    = 30 * time.Second
)

// Simulator runs each pass in a throwaway Apple container with the run directory mounted.
type Simulator struct {
	cfg    models.AppleConfig
	binary string
	cli    string
}

// New creates an Apple container simulator. The container CLI must be installed.
func New(cfg models.AppleConfig, binary string) (*Simulator, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("apple: image is required")
	}
	if _, err := exec.LookPath("container"); err != nil {
		return nil, fmt.Errorf("apple container CLI not found: install from https://github.com/apple/container or run: brew install container")
	}
	return newSimulator(cfg, binary, "container"), nil
}

func newSimulator(cfg models.AppleConfig, binary, cli string) *Simulator {
	if binary == "" {
		binary = "new_fdm"
	}
	return &Simulator{cfg: cfg, binary: binary, cli: cli}
}

// Name returns the backend name.
func (s *Simulator) Name() string {
	return models.BackendApple
}

// Args returns the container command line for one invocation.
func (s *Simulator) Args(inv simulator.Invocation) ([]string, error) {
	if err := validatePath(inv.WorkDir); err != nil {
		return nil, err
	}
	workDir, err := filepath.Abs(inv.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}

	args := []string{
		"run", "--rm", "-i",
		"--name", ContainerName(inv),
	}
	if s.cfg.CPUs > 0 {
		args = append(args, "--cpus", strconv.Itoa(s.cfg.CPUs))
	}
	if s.cfg.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", s.cfg.MemoryMB))
	}
	return append(args,
		"--volume", workDir+":"+containerWorkDir,
		"--workdir", containerWorkDir,
		s.cfg.Image,
		s.binary,
	), nil
}

// Run executes one analysis pass.
func (s *Simulator) Run(ctx context.Context, inv simulator.Invocation) (*models.PassResult, error) {
	args, err := s.Args(inv)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"container": ContainerName(inv),
		"image":     s.cfg.Image,
		"cpus":      s.cfg.CPUs,
		"memory_mb": s.cfg.MemoryMB,
	}).Debug("running apple container")

	if err := simulator.RunProcess(ctx, inv, s.cli, args...); err != nil {
		var timeout *models.ExecutionTimeoutError
		if errors.As(err, &timeout) || ctx.Err() != nil {
			s.delete(ContainerName(inv))
		}
		return nil, err
	}
	return simulator.Collect(inv)
}

// ContainerName is the name of the container running inv.
func ContainerName(inv simulator.Invocation) string {
	return fmt.Sprintf("fdmopt-%s-path%d", filepath.Base(inv.WorkDir), inv.Path)
}

func (s *Simulator) delete(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, s.cli, "delete", "--force", name).CombinedOutput()
	if err != nil && !strings.Contains(string(out), "not found") {
		logrus.WithError(err).WithField("container", name).Warn("deleting timed out container")
	}
}

// validatePath rejects paths containing ".." segments.
func validatePath(path string) error {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("invalid path: contains directory traversal: %q", path)
		}
	}
	return nil
}
