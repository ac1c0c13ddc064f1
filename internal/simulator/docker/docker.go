// Package docker runs the simulator inside a throwaway container.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/simulator"
)

const (
	containerWorkDir = "/work"
	removeTimeout    = 30 * time.Second
)

// Simulator runs new_fdm in a container with the run directory mounted as its working directory.
type Simulator struct {
	image  string
	binary string
	docker string
}

// New creates a docker simulator. binary is the simulator path inside the image.
func New(image, binary string) *Simulator {
	if binary == "" {
		binary = "new_fdm"
	}
	return &Simulator{image: image, binary: binary, docker: "docker"}
}

// Name returns the backend name.
func (s *Simulator) Name() string {
	return models.BackendDocker
}

// PullImage pulls the simulator image ahead of the first run.
func (s *Simulator) PullImage(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.docker, "pull", s.image)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pulling docker image: %w: %s", err, out)
	}
	return nil
}

// Args returns the docker command line for one invocation.
func (s *Simulator) Args(inv simulator.Invocation) ([]string, error) {
	workDir, err := filepath.Abs(inv.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}
	return []string{
		"run", "--rm", "-i",
		"--name", ContainerName(inv),
		"-v", workDir + ":" + containerWorkDir,
		"-w", containerWorkDir,
		s.image,
		s.binary,
	}, nil
}

// Run executes one analysis pass.
func (s *Simulator) Run(ctx context.Context, inv simulator.Invocation) (*models.PassResult, error) {
	args, err := s.Args(inv)
	if err != nil {
		return nil, err
	}
	if err := simulator.RunProcess(ctx, inv, s.docker, args...); err != nil {
		var timeout *models.ExecutionTimeoutError
		if errors.As(err, &timeout) || ctx.Err() != nil {
			// Killing the client leaves the container running
			s.remove(ContainerName(inv))
		}
		return nil, err
	}
	return simulator.Collect(inv)
}

// ContainerName is the name of the container running inv.
func ContainerName(inv simulator.Invocation) string {
	return fmt.Sprintf("fdmopt-%s-path%d", filepath.Base(inv.WorkDir), inv.Path)
}

func (s *Simulator) remove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, s.docker, "rm", "-f", name).CombinedOutput()
	if err != nil && !strings.Contains(string(out), "No such container") {
		logrus.WithError(err).WithField("container", name).Warn("removing timed out container")
	}
}
