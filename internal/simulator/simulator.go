// Package simulator runs the flight dynamics executable for one analysis pass and collects
// what it wrote.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/symbench/fdmopt/internal/fdm"
	"github.com/symbench/fdmopt/internal/models"
)

// DefaultTimeout is the wall-clock limit of one simulator invocation.
const DefaultTimeout = 300 * time.Second

// MetricsFile is the side file the simulator writes into its working directory.
const MetricsFile = "metrics.out"

// Invocation describes one simulator run. InputPath and ReportPath are relative to WorkDir.
type Invocation struct {
	Path        models.Path
	Requirement models.Requirement
	WorkDir     string
	InputPath   string
	ReportPath  string
	Timeout     time.Duration
}

// Deadline returns the invocation timeout, or DefaultTimeout when unset.
func (inv Invocation) Deadline() time.Duration {
	if inv.Timeout > 0 {
		return inv.Timeout
	}
	return DefaultTimeout
}

// Simulator runs one analysis pass. On success the input document, the report and
// MetricsFile are present in WorkDir.
type Simulator interface {
	// Name returns the backend name (e.g., "local", "docker", "modal").
	Name() string

	// Run executes the simulator with the input document on stdin and the report on stdout.
	// It returns *models.ExecutionTimeoutError when the deadline passes and
	// *models.SimulatorFailedError on a nonzero exit. No metrics are returned in either case.
	Run(ctx context.Context, inv Invocation) (*models.PassResult, error)
}

// Collect parses the files a finished run left in its working directory.
func Collect(inv Invocation) (*models.PassResult, error) {
	input, err := os.ReadFile(filepath.Join(inv.WorkDir, inv.InputPath))
	if err != nil {
		return nil, fmt.Errorf("reading input document: %w", err)
	}
	report, err := os.ReadFile(filepath.Join(inv.WorkDir, inv.ReportPath))
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	metrics, err := os.ReadFile(filepath.Join(inv.WorkDir, MetricsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading metrics: %w", err)
	}

	echo, err := fdm.ParseInputEcho(string(input))
	if err != nil {
		return nil, err
	}

	parsed := fdm.ParseFlightSummary(string(report), string(metrics))
	summary, err := parsed.Resolve()
	if err != nil {
		return nil, err
	}

	paths, err := fdm.ParsePathMetrics(string(metrics))
	if err != nil {
		return nil, err
	}

	noTrim := parsed.Status == fdm.StatusNoTrim
	if _, ok := paths[inv.Path]; !ok && noTrim {
		paths[inv.Path] = models.PathMetric{Path: inv.Path}
	}

	return &models.PassResult{
		Path:    inv.Path,
		Input:   echo,
		Summary: summary,
		NoTrim:  noTrim,
		Paths:   paths,
	}, nil
}
