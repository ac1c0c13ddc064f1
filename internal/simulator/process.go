package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/symbench/fdmopt/internal/models"
)

// waitDelay bounds how long Wait blocks on output pipes after the process was killed.
const waitDelay = 5 * time.Second

// RunProcess runs name with args in inv.WorkDir, feeding the input document on stdin and
// writing stdout to the report file. Timeouts and nonzero exits come back as typed errors.
func RunProcess(ctx context.Context, inv Invocation, name string, args ...string) error {
	timeout := inv.Deadline()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdin, err := os.Open(filepath.Join(inv.WorkDir, inv.InputPath))
	if err != nil {
		return fmt.Errorf("opening input document: %w", err)
	}
	defer stdin.Close()

	stdout, err := os.Create(filepath.Join(inv.WorkDir, inv.ReportPath))
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer stdout.Close()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = inv.WorkDir
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err = cmd.Run()
	if err == nil {
		return nil
	}

	// Check for timeout before the exit status: a killed process also reports an ExitError
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.ExecutionTimeoutError{Path: inv.Path, Timeout: timeout.String()}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("running %s: %w", name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &models.SimulatorFailedError{
			Path:     inv.Path,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("running %s: %w", name, err)
}
