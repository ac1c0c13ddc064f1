// Package modal runs the simulator in a Modal sandbox.
package modal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/modal-labs/libmodal/modal-go"
	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/simulator"
)

const remoteRoot = "/work"

// Simulator runs every invocation in one shared sandbox, each in its own remote directory.
type Simulator struct {
	client *modal.Client
	cfg    models.ModalConfig
	binary string
	log    *logrus.Entry

	mu      sync.Mutex
	sandbox *modal.Sandbox
}

// New creates a Modal simulator. The sandbox is started on the first run.
func New(cfg models.ModalConfig, binary string) (*Simulator, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("modal: image is required")
	}
	if binary == "" {
		binary = "new_fdm"
	}
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}
	return &Simulator{
		client: client,
		cfg:    cfg,
		binary: binary,
		log:    logrus.WithField("backend", models.BackendModal),
	}, nil
}

// Name returns the backend name.
func (s *Simulator) Name() string {
	return models.BackendModal
}

func (s *Simulator) ensureSandbox(ctx context.Context) (*modal.Sandbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sandbox != nil {
		return s.sandbox, nil
	}

	appName := s.cfg.AppName
	if appName == "" {
		appName = fmt.Sprintf("fdmopt-%d", time.Now().UnixNano())
	}
	app, err := s.client.Apps.FromName(ctx, appName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal app: %w", err)
	}

	image := s.client.Images.FromRegistry(s.cfg.Image, nil)

	cpus := s.cfg.CPUs
	if cpus <= 0 {
		cpus = 1
	}
	memoryMiB := s.cfg.MemoryMB
	if memoryMiB <= 0 {
		memoryMiB = 2048
	}

	s.log.WithFields(logrus.Fields{
		"app":        appName,
		"image":      s.cfg.Image,
		"cpus":       cpus,
		"memory_mib": memoryMiB,
		"regions":    s.cfg.Regions,
	}).Debug("creating modal sandbox")

	sb, err := s.client.Sandboxes.Create(ctx, app, image, &modal.SandboxCreateParams{
		CPU:       cpus,
		MemoryMiB: memoryMiB,
		Timeout:   24 * time.Hour,
		Regions:   s.cfg.Regions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal sandbox: %w", err)
	}
	s.log.WithField("sandbox_id", sb.SandboxID).Debug("modal sandbox created")
	s.sandbox = sb
	return sb, nil
}

// Close terminates the sandbox if one was started.
func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sandbox == nil {
		return nil
	}
	err := s.sandbox.Terminate(ctx)
	s.sandbox = nil
	if err != nil && !strings.Contains(err.Error(), "already terminated") {
		return fmt.Errorf("terminating sandbox: %w", err)
	}
	return nil
}

// Run uploads the input document, runs the simulator remotely and downloads its output.
func (s *Simulator) Run(ctx context.Context, inv simulator.Invocation) (*models.PassResult, error) {
	sb, err := s.ensureSandbox(ctx)
	if err != nil {
		return nil, err
	}

	dir := RemoteDir(inv)
	if code, err := execSimple(ctx, sb, fmt.Sprintf("mkdir -p %q", dir)); err != nil || code != 0 {
		return nil, fmt.Errorf("creating remote directory %s: exit %d: %v", dir, code, err)
	}
	defer func() {
		if _, err := execSimple(context.Background(), sb, fmt.Sprintf("rm -rf %q", dir)); err != nil {
			s.log.WithError(err).WithField("dir", dir).Warn("removing remote directory")
		}
	}()

	if err := upload(ctx, sb, filepath.Join(inv.WorkDir, inv.InputPath), path.Join(dir, inv.InputPath)); err != nil {
		return nil, err
	}

	timeout := inv.Deadline()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	code, err := s.exec(runCtx, sb, dir, Command(s.binary, inv), &stderr, timeout)
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return nil, &models.ExecutionTimeoutError{Path: inv.Path, Timeout: timeout.String()}
	case err != nil:
		return nil, err
	case code != 0:
		return nil, &models.SimulatorFailedError{Path: inv.Path, ExitCode: code, Stderr: stderr.String()}
	}

	if err := download(ctx, sb, path.Join(dir, inv.ReportPath), filepath.Join(inv.WorkDir, inv.ReportPath)); err != nil {
		return nil, err
	}
	// A design without a trim state may not get a metrics file
	if err := download(ctx, sb, path.Join(dir, simulator.MetricsFile), filepath.Join(inv.WorkDir, simulator.MetricsFile)); err != nil {
		s.log.WithError(err).WithField("path", inv.Path).Debug("no metrics file")
	}

	return simulator.Collect(inv)
}

// RemoteDir is the sandbox directory used by inv.
func RemoteDir(inv simulator.Invocation) string {
	return path.Join(remoteRoot, filepath.Base(inv.WorkDir))
}

// Command is the shell command that runs one pass inside the sandbox.
func Command(binary string, inv simulator.Invocation) string {
	return fmt.Sprintf("%s < %q > %q", binary, inv.InputPath, inv.ReportPath)
}

func (s *Simulator) exec(ctx context.Context, sb *modal.Sandbox, dir, cmd string, stderr io.Writer, timeout time.Duration) (int, error) {
	s.log.WithFields(logrus.Fields{
		"sandbox_id": sb.SandboxID,
		"command":    cmd,
		"timeout":    timeout,
	}).Debug("executing command in modal sandbox")

	process, err := sb.Exec(ctx, []string{"bash", "-c", cmd}, &modal.SandboxExecParams{
		Workdir: dir,
		Timeout: timeout,
	})
	if err != nil {
		return -1, fmt.Errorf("executing command: %w", err)
	}

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(io.Discard, process.Stdout)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(stderr, process.Stderr)
		done <- struct{}{}
	}()
	<-done
	<-done

	code, err := process.Wait(ctx)
	if err != nil {
		return -1, fmt.Errorf("waiting for process: %w", err)
	}
	return code, nil
}

func execSimple(ctx context.Context, sb *modal.Sandbox, cmd string) (int, error) {
	process, err := sb.Exec(ctx, []string{"bash", "-c", cmd}, &modal.SandboxExecParams{})
	if err != nil {
		return -1, err
	}
	io.Copy(io.Discard, process.Stdout)
	io.Copy(io.Discard, process.Stderr)
	return process.Wait(ctx)
}

func upload(ctx context.Context, sb *modal.Sandbox, src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	f, err := sb.Open(ctx, dst, "w")
	if err != nil {
		return fmt.Errorf("opening %s in sandbox: %w", dst, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := f.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", dst, err)
	}
	return f.Close()
}

func download(ctx context.Context, sb *modal.Sandbox, src, dst string) error {
	f, err := sb.Open(ctx, src, "r")
	if err != nil {
		return fmt.Errorf("opening %s in sandbox: %w", src, err)
	}
	content, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
