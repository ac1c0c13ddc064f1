package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/catalog"
	"github.com/symbench/fdmopt/internal/config"
	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/session"
	"github.com/symbench/fdmopt/internal/simulator"
	"github.com/symbench/fdmopt/internal/simulator/apple"
	"github.com/symbench/fdmopt/internal/simulator/docker"
	"github.com/symbench/fdmopt/internal/simulator/local"
	"github.com/symbench/fdmopt/internal/simulator/modal"
)

// NewSimulator creates the simulator backend selected by cfg.
func NewSimulator(cfg models.SimulatorConfig) (simulator.Simulator, error) {
	switch cfg.Backend {
	case "", models.BackendLocal:
		return local.New(cfg.Path), nil
	case models.BackendDocker:
		return docker.New(cfg.Docker.Image, cfg.Path), nil
	case models.BackendModal:
		return modal.New(cfg.Modal, cfg.Path)
	case models.BackendApple:
		return apple.New(cfg.Apple, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported simulator backend: %s", cfg.Backend)
	}
}

// CloseSimulator releases backend resources, if the backend holds any.
func CloseSimulator(ctx context.Context, sim simulator.Simulator) error {
	if c, ok := sim.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

// PrepareSimulator readies the backend before the first pass. The docker backend pulls its image.
func PrepareSimulator(ctx context.Context, sim simulator.Simulator) error {
	if p, ok := sim.(interface{ PullImage(context.Context) error }); ok {
		return p.PullImage(ctx)
	}
	return nil
}

// NewExperimentFromConfig loads the experiment's design and the catalog, applies the fixed
// parameters and propeller choice, and starts a session for it.
func NewExperimentFromConfig(cfg models.Config, exp models.ExperimentConfig, sim simulator.Simulator, log *logrus.Entry) (*Experiment, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	cat, err := catalog.Load(os.DirFS(filepath.Dir(cfg.Catalog)), filepath.Base(cfg.Catalog))
	if err != nil {
		return nil, err
	}
	d, err := config.LoadDesign(os.DirFS(filepath.Dir(exp.Design)), filepath.Base(exp.Design))
	if err != nil {
		return nil, err
	}

	if ignored := d.SetParameters(exp.Parameters); len(ignored) > 0 {
		log.WithFields(logrus.Fields{
			"ignored":  ignored,
			"accepted": d.AcceptedParameters(),
		}).Warn("design does not accept experiment parameters")
	}
	if exp.Propeller != "" {
		d, err = design.AssignPropeller(d, cat, exp.Propeller)
		if err != nil {
			return nil, fmt.Errorf("experiment %s: %w", exp.Name, err)
		}
	}

	sess, err := session.Start(session.Options{
		ResultsDir: cfg.ResultsDir,
		Design:     d,
		Testbench:  exp.Testbench,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"experiment": exp.Name,
		"session":    sess.Dir,
		"backend":    sim.Name(),
	}).Info("session started")

	return NewExperiment(ExperimentOptions{
		Design:        d,
		Catalog:       cat,
		Session:       sess,
		Simulator:     sim,
		PropellersDir: exp.PropellersData,
		Timeout:       time.Duration(cfg.Simulator.TimeoutSec * float64(time.Second)),
		Log:           log,
	}), nil
}
