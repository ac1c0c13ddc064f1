package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/catalog"
	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/fdm"
	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/session"
	"github.com/symbench/fdmopt/internal/simulator"
)

// ExperimentOptions configures NewExperiment.
type ExperimentOptions struct {
	Design        *design.Design
	Catalog       *catalog.Catalog
	Session       *session.Session
	Simulator     simulator.Simulator
	PropellersDir string
	Timeout       time.Duration
	Log           *logrus.Entry
}

// Experiment evaluates parameter/requirement pairs for one design inside one session.
// An Experiment mutates its design and must not be shared between goroutines; use Fork.
type Experiment struct {
	design        *design.Design
	catalog       *catalog.Catalog
	session       *session.Session
	sim           simulator.Simulator
	propellersDir string
	timeout       time.Duration
	log           *logrus.Entry
}

// NewExperiment creates an experiment from opts.
func NewExperiment(opts ExperimentOptions) *Experiment {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = simulator.DefaultTimeout
	}
	return &Experiment{
		design:        opts.Design,
		catalog:       opts.Catalog,
		session:       opts.Session,
		sim:           opts.Simulator,
		propellersDir: opts.PropellersDir,
		timeout:       timeout,
		log:           log.WithField("design", opts.Design.Class),
	}
}

// Fork returns an experiment with its own copy of the design, sharing everything else.
func (e *Experiment) Fork() *Experiment {
	f := *e
	f.design = e.design.Clone()
	return &f
}

// Design returns the experiment's working design.
func (e *Experiment) Design() *design.Design {
	return e.design
}

// Session returns the session the experiment writes into.
func (e *Experiment) Session() *session.Session {
	return e.session
}

// RunFor sets params on the design and runs every analysis pass against req.
// Parameters the design does not accept are ignored. On failure the partial record is returned
// together with the error.
func (e *Experiment) RunFor(ctx context.Context, params models.Parameters, req models.Requirement) (*models.RunRecord, error) {
	if ignored := e.design.SetParameters(params); len(ignored) > 0 {
		e.log.WithField("ignored", ignored).Debug("design does not accept parameters")
	}

	runID, dir, err := e.session.BeginRun(e.design)
	if err != nil {
		return nil, err
	}

	rec := &models.RunRecord{
		RunID:       runID,
		Design:      e.design.Class,
		Parameters:  e.design.Parameters.Clone(),
		Requirement: req,
		Passes:      make(map[models.Path]*models.PassResult, len(models.AllPaths)),
		PathMetrics: make(map[models.Path]models.PathMetric, len(models.AllPaths)),
		StartedAt:   time.Now(),
	}
	defer func() {
		rec.EndedAt = time.Now()
	}()

	log := e.log.WithFields(logrus.Fields{
		"guid":                  runID,
		models.LateralSpeedKey:  req.LateralSpeed,
		models.VerticalSpeedKey: req.VerticalSpeed,
	})

	for _, p := range models.AllPaths {
		res, err := e.runPass(ctx, dir, p, req)
		if err != nil {
			rec.AnalysisError = true
			rec.Error = runError(err)
			log.WithError(err).WithField("path", p).Debug("analysis pass failed")
			return rec, fmt.Errorf("path %d: %w", p, err)
		}
		rec.Passes[p] = res

		m, err := res.Metric()
		if err != nil {
			rec.AnalysisError = true
			rec.Error = runError(err)
			return rec, fmt.Errorf("path %d: %w", p, err)
		}
		rec.PathMetrics[p] = m
		log.WithFields(logrus.Fields{
			"path":       p,
			"path_score": m.PathScore,
			"no_trim":    res.NoTrim,
		}).Debug("analysis pass done")
	}

	score, err := fdm.TotalScore(rec.PathMetrics)
	if err != nil {
		rec.AnalysisError = true
		rec.Error = runError(err)
		return rec, err
	}
	rec.Score = score
	log.WithField("score", score).Debug("evaluation done")
	return rec, nil
}

func (e *Experiment) runPass(ctx context.Context, dir string, p models.Path, req models.Requirement) (*models.PassResult, error) {
	inv := simulator.Invocation{
		Path:        p,
		Requirement: req.ForPass(p),
		WorkDir:     dir,
		InputPath:   fdm.InputFileName(p),
		ReportPath:  fdm.ReportFileName(p),
		Timeout:     e.timeout,
	}

	f, err := os.Create(filepath.Join(dir, inv.InputPath))
	if err != nil {
		return nil, fmt.Errorf("creating input document: %w", err)
	}
	err = fdm.Render(f, fdm.Input{
		Design:        e.design,
		Catalog:       e.catalog,
		Requirement:   req,
		Path:          p,
		PropellersDir: e.propellersDir,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("rendering input document: %w", err)
	}

	res, err := e.sim.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	if err := relocateMetrics(dir, p); err != nil {
		return nil, err
	}
	if err := cleanupTransient(dir); err != nil {
		e.log.WithError(err).WithField("dir", dir).Warn("removing transient simulator output")
	}
	return res, nil
}

// relocateMetrics renames metrics.out so the next pass does not overwrite it.
func relocateMetrics(dir string, p models.Path) error {
	src := filepath.Join(dir, simulator.MetricsFile)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Rename(src, filepath.Join(dir, fdm.MetricsFileName(p))); err != nil {
		return fmt.Errorf("relocating metrics: %w", err)
	}
	return nil
}

// cleanupTransient removes simulator scratch output, keeping reports and relocated metrics.
func cleanupTransient(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.out"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasPrefix(base, "FlightDynReport_Path") || strings.HasPrefix(base, "metrics_Path") {
			continue
		}
		if err := os.Remove(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runError(err error) *models.RunError {
	var te models.TypedError
	if errors.As(err, &te) {
		return &models.RunError{Type: te.Type(), Message: err.Error()}
	}
	return &models.RunError{Type: models.ErrInternalError, Message: err.Error()}
}
