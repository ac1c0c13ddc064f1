package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/session"
	"github.com/symbench/fdmopt/internal/sweep"
)

// OrchestratorOptions configures NewOrchestrator.
type OrchestratorOptions struct {
	Name       string
	Experiment *Experiment
	Spec       sweep.Spec
	Search     SearchOptions
	// Workers <= 1 runs the grid sequentially.
	Workers int
	// MaxTasks caps the number of grid points submitted. Zero means no cap.
	MaxTasks int
	FailFast bool
	// RecordRuns appends every evaluation to the session run log.
	RecordRuns bool
	// OutputPath is the consolidated CSV, one row per grid point.
	OutputPath string
	Log        *logrus.Entry
}

// Orchestrator sweeps a parameter grid, searching the best requirement at every point.
type Orchestrator struct {
	name       string
	exp        *Experiment
	spec       sweep.Spec
	search     SearchOptions
	workers    int
	maxTasks   int
	failFast   bool
	recordRuns bool
	outputPath string
	log        *logrus.Entry
}

type pointOutcome struct {
	index  int
	params models.Parameters
	res    SearchResult
	err    error
}

// NewOrchestrator creates an orchestrator. Sweep axes the design does not accept are dropped.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Experiment == nil {
		return nil, fmt.Errorf("orchestrator: experiment is required")
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("orchestrator: output path is required")
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	search := opts.Search
	if search.Log == nil {
		search.Log = log
	}

	spec := opts.Spec.Restrict(opts.Experiment.Design().Accepts)
	if len(spec) < len(opts.Spec) {
		var dropped []string
		for _, name := range opts.Spec.Names() {
			if !opts.Experiment.Design().Accepts(name) {
				dropped = append(dropped, name)
			}
		}
		log.WithField("parameters", dropped).Info("design does not accept swept parameters, skipping them")
	}

	return &Orchestrator{
		name:       opts.Name,
		exp:        opts.Experiment,
		spec:       spec,
		search:     search,
		workers:    opts.Workers,
		maxTasks:   opts.MaxTasks,
		failFast:   opts.FailFast,
		recordRuns: opts.RecordRuns,
		outputPath: opts.OutputPath,
		log:        log,
	}, nil
}

// Spec returns the sweep restricted to the design's parameters.
func (o *Orchestrator) Spec() sweep.Spec {
	return o.spec
}

// Header is the consolidated CSV header.
func (o *Orchestrator) Header() []string {
	header := append([]string{"score"}, o.spec.Names()...)
	return append(header, models.LateralSpeedKey, models.VerticalSpeedKey)
}

// Optimize runs the search at every grid point and writes one CSV row per successful point.
// A failed point is logged and skipped unless FailFast is set, in which case the first failure
// ends the sweep and is returned.
func (o *Orchestrator) Optimize(ctx context.Context) (*models.SweepResult, error) {
	startTime := time.Now()

	points := o.spec.Points()
	if o.maxTasks > 0 && len(points) > o.maxTasks {
		points = points[:o.maxTasks]
	}

	out, err := session.OpenResultsLog(o.outputPath, o.Header())
	if err != nil {
		return nil, err
	}
	defer out.Close()

	result := &models.SweepResult{
		Experiment:  o.name,
		SessionDir:  o.exp.Session().Dir,
		TotalPoints: len(points),
		StartedAt:   startTime,
	}
	o.log.WithFields(logrus.Fields{
		"points":  len(points),
		"workers": max(o.workers, 1),
		"axes":    o.spec.Names(),
		"output":  o.outputPath,
	}).Info("starting sweep")

	var runErr error
	if o.workers <= 1 {
		runErr = o.runSequential(ctx, points, out, result)
	} else {
		runErr = o.runConcurrent(ctx, points, out, result)
	}

	slices.SortFunc(result.Points, func(a, b models.PointResult) int {
		return a.Index - b.Index
	})
	result.SkippedPoints = max(result.TotalPoints-result.CompletedPoints-result.FailedPoints, 0)
	if result.SkippedPoints > 0 {
		result.Cancelled = true
	}
	result.EndedAt = time.Now()
	result.TotalDurationSec = result.EndedAt.Sub(result.StartedAt).Seconds()

	// Save sweep result
	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	if err := os.WriteFile(filepath.Join(result.SessionDir, "result.json"), resultJSON, 0644); err != nil {
		o.log.WithError(err).Warn("saving sweep result")
	}

	o.log.WithFields(logrus.Fields{
		"completed":   result.CompletedPoints,
		"failed":      result.FailedPoints,
		"skipped":     result.SkippedPoints,
		"evaluations": result.TotalEvaluations,
	}).Info("sweep finished")

	return result, runErr
}

func (o *Orchestrator) runSequential(ctx context.Context, points []models.Parameters, out *session.ResultsLog, result *models.SweepResult) error {
	for i, p := range points {
		if ctx.Err() != nil {
			return nil
		}
		res, err := BestScoreFor(ctx, o.exp, p, o.search)
		if err := o.consume(ctx, pointOutcome{index: i, params: p, res: res, err: err}, out, result); err != nil {
			return err
		}
	}
	return nil
}

// runConcurrent runs one task per point on a bounded pool. Each task evaluates on a forked
// experiment; this goroutine is the only one writing logs.
func (o *Orchestrator) runConcurrent(ctx context.Context, points []models.Parameters, out *session.ResultsLog, result *models.SweepResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	outcomes := make(chan pointOutcome)

	var waitErr error
	go func() {
		defer close(outcomes)
		for i, p := range points {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := BestScoreFor(gctx, o.exp.Fork(), p, o.search)
				outcomes <- pointOutcome{index: i, params: p, res: res, err: err}
				if err != nil && o.failFast {
					return err
				}
				return nil
			})
		}
		waitErr = g.Wait()
	}()

	var consumeErr error
	for oc := range outcomes {
		if err := o.consume(gctx, oc, out, result); err != nil && consumeErr == nil {
			consumeErr = err
		}
	}
	if consumeErr != nil {
		return consumeErr
	}
	return waitErr
}

// consume records one point outcome. It returns an error only when the sweep must stop.
func (o *Orchestrator) consume(ctx context.Context, oc pointOutcome, out *session.ResultsLog, result *models.SweepResult) error {
	result.TotalEvaluations += oc.res.Evaluations
	if o.recordRuns {
		for _, rec := range oc.res.Runs {
			if err := o.exp.Session().FinalizeRun(rec); err != nil {
				o.log.WithError(err).WithField("guid", rec.RunID).Warn("recording run")
			}
		}
	}

	pr := models.PointResult{
		Index:       oc.index,
		Parameters:  oc.params,
		Score:       oc.res.Score,
		Requirement: oc.res.Requirement,
		Evaluations: oc.res.Evaluations,
	}

	if oc.err != nil {
		// points interrupted by cancellation are counted as skipped
		if ctx.Err() != nil && errors.Is(oc.err, ctx.Err()) {
			return nil
		}
		result.FailedPoints++
		pr.Error = runError(oc.err)
		result.Points = append(result.Points, pr)
		o.log.WithError(oc.err).WithFields(logrus.Fields{
			"parameters":  oc.params,
			"requirement": oc.res.Requirement,
			"evaluations": oc.res.Evaluations,
		}).Error("design point failed")
		if o.failFast {
			return fmt.Errorf("design point %v: %w", oc.params, oc.err)
		}
		return nil
	}

	result.CompletedPoints++
	result.Points = append(result.Points, pr)
	if result.Best == nil || pr.Score > result.Best.Score {
		best := pr
		result.Best = &best
	}

	if err := out.Append(o.row(pr)); err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{
		"parameters":  oc.params,
		"score":       pr.Score,
		"requirement": pr.Requirement,
	}).Info("design point done")
	return nil
}

func (o *Orchestrator) row(pr models.PointResult) []string {
	row := []string{formatFloat(pr.Score)}
	for _, name := range o.spec.Names() {
		row = append(row, formatFloat(pr.Parameters[name]))
	}
	return append(row, formatFloat(pr.Requirement.LateralSpeed), formatFloat(pr.Requirement.VerticalSpeed))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
