package executor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/symbench/fdmopt/internal/models"
)

// Search defaults.
const (
	DefaultMinLateralSpeed   = 35
	DefaultVerticalSpeed     = -2
	DefaultInitialUpperBound = 50
	DefaultMaxIterations     = 200
)

// Evaluator runs one parameter/requirement pair. *Experiment is the production implementation.
type Evaluator interface {
	RunFor(ctx context.Context, params models.Parameters, req models.Requirement) (*models.RunRecord, error)
}

// SearchOptions tunes BestScoreFor.
type SearchOptions struct {
	MinLateralSpeed   float64
	VerticalSpeed     float64
	InitialUpperBound float64
	MaxIterations     int
	Log               *logrus.Entry
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.InitialUpperBound <= 0 {
		o.InitialUpperBound = DefaultInitialUpperBound
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Log == nil {
		o.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// SearchResult is the outcome of the search at one design point.
type SearchResult struct {
	Score       float64
	Requirement models.Requirement
	Evaluations int
	Runs        []*models.RunRecord
	// Capped is set when the search stopped at MaxIterations.
	Capped bool
}

// BestScoreFor raises the requested lateral speed one unit at a time, starting at
// opts.MinLateralSpeed, while it stays within the lateral speed the design last reported it
// can reach. It returns the best total score seen and the requirement that produced it.
// When no evaluation scores above zero the starting requirement is reported.
//
// The first evaluation error ends the search; the partial result is returned with it.
func BestScoreFor(ctx context.Context, ev Evaluator, params models.Parameters, opts SearchOptions) (SearchResult, error) {
	opts = opts.withDefaults()

	req := models.Requirement{LateralSpeed: opts.MinLateralSpeed, VerticalSpeed: opts.VerticalSpeed}
	res := SearchResult{Requirement: req}
	upper := opts.InitialUpperBound

	for req.LateralSpeed <= upper {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Evaluations >= opts.MaxIterations {
			res.Capped = true
			opts.Log.WithFields(logrus.Fields{
				"parameters":     params,
				"max_iterations": opts.MaxIterations,
				"upper_bound":    upper,
			}).Warn("search stopped at iteration limit")
			break
		}

		rec, err := ev.RunFor(ctx, params, req)
		res.Evaluations++
		if rec != nil {
			res.Runs = append(res.Runs, rec)
		}
		if err != nil {
			return res, err
		}

		upper = rec.MaxLateralSpeed()
		if rec.Score > res.Score {
			res.Score = rec.Score
			res.Requirement = req
		}
		req.LateralSpeed++
	}
	return res, nil
}
