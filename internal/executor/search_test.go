package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/executor"
	"github.com/symbench/fdmopt/internal/models"
)

// curveEvaluator scores each lateral speed from a table and reports a fixed reachable speed.
type curveEvaluator struct {
	scores     map[float64]float64
	maxLateral float64
	failAt     float64
	asked      []models.Requirement
}

func (e *curveEvaluator) RunFor(_ context.Context, params models.Parameters, req models.Requirement) (*models.RunRecord, error) {
	e.asked = append(e.asked, req)
	rec := &models.RunRecord{
		Parameters:  params,
		Requirement: req,
		Score:       e.scores[req.LateralSpeed],
		Passes: map[models.Path]*models.PassResult{
			models.PathRacingOval: {Summary: models.FlightSummary{MaxLateralSpeed: e.maxLateral}},
		},
	}
	if e.failAt != 0 && req.LateralSpeed == e.failAt {
		rec.AnalysisError = true
		return rec, &models.ExecutionTimeoutError{Path: models.PathCircle, Timeout: "5m0s"}
	}
	return rec, nil
}

func TestBestScoreFor(t *testing.T) {
	tests := []struct {
		name        string
		eval        curveEvaluator
		opts        executor.SearchOptions
		wantScore   float64
		wantLateral float64
		wantEvals   int
	}{
		{
			name:        "best in the middle",
			eval:        curveEvaluator{scores: map[float64]float64{35: 5, 36: 9, 37: 7}, maxLateral: 37},
			opts:        executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2},
			wantScore:   9,
			wantLateral: 36,
			wantEvals:   3,
		},
		{
			name:        "reachable speed below start stops after one",
			eval:        curveEvaluator{scores: map[float64]float64{35: 4}, maxLateral: 20},
			opts:        executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2},
			wantScore:   4,
			wantLateral: 35,
			wantEvals:   1,
		},
		{
			name:        "no positive score keeps the starting requirement",
			eval:        curveEvaluator{scores: map[float64]float64{}, maxLateral: 38},
			opts:        executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2},
			wantScore:   0,
			wantLateral: 35,
			wantEvals:   4,
		},
		{
			name:        "start above initial upper bound evaluates nothing",
			eval:        curveEvaluator{maxLateral: 100},
			opts:        executor.SearchOptions{MinLateralSpeed: 60, VerticalSpeed: -2},
			wantScore:   0,
			wantLateral: 60,
			wantEvals:   0,
		},
		{
			name:        "ties keep the first requirement",
			eval:        curveEvaluator{scores: map[float64]float64{10: 3, 11: 3}, maxLateral: 11},
			opts:        executor.SearchOptions{MinLateralSpeed: 10, VerticalSpeed: 0},
			wantScore:   3,
			wantLateral: 10,
			wantEvals:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := executor.BestScoreFor(context.Background(), &tt.eval, models.Parameters{"arm_length": 220}, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.wantLateral, res.Requirement.LateralSpeed)
			assert.Equal(t, tt.opts.VerticalSpeed, res.Requirement.VerticalSpeed)
			assert.Equal(t, tt.wantEvals, res.Evaluations)
			assert.Len(t, res.Runs, tt.wantEvals)
			assert.False(t, res.Capped)
		})
	}
}

func TestBestScoreForDeterministic(t *testing.T) {
	run := func() executor.SearchResult {
		ev := &curveEvaluator{scores: map[float64]float64{35: 1, 36: 8, 37: 8, 38: 2}, maxLateral: 38}
		res, err := executor.BestScoreFor(context.Background(), ev, nil, executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2})
		require.NoError(t, err)
		res.Runs = nil
		return res
	}
	assert.Equal(t, run(), run())
}

func TestBestScoreForRequirementIsCopied(t *testing.T) {
	ev := &curveEvaluator{scores: map[float64]float64{35: 9, 36: 1, 37: 1}, maxLateral: 37}
	res, err := executor.BestScoreFor(context.Background(), ev, nil, executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2})
	require.NoError(t, err)

	assert.Equal(t, models.Requirement{LateralSpeed: 35, VerticalSpeed: -2}, res.Requirement)
	assert.Equal(t, []float64{35, 36, 37}, []float64{ev.asked[0].LateralSpeed, ev.asked[1].LateralSpeed, ev.asked[2].LateralSpeed})
}

func TestBestScoreForIterationCap(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ev := &curveEvaluator{scores: map[float64]float64{}, maxLateral: 1000}

	res, err := executor.BestScoreFor(context.Background(), ev, nil, executor.SearchOptions{
		MinLateralSpeed:   1,
		InitialUpperBound: 1000,
		MaxIterations:     5,
		Log:               logrus.NewEntry(logger),
	})
	require.NoError(t, err)

	assert.True(t, res.Capped)
	assert.Equal(t, 5, res.Evaluations)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBestScoreForStopsOnError(t *testing.T) {
	ev := &curveEvaluator{scores: map[float64]float64{35: 6}, maxLateral: 40, failAt: 36}

	res, err := executor.BestScoreFor(context.Background(), ev, nil, executor.SearchOptions{MinLateralSpeed: 35})
	var te *models.ExecutionTimeoutError
	require.True(t, errors.As(err, &te))

	assert.Equal(t, 2, res.Evaluations)
	assert.Len(t, res.Runs, 2)
	assert.Equal(t, 6.0, res.Score)
}

func TestBestScoreForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := &curveEvaluator{maxLateral: 40}
	res, err := executor.BestScoreFor(ctx, ev, nil, executor.SearchOptions{MinLateralSpeed: 35})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Evaluations)
	assert.Empty(t, ev.asked)
}
