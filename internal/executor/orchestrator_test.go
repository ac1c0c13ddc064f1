package executor_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/executor"
	"github.com/symbench/fdmopt/internal/fdm"
	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/sweep"
)

func gridSpec() sweep.Spec {
	return sweep.Spec{
		{Name: "arm_length", Values: []float64{200, 300}},
		{Name: "wing_span", Values: []float64{1, 2, 3}},
		{Name: "support_length", Values: []float64{50, 90}},
	}
}

func newOrchestrator(t *testing.T, sim *stubSimulator, workers int, failFast bool) (*executor.Orchestrator, string, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	output := filepath.Join(t.TempDir(), "quad_opt.csv")

	o, err := executor.NewOrchestrator(executor.OrchestratorOptions{
		Name:       "quad",
		Experiment: newExperiment(t, sim, log),
		Spec:       gridSpec(),
		Search:     executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2},
		Workers:    workers,
		FailFast:   failFast,
		RecordRuns: true,
		OutputPath: output,
		Log:        log,
	})
	require.NoError(t, err)
	return o, output, hook
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func errorEntries(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			n++
		}
	}
	return n
}

func TestOptimizeSequential(t *testing.T) {
	sim := &stubSimulator{scores: scores(10, 10, 0, 10), maxLateral: 36}
	o, output, hook := newOrchestrator(t, sim, 1, false)

	assert.Equal(t, []string{"arm_length", "support_length"}, o.Spec().Names())

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalPoints)
	assert.Equal(t, 4, result.CompletedPoints)
	assert.Zero(t, result.FailedPoints)
	assert.False(t, result.Cancelled)
	// 35 and 36 at every point
	assert.Equal(t, 8, result.TotalEvaluations)
	assert.Len(t, sim.recorded(), 8*len(models.AllPaths))
	assert.Zero(t, errorEntries(hook))

	rows := readCSV(t, output)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"score", "arm_length", "support_length", "requested_lateral_speed", "requested_vertical_speed"}, rows[0])
	assert.Equal(t, [][]string{
		{"0", "200", "50", "35", "-2"},
		{"0", "200", "90", "35", "-2"},
		{"0", "300", "50", "35", "-2"},
		{"0", "300", "90", "35", "-2"},
	}, rows[1:])
}

func TestOptimizeRecordsRuns(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 2, 3, 4), maxLateral: 35}
	o, _, _ := newOrchestrator(t, sim, 1, false)

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	assert.Equal(t, 10.0, result.Best.Score)

	rows := readCSV(t, filepath.Join(result.SessionDir, "output.csv"))
	assert.Len(t, rows, 1+result.TotalEvaluations)
	assert.Equal(t, "GUID", rows[0][0])
}

func TestOptimizeParallelMatchesSequential(t *testing.T) {
	seqSim := &stubSimulator{scores: scores(1, 2, 3, 4), maxLateral: 37}
	seq, seqOut, _ := newOrchestrator(t, seqSim, 1, false)
	_, err := seq.Optimize(context.Background())
	require.NoError(t, err)

	parSim := &stubSimulator{scores: scores(1, 2, 3, 4), maxLateral: 37}
	par, parOut, _ := newOrchestrator(t, parSim, 3, false)
	result, err := par.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.CompletedPoints)

	seqRows, parRows := readCSV(t, seqOut), readCSV(t, parOut)
	assert.Equal(t, seqRows[0], parRows[0])
	sortRows := func(rows [][]string) {
		slices.SortFunc(rows, func(a, b []string) int { return strings.Compare(strings.Join(a, ","), strings.Join(b, ",")) })
	}
	sortRows(seqRows[1:])
	sortRows(parRows[1:])
	assert.Equal(t, seqRows, parRows)

	// every evaluation ran in its own directory with one input per pass
	byDir := map[string]int{}
	for _, inv := range parSim.recorded() {
		byDir[inv.WorkDir]++
	}
	assert.Len(t, byDir, result.TotalEvaluations)
	for dir, n := range byDir {
		assert.Equal(t, len(models.AllPaths), n, dir)
		for _, p := range models.AllPaths {
			assert.FileExists(t, filepath.Join(dir, fdm.InputFileName(p)))
		}
	}
}

func TestOptimizeSequentialFailFast(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35, failOn: 1}
	o, output, hook := newOrchestrator(t, sim, 1, true)

	result, err := o.Optimize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flight dynamics failed")

	assert.Equal(t, 1, result.FailedPoints)
	assert.Zero(t, result.CompletedPoints)
	assert.Equal(t, 3, result.SkippedPoints)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, errorEntries(hook))
	assert.Len(t, readCSV(t, output), 1)
}

func TestOptimizeParallelFailFast(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35, failOn: 1}
	o, output, hook := newOrchestrator(t, sim, 2, true)

	result, err := o.Optimize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flight dynamics failed")

	assert.Equal(t, 1, result.FailedPoints)
	assert.Equal(t, 3, result.CompletedPoints+result.SkippedPoints)
	assert.Positive(t, result.SkippedPoints)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, errorEntries(hook))
	assert.Len(t, readCSV(t, output), 1+result.CompletedPoints)
}

func TestOptimizeSequentialSkipsFailedPoint(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35, failOn: 1}
	o, output, hook := newOrchestrator(t, sim, 1, false)

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedPoints)
	assert.Equal(t, 3, result.CompletedPoints)
	assert.Equal(t, 1, errorEntries(hook))
	assert.Len(t, readCSV(t, output), 4)
	require.NotNil(t, result.Points[0].Error)
	assert.Equal(t, models.ErrSimulatorFailed, result.Points[0].Error.Type)
}

func TestOptimizeParallelSkipsFailedPoint(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35, failOn: 1}
	o, output, hook := newOrchestrator(t, sim, 2, false)

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedPoints)
	assert.Equal(t, 3, result.CompletedPoints)
	assert.Zero(t, result.SkippedPoints)
	assert.Equal(t, 1, errorEntries(hook))
	assert.Len(t, readCSV(t, output), 4)
}

func TestOptimizeMaxTasks(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35}
	logger, _ := test.NewNullLogger()
	o, err := executor.NewOrchestrator(executor.OrchestratorOptions{
		Experiment: newExperiment(t, sim, logrus.NewEntry(logger)),
		Spec:       gridSpec(),
		Search:     executor.SearchOptions{MinLateralSpeed: 35},
		MaxTasks:   3,
		OutputPath: filepath.Join(t.TempDir(), "opt.csv"),
		Log:        logrus.NewEntry(logger),
	})
	require.NoError(t, err)

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalPoints)
	assert.Equal(t, 3, result.CompletedPoints)
}

func TestOptimizeWithoutAcceptedAxesEvaluatesOnce(t *testing.T) {
	sim := &stubSimulator{scores: scores(10, 10, 0, 10), maxLateral: 36}
	logger, _ := test.NewNullLogger()
	output := filepath.Join(t.TempDir(), "opt.csv")
	o, err := executor.NewOrchestrator(executor.OrchestratorOptions{
		Experiment: newExperiment(t, sim, logrus.NewEntry(logger)),
		Spec:       sweep.Spec{{Name: "wing_span", Values: []float64{1, 2, 3}}},
		Search:     executor.SearchOptions{MinLateralSpeed: 35, VerticalSpeed: -2},
		OutputPath: output,
		Log:        logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	assert.Empty(t, o.Spec())

	result, err := o.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalPoints)
	assert.Equal(t, 1, result.CompletedPoints)
	assert.Equal(t, [][]string{
		{"score", "requested_lateral_speed", "requested_vertical_speed"},
		{"0", "35", "-2"},
	}, readCSV(t, output))
}

func TestOptimizeCancelled(t *testing.T) {
	sim := &stubSimulator{scores: scores(1, 1, 1, 1), maxLateral: 35}
	o, output, hook := newOrchestrator(t, sim, 2, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := o.Optimize(ctx)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Zero(t, result.CompletedPoints)
	assert.Zero(t, errorEntries(hook))
	assert.Len(t, readCSV(t, output), 1)
}

func TestNewOrchestratorRequiresOutput(t *testing.T) {
	_, err := executor.NewOrchestrator(executor.OrchestratorOptions{
		Experiment: newExperiment(t, &stubSimulator{}, nil),
	})
	assert.ErrorContains(t, err, "output path is required")
}
