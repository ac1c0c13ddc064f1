package executor_test

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/catalog"
	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/executor"
	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/session"
	"github.com/symbench/fdmopt/internal/simulator"
)

var testResultsDir = flag.String("test.resultsdir", "", "directory to preserve test session outputs (default: temp dir)")

// getResultsDir returns the results directory for tests.
// If -test.resultsdir is set, uses that directory, otherwise creates a temp dir.
func getResultsDir(t *testing.T) string {
	if *testResultsDir != "" {
		absPath, err := filepath.Abs(*testResultsDir)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(absPath, 0755))
		return absPath
	}
	return t.TempDir()
}

// stubSimulator answers every pass with fixed path scores and records what it was asked.
type stubSimulator struct {
	scores     map[models.Path]float64
	maxLateral float64
	// failOn is the 1-based call number that fails; zero never fails
	failOn     int
	writeFiles bool

	mu          sync.Mutex
	calls       int
	invocations []simulator.Invocation
}

func (s *stubSimulator) Name() string { return "stub" }

func (s *stubSimulator) Run(ctx context.Context, inv simulator.Invocation) (*models.PassResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.invocations = append(s.invocations, inv)
	s.mu.Unlock()

	if n == s.failOn {
		return nil, &models.SimulatorFailedError{Path: inv.Path, ExitCode: 1, Stderr: "floating point exception"}
	}
	if s.writeFiles {
		for name, body := range map[string]string{
			inv.ReportPath:        "report\n",
			simulator.MetricsFile: "metrics\n",
			"scratch.out":         "scratch\n",
		} {
			if err := os.WriteFile(filepath.Join(inv.WorkDir, name), []byte(body), 0644); err != nil {
				return nil, err
			}
		}
	}
	return &models.PassResult{
		Path:    inv.Path,
		Summary: models.FlightSummary{MaxLateralSpeed: s.maxLateral},
		Paths: map[models.Path]models.PathMetric{
			inv.Path: {Path: inv.Path, PathScore: s.scores[inv.Path]},
		},
	}, nil
}

func (s *stubSimulator) recorded() []simulator.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]simulator.Invocation(nil), s.invocations...)
}

func scores(p1, p3, p4, p5 float64) map[models.Path]float64 {
	return map[models.Path]float64{
		models.PathStraightLine: p1,
		models.PathCircle:       p3,
		models.PathRiseAndHover: p4,
		models.PathRacingOval:   p5,
	}
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Propellers: []catalog.Propeller{
			{Name: "6x4EP", PerformanceFile: "PER3_6x4EP.dat", Direction: -1, Diameter: 152, Weight: 0.008},
			{Name: "6x4E", PerformanceFile: "PER3_6x4EP.dat", Direction: 1, Diameter: 152, Weight: 0.008},
		},
		Motors: []catalog.Motor{{Name: "kv1400", KV: 1400, KT: 0.0068, MaxCurrent: 30, IdleCurrent: 0.5, MaxPower: 400, Resistance: 45, Weight: 0.056}},
		Batteries: []catalog.Battery{{Name: "4S5000", Cells: 4, Voltage: 14.8, Capacity: 5000, ContDischarge: 25, PeakDischarge: 50, Weight: 0.62}},
		ESCs:      []catalog.ESC{{Name: "esc", Weight: 0.02}},
	}
}

func testDesign() *design.Design {
	parts := map[string]string{"Battery_0": "4S5000"}
	for i, p := range []string{"6x4EP", "6x4E", "6x4EP", "6x4E"} {
		idx := string(rune('0' + i))
		parts["Prop_"+idx] = p
		parts["Motor_"+idx] = "kv1400"
		parts["ESC_"+idx] = "esc"
	}
	return design.New("QuadCopter", models.Parameters{
		design.ArmLength:        220,
		design.SupportLength:    95,
		design.BattMountXOffset: 0,
		design.BattMountZOffset: 0,
	}, parts, design.Aircraft{CName: "QuadCopter", StructuralMass: 0.4, HubRadius: 40, TimeEnd: 1000, AnalysisType: 3})
}

func newExperiment(t *testing.T, sim simulator.Simulator, log *logrus.Entry) *executor.Experiment {
	t.Helper()
	d := testDesign()
	sess, err := session.Start(session.Options{ResultsDir: getResultsDir(t), Design: d})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	return executor.NewExperiment(executor.ExperimentOptions{
		Design:        d,
		Catalog:       testCatalog(),
		Session:       sess,
		Simulator:     sim,
		PropellersDir: "/data/propellers",
		Log:           log,
	})
}
