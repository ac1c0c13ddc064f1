package models

import (
	"strconv"
	"time"
)

// RunRecord is the outcome of one evaluation: all four passes of one parameter/requirement pair.
type RunRecord struct {
	RunID         string               `json:"guid"`
	Design        string               `json:"design"`
	Parameters    Parameters           `json:"parameters"`
	Requirement   Requirement          `json:"requirement"`
	Passes        map[Path]*PassResult `json:"passes"`
	PathMetrics   map[Path]PathMetric  `json:"path_metrics"`
	Score         float64              `json:"total_path_score"`
	AnalysisError bool                 `json:"analysis_error"`
	Error         *RunError            `json:"error,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       time.Time            `json:"ended_at"`
}

type RunError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// MaxLateralSpeed is the achievable lateral speed reported by the last pass that ran.
func (r *RunRecord) MaxLateralSpeed() float64 {
	for i := len(AllPaths) - 1; i >= 0; i-- {
		if pr, ok := r.Passes[AllPaths[i]]; ok {
			return pr.Summary.MaxLateralSpeed
		}
	}
	return 0
}

// lastPass returns the result of the last pass that ran, or nil.
func (r *RunRecord) lastPass() *PassResult {
	for i := len(AllPaths) - 1; i >= 0; i-- {
		if pr, ok := r.Passes[AllPaths[i]]; ok {
			return pr
		}
	}
	return nil
}

// Row flattens the record into CSV header and value columns.
// Echo and summary columns come from the last pass, path columns from every pass.
func (r *RunRecord) Row() (header []string, values []string) {
	add := func(name, value string) {
		header = append(header, name)
		values = append(values, value)
	}
	addFields := func(fields []Field) {
		for _, f := range fields {
			add(f.Name, formatFloat(f.Value))
		}
	}

	add("GUID", r.RunID)
	add("AnalysisError", strconv.FormatBool(r.AnalysisError))
	add(LateralSpeedKey, formatFloat(r.Requirement.LateralSpeed))
	add(VerticalSpeedKey, formatFloat(r.Requirement.VerticalSpeed))
	for _, name := range r.Parameters.Names() {
		add(name, formatFloat(r.Parameters[name]))
	}

	last := r.lastPass()
	if last == nil {
		last = &PassResult{}
	}
	addFields(last.Input.Fields())
	addFields(last.Summary.Fields())
	for _, p := range AllPaths {
		m := r.PathMetrics[p]
		m.Path = p
		addFields(m.Fields())
	}
	add("TotalPathScore", formatFloat(r.Score))
	return header, values
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// PointResult is the best outcome of the adaptive search at one grid point.
type PointResult struct {
	Index       int         `json:"index"`
	Parameters  Parameters  `json:"parameters"`
	Score       float64     `json:"score"`
	Requirement Requirement `json:"requirement"`
	Evaluations int         `json:"evaluations"`
	Error       *RunError   `json:"error,omitempty"`
}

// SweepResult contains aggregate figures across all grid points of one optimization.
type SweepResult struct {
	Experiment       string        `json:"experiment"`
	SessionDir       string        `json:"session_dir"`
	Cancelled        bool          `json:"cancelled"`
	TotalPoints      int           `json:"total_points"`
	CompletedPoints  int           `json:"completed_points"`
	FailedPoints     int           `json:"failed_points"`
	SkippedPoints    int           `json:"skipped_points"`
	TotalEvaluations int           `json:"total_evaluations"`
	Best             *PointResult  `json:"best,omitempty"`
	TotalDurationSec float64       `json:"total_duration_sec"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          time.Time     `json:"ended_at"`
	Points           []PointResult `json:"points"`
}
