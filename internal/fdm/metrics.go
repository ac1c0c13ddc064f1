package fdm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/symbench/fdmopt/internal/models"
)

// NoTrimMarker appears in simulator output when no trim state exists for the design.
const NoTrimMarker = "no trim conditions"

// SummaryStatus is the outcome of parsing a flight summary.
type SummaryStatus int

const (
	StatusOK SummaryStatus = iota
	StatusNoTrim
	StatusMalformed
)

func (s SummaryStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoTrim:
		return "no_trim"
	default:
		return "malformed"
	}
}

// SummaryResult is the typed outcome of ParseFlightSummary.
type SummaryResult struct {
	Status  SummaryStatus
	Summary models.FlightSummary
	// Reason names the absent or unreadable label when Status is StatusMalformed.
	Reason string
}

// Resolve turns the outcome into a summary, zero-filled for no-trim designs.
func (r SummaryResult) Resolve() (models.FlightSummary, error) {
	switch r.Status {
	case StatusOK:
		return r.Summary, nil
	case StatusNoTrim:
		return models.FlightSummary{}, nil
	default:
		return models.FlightSummary{}, &models.IncompleteMetricsError{Kind: "summary", Label: r.Reason}
	}
}

type label struct {
	name string
	set  func(float64)
}

func summaryLabels(s *models.FlightSummary) []label {
	return []label{
		{"Max_Hover_Time_(s)", func(v float64) { s.MaxHoverTime = v }},
		{"Max_Lateral_Speed_(m/s)", func(v float64) { s.MaxLateralSpeed = v }},
		{"Max_Flight_Distance_(m)", func(v float64) { s.MaxFlightDistance = v }},
		{"Speed_at_Max_Flight_Distance_(m/s)", func(v float64) { s.SpeedAtMFD = v }},
		{"Max_uc_at_Max_Flight_Distance", func(v float64) { s.MaxUcAtMFD = v }},
		{"Power_at_Max_Flight_Distance_(W)", func(v float64) { s.PowerAtMFD = v }},
		{"Motor_amps_to_max_amps_ratio_at_Max_Flight_Distance", func(v float64) { s.MotorAmpsRatioMFD = v }},
		{"Motor_power_to_max_power_ratio_at_Max_Flight_Distance", func(v float64) { s.MotorPowerRatioMFD = v }},
		{"Battery_amps_to_max_amps_ratio_at_Max_Flight_Distance", func(v float64) { s.BatteryAmpsRatioMFD = v }},
		{"Distance_at_Max_Speed_(m)", func(v float64) { s.DistanceAtMaxSpeed = v }},
		{"Power_at_Max_Speed_(W)", func(v float64) { s.PowerAtMaxSpeed = v }},
		{"Motor_power_to_max_power_ratio_at_Max_Speed", func(v float64) { s.MotorPowerRatioMaxSpeed = v }},
		{"Motor_amps_to_max_amps_ratio_at_Max_Speed", func(v float64) { s.MotorAmpsRatioMaxSpeed = v }},
		{"Battery_amps_to_max_amps_ratio_at_Max_Speed", func(v float64) { s.BatteryAmpsRatioMaxSpeed = v }},
	}
}

func pathLabels(m *models.PathMetric) []label {
	return []label{
		{"Flight_distance", func(v float64) { m.FlightDistance = v }},
		{"Time_to_traverse_path", func(v float64) { m.TraverseTime = v }},
		{"Average_speed_to_traverse_path", func(v float64) { m.AverageSpeed = v }},
		{"Maximimum_error_distance_during_flight", func(v float64) { m.MaxError = v }},
		{"Spatial_average_distance_error", func(v float64) { m.AverageError = v }},
		{"Path_traverse_score_based_on_requirements", func(v float64) { m.PathScore = v }},
	}
}

// ParseFlightSummary reads the whole-design figures from the metrics text.
// The no-trim marker in either the report or the metrics text yields StatusNoTrim.
func ParseFlightSummary(report, metrics string) SummaryResult {
	if hasNoTrim(report) || hasNoTrim(metrics) {
		return SummaryResult{Status: StatusNoTrim}
	}

	var s models.FlightSummary
	labels := summaryLabels(&s)
	found, err := scanLabels(metrics, labels)
	if err != nil {
		return SummaryResult{Status: StatusMalformed, Reason: err.Error()}
	}
	for _, l := range labels {
		if !found[l.name] {
			return SummaryResult{Status: StatusMalformed, Reason: l.name}
		}
	}
	return SummaryResult{Status: StatusOK, Summary: s}
}

// ParsePathMetrics reads every "Path performance <n>" section of the metrics text.
// Each section must carry every path label.
func ParsePathMetrics(metrics string) (map[models.Path]models.PathMetric, error) {
	out := make(map[models.Path]models.PathMetric)

	var (
		cur    *models.PathMetric
		labels []label
		found  map[string]bool
	)
	finish := func() error {
		if cur == nil {
			return nil
		}
		for _, l := range labels {
			if !found[l.name] {
				return &models.IncompleteMetricsError{
					Kind:  fmt.Sprintf("path %d", cur.Path),
					Label: l.name,
				}
			}
		}
		out[cur.Path] = *cur
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(metrics))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Path performance") {
			if err := finish(); err != nil {
				return nil, err
			}
			n, err := lastNumber(line)
			if err != nil {
				return nil, fmt.Errorf("bad path header %q: %w", line, err)
			}
			cur = &models.PathMetric{Path: models.Path(n)}
			labels = pathLabels(cur)
			found = make(map[string]bool)
			continue
		}
		if cur == nil {
			continue
		}
		for _, l := range labels {
			if strings.HasPrefix(line, l.name) {
				v, err := lastNumber(line)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", l.name, err)
				}
				l.set(v)
				found[l.name] = true
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseInputEcho reads mass, inertia and requested speeds back from an input document.
// Interferences is always zero.
func ParseInputEcho(input string) (models.InputEcho, error) {
	var e models.InputEcho
	fields := map[string]*float64{
		"aircraft%mass":                    &e.Mass,
		"aircraft%ixx":                     &e.Ixx,
		"aircraft%iyy":                     &e.Iyy,
		"aircraft%izz":                     &e.Izz,
		"aircraft%ixy":                     &e.Ixy,
		"aircraft%ixz":                     &e.Ixz,
		"aircraft%iyz":                     &e.Iyz,
		"control%requested_lateral_speed":  &e.RequestedLateralSpeed,
		"control%requested_vertical_speed": &e.RequestedVerticalSpeed,
	}
	seen := make(map[string]bool, len(fields))

	sc := bufio.NewScanner(strings.NewReader(input))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		dst, ok := fields[key]
		if !ok || seen[key] {
			continue
		}
		v, err := lastNumber(value)
		if err != nil {
			return e, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return e, err
	}
	for _, key := range []string{"aircraft%mass", "aircraft%ixx", "aircraft%iyy", "aircraft%izz"} {
		if !seen[key] {
			return e, &models.IncompleteMetricsError{Kind: "input", Label: key}
		}
	}
	e.Interferences = 0
	return e, nil
}

func scanLabels(text string, labels []label) (map[string]bool, error) {
	found := make(map[string]bool, len(labels))
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		for _, l := range labels {
			if f[0] != l.name {
				continue
			}
			v, err := parseNumber(f[len(f)-1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", l.name, err)
			}
			l.set(v)
			found[l.name] = true
			break
		}
	}
	return found, sc.Err()
}

func hasNoTrim(text string) bool {
	return strings.Contains(strings.ToLower(text), NoTrimMarker)
}

func lastNumber(line string) (float64, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return 0, fmt.Errorf("no value")
	}
	return parseNumber(f[len(f)-1])
}

// parseNumber accepts Fortran style exponents ("1.5D+02").
func parseNumber(tok string) (float64, error) {
	tok = strings.TrimSuffix(tok, ",")
	tok = strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'e'
		}
		return r
	}, tok)
	return strconv.ParseFloat(tok, 64)
}
