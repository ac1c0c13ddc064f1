package models

import "fmt"

// Field is one named numeric value of a metrics record, in CSV column order.
type Field struct {
	Name  string
	Value float64
}

// InputEcho holds the values the simulator was fed, read back from the input document.
type InputEcho struct {
	Mass                   float64 `json:"mass"`
	Ixx                    float64 `json:"ixx"`
	Iyy                    float64 `json:"iyy"`
	Izz                    float64 `json:"izz"`
	Ixy                    float64 `json:"ixy"`
	Ixz                    float64 `json:"ixz"`
	Iyz                    float64 `json:"iyz"`
	RequestedLateralSpeed  float64 `json:"requested_lateral_speed"`
	RequestedVerticalSpeed float64 `json:"requested_vertical_speed"`
	Interferences          float64 `json:"interferences"`
}

// Fields returns the echo in CSV column order.
func (e InputEcho) Fields() []Field {
	return []Field{
		{"Mass", e.Mass},
		{"Ixx", e.Ixx},
		{"Iyy", e.Iyy},
		{"Izz", e.Izz},
		{"Ixy", e.Ixy},
		{"Ixz", e.Ixz},
		{"Iyz", e.Iyz},
		{"Interferences", e.Interferences},
	}
}

// FlightSummary holds the whole-design performance figures reported by the simulator.
// MFD is the maximum flight distance operating point, MxSpd the maximum speed one.
type FlightSummary struct {
	MaxHoverTime             float64 `json:"max_hover_time"`
	MaxLateralSpeed          float64 `json:"max_lateral_speed"`
	MaxFlightDistance        float64 `json:"max_flight_distance"`
	SpeedAtMFD               float64 `json:"speed_at_mfd"`
	MaxUcAtMFD               float64 `json:"max_uc_at_mfd"`
	PowerAtMFD               float64 `json:"power_at_mfd"`
	MotorAmpsRatioMFD        float64 `json:"motor_amps_ratio_mfd"`
	MotorPowerRatioMFD       float64 `json:"motor_power_ratio_mfd"`
	BatteryAmpsRatioMFD      float64 `json:"battery_amps_ratio_mfd"`
	DistanceAtMaxSpeed       float64 `json:"distance_max_speed"`
	PowerAtMaxSpeed          float64 `json:"power_max_speed"`
	MotorPowerRatioMaxSpeed  float64 `json:"motor_power_ratio_max_speed"`
	MotorAmpsRatioMaxSpeed   float64 `json:"motor_amps_ratio_max_speed"`
	BatteryAmpsRatioMaxSpeed float64 `json:"battery_amps_ratio_max_speed"`
}

// Fields returns the summary in CSV column order.
func (s FlightSummary) Fields() []Field {
	return []Field{
		{"Hover_Time", s.MaxHoverTime},
		{"Max_Speed", s.MaxLateralSpeed},
		{"Max_Distance", s.MaxFlightDistance},
		{"Speed_at_MFD", s.SpeedAtMFD},
		{"Max_uc_at_MFD", s.MaxUcAtMFD},
		{"Power_at_MFD", s.PowerAtMFD},
		{"Mot_amps_ratio_MFD", s.MotorAmpsRatioMFD},
		{"Mot_power_ratio_MFD", s.MotorPowerRatioMFD},
		{"Batt_amps_ratio_MFD", s.BatteryAmpsRatioMFD},
		{"Distance_MxSpd", s.DistanceAtMaxSpeed},
		{"Power_MxSpd", s.PowerAtMaxSpeed},
		{"Mot_power_ratio_MxSpd", s.MotorPowerRatioMaxSpeed},
		{"Mot_amps_ratio_MxSpd", s.MotorAmpsRatioMaxSpeed},
		{"Batt_amps_ratio_MxSpd", s.BatteryAmpsRatioMaxSpeed},
	}
}

// PathMetric holds the per-maneuver performance of one analysis pass.
type PathMetric struct {
	Path           Path    `json:"flight_path"`
	AverageSpeed   float64 `json:"average_speed"`
	FlightDistance float64 `json:"flight_distance"`
	TraverseTime   float64 `json:"time_to_traverse_path"`
	MaxError       float64 `json:"max_error_distance"`
	AverageError   float64 `json:"average_error"`
	PathScore      float64 `json:"path_score"`
}

// Fields returns the metric in CSV column order, suffixed with its path id.
func (m PathMetric) Fields() []Field {
	suffix := fmt.Sprintf("_Path%d", m.Path)
	return []Field{
		{"Avg_speed" + suffix, m.AverageSpeed},
		{"Flight_dist" + suffix, m.FlightDistance},
		{"Time_path" + suffix, m.TraverseTime},
		{"Mx_error_flight" + suffix, m.MaxError},
		{"Avg_error_flight" + suffix, m.AverageError},
		{"Path_score" + suffix, m.PathScore},
	}
}

// PassResult is everything parsed from one successful simulator invocation.
type PassResult struct {
	Path    Path                `json:"flight_path"`
	Input   InputEcho           `json:"input"`
	Summary FlightSummary       `json:"summary"`
	NoTrim  bool                `json:"no_trim"`
	Paths   map[Path]PathMetric `json:"paths"`
}

// Metric returns the path metric reported for the pass's own maneuver.
func (r *PassResult) Metric() (PathMetric, error) {
	m, ok := r.Paths[r.Path]
	if !ok {
		return PathMetric{}, &IncompleteMetricsError{Kind: "path", Label: fmt.Sprintf("Path performance %d", r.Path)}
	}
	return m, nil
}
