package models

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Path identifies one of the predefined flight maneuvers analysed per design point.
type Path int

const (
	PathStraightLine Path = 1
	PathCircle       Path = 3
	PathRiseAndHover Path = 4
	PathRacingOval   Path = 5
)

// AllPaths lists the analysis passes in execution order.
var AllPaths = []Path{PathStraightLine, PathCircle, PathRiseAndHover, PathRacingOval}

func (p Path) String() string {
	switch p {
	case PathStraightLine:
		return "straight_line"
	case PathCircle:
		return "circle"
	case PathRiseAndHover:
		return "rise_and_hover"
	case PathRacingOval:
		return "racing_oval"
	default:
		return "path_" + strconv.Itoa(int(p))
	}
}

// Requirement is the pair of requested speeds given to the simulator.
type Requirement struct {
	LateralSpeed  float64 `json:"requested_lateral_speed" yaml:"requested_lateral_speed"`
	VerticalSpeed float64 `json:"requested_vertical_speed" yaml:"requested_vertical_speed"`
}

// Requirement keys as they appear in CSV headers and JSON input.
const (
	LateralSpeedKey  = "requested_lateral_speed"
	VerticalSpeedKey = "requested_vertical_speed"
)

// ForPass returns the requirement actually sent to the simulator for path p.
// Only the rise-and-hover pass exercises vertical speed, and it flies with no lateral speed.
func (r Requirement) ForPass(p Path) Requirement {
	if p == PathRiseAndHover {
		return Requirement{VerticalSpeed: r.VerticalSpeed}
	}
	return Requirement{LateralSpeed: r.LateralSpeed}
}

// RequirementFrom builds a requirement from a decoded mapping, starting from def.
func RequirementFrom(v any, def Requirement) (Requirement, error) {
	m, err := ParametersFrom(v, "requirements")
	if err != nil {
		return def, err
	}
	req := def
	if s, ok := m[LateralSpeedKey]; ok {
		req.LateralSpeed = s
	}
	if s, ok := m[VerticalSpeedKey]; ok {
		req.VerticalSpeed = s
	}
	return req, nil
}

// Parameters is a named set of numeric design parameters.
type Parameters map[string]float64

// Names returns the parameter names in sorted order.
func (p Parameters) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Clone returns a copy of p.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// ParametersFrom converts a decoded YAML/JSON value into Parameters.
// A nil value yields an empty set; anything that is not a mapping of numbers fails with
// a ParameterTypeError.
func ParametersFrom(v any, name string) (Parameters, error) {
	params := Parameters{}
	switch m := v.(type) {
	case nil:
		return params, nil
	case Parameters:
		return m.Clone(), nil
	case map[string]float64:
		return Parameters(maps.Clone(m)), nil
	case map[string]any:
		for k, raw := range m {
			f, err := toFloat(raw)
			if err != nil {
				return nil, &ParameterTypeError{Name: name + "." + k, Got: fmt.Sprintf("%T", raw)}
			}
			params[k] = f
		}
		return params, nil
	default:
		return nil, &ParameterTypeError{Name: name, Got: fmt.Sprintf("%T", v)}
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
