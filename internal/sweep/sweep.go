// Package sweep builds the parameter grid explored by the optimizer.
package sweep

import (
	"fmt"
	"math"

	"github.com/symbench/fdmopt/internal/models"
)

// Axis is one swept parameter and the values it takes.
type Axis struct {
	Name   string
	Values []float64
}

// Spec is an ordered list of axes. Order is significant: it fixes the column order of the
// consolidated log and the iteration order of the grid.
type Spec []Axis

// Linspace returns num evenly spaced values over [start, stop], endpoints included.
func Linspace(start, stop float64, num int) []float64 {
	switch {
	case num <= 0:
		return nil
	case num == 1:
		return []float64{start}
	}
	out := make([]float64, num)
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[num-1] = stop
	return out
}

// Geomspace returns num values spaced evenly on a log scale over [start, stop].
// start and stop must have the same sign and be non-zero.
func Geomspace(start, stop float64, num int) []float64 {
	if start == 0 || stop == 0 || (start < 0) != (stop < 0) {
		return nil
	}
	sign := 1.0
	if start < 0 {
		sign, start, stop = -1, -start, -stop
	}
	exps := Linspace(math.Log10(start), math.Log10(stop), num)
	out := make([]float64, len(exps))
	for i, e := range exps {
		out[i] = sign * math.Pow(10, e)
	}
	if len(out) > 0 {
		out[0] = sign * start
		out[len(out)-1] = sign * stop
	}
	return out
}

// DefaultSpec returns the built-in sweep. Each call returns a fresh value.
func DefaultSpec() Spec {
	return Spec{
		{Name: "arm_length", Values: Linspace(180, 600, 10)},
		{Name: "support_length", Values: Linspace(10, 100, 5)},
		{Name: "batt_mount_x_offset", Values: Linspace(-20, 20, 10)},
		{Name: "batt_mount_z_offset", Values: Linspace(-20, 20, 10)},
		{Name: "q_position", Values: []float64{1}},
		{Name: "q_angles", Values: []float64{1}},
		{Name: "q_velocity", Values: []float64{1}},
		{Name: "q_angular_velocity", Values: []float64{1}},
		{Name: "r", Values: Geomspace(0.1, 100, 10)},
	}
}

// FromConfig builds a spec from configured sweep entries.
func FromConfig(entries []models.SweepEntry) (Spec, error) {
	spec := make(Spec, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("sweep[%d]: missing name", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("sweep[%d]: %s listed twice", i, e.Name)
		}
		seen[e.Name] = true

		var values []float64
		set := 0
		if len(e.Values) > 0 {
			values = append(values, e.Values...)
			set++
		}
		if e.Linspace != nil {
			values = Linspace(e.Linspace.Start, e.Linspace.Stop, e.Linspace.Num)
			set++
		}
		if e.Geomspace != nil {
			values = Geomspace(e.Geomspace.Start, e.Geomspace.Stop, e.Geomspace.Num)
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("sweep[%d] %s: specify exactly one of values, linspace or geomspace", i, e.Name)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("sweep[%d] %s: no values", i, e.Name)
		}
		spec = append(spec, Axis{Name: e.Name, Values: values})
	}
	return spec, nil
}

// Restrict keeps the axes for which accept returns true, in spec order.
func (s Spec) Restrict(accept func(name string) bool) Spec {
	var out Spec
	for _, a := range s {
		if accept(a.Name) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the axis names in spec order.
func (s Spec) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name
	}
	return names
}

// Size is the number of points of the full grid. An empty spec has one point.
func (s Spec) Size() int {
	n := 1
	for _, a := range s {
		n *= len(a.Values)
	}
	return n
}

// Points returns the Cartesian product of the axes. The last axis varies fastest.
// An empty spec yields a single empty point, so the design is evaluated once with its defaults.
func (s Spec) Points() []models.Parameters {
	total := s.Size()
	if total == 0 {
		return nil
	}
	points := make([]models.Parameters, 0, total)
	idx := make([]int, len(s))
	for range total {
		p := make(models.Parameters, len(s))
		for i, a := range s {
			p[a.Name] = a.Values[idx[i]]
		}
		points = append(points, p)

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(s[i].Values) {
				break
			}
			idx[i] = 0
		}
	}
	return points
}
