// Package design models a seed design: its tunable parameters, part selections and the
// substitutions queued against the testbench component map.
package design

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/symbench/fdmopt/internal/models"
)

// Instance name prefixes used by seed designs for their propulsion and power parts.
const (
	PropPrefix    = "Prop_"
	MotorPrefix   = "Motor_"
	ESCPrefix     = "ESC_"
	BatteryPrefix = "Battery_"
)

// Aircraft holds the fixed airframe constants a seed design contributes to the simulator input.
type Aircraft struct {
	CName          string  `toml:"cname"`
	CType          string  `toml:"ctype"`
	StructuralMass float64 `toml:"structural_mass"` // kg, frame without parts
	HubRadius      float64 `toml:"hub_radius"`      // mm, centre to arm root
	Ixx            float64 `toml:"ixx"`             // kg mm^2, frame only
	Iyy            float64 `toml:"iyy"`
	Izz            float64 `toml:"izz"`
	XFuseuu        float64 `toml:"x_fuseuu"`
	YFusevv        float64 `toml:"y_fusevv"`
	ZFuseww        float64 `toml:"z_fuseww"`
	TimeEnd        float64 `toml:"time_end"`
	AnalysisType   int     `toml:"analysis_type"`
}

// Design is one live seed design configuration. It is mutated between runs by its owner;
// parallel workers each get their own Clone.
type Design struct {
	Class      string
	Parameters models.Parameters
	Parts      map[string]string
	Aircraft   Aircraft

	accepted map[string]struct{}
	pending  Changeset
}

// New creates a design of the given class. The keys of defaults are the parameters it accepts.
func New(class string, defaults models.Parameters, parts map[string]string, aircraft Aircraft) *Design {
	accepted := make(map[string]struct{}, len(defaults))
	for k := range defaults {
		accepted[k] = struct{}{}
	}
	return &Design{
		Class:      class,
		Parameters: defaults.Clone(),
		Parts:      maps.Clone(parts),
		Aircraft:   aircraft,
		accepted:   accepted,
	}
}

// Clone returns a deep copy of d, pending substitutions included.
func (d *Design) Clone() *Design {
	c := *d
	c.Parameters = d.Parameters.Clone()
	c.Parts = maps.Clone(d.Parts)
	c.accepted = maps.Clone(d.accepted)
	c.pending = slices.Clone(d.pending)
	return &c
}

// Accepts reports whether name is a parameter of this design.
func (d *Design) Accepts(name string) bool {
	_, ok := d.accepted[name]
	return ok
}

// AcceptedParameters returns the design's parameter names, sorted.
func (d *Design) AcceptedParameters() []string {
	return slices.Sorted(maps.Keys(d.accepted))
}

// SetParameters assigns every accepted parameter of params and returns the names it ignored.
func (d *Design) SetParameters(params models.Parameters) (ignored []string) {
	for _, name := range params.Names() {
		if !d.Accepts(name) {
			ignored = append(ignored, name)
			continue
		}
		d.Parameters[name] = params[name]
	}
	return ignored
}

// Param returns the value of a parameter, or def when the design does not define it.
func (d *Design) Param(name string, def float64) float64 {
	if v, ok := d.Parameters[name]; ok {
		return v
	}
	return def
}

// Instances returns the part instance names starting with prefix, sorted by index.
func (d *Design) Instances(prefix string) []string {
	var names []string
	for name := range d.Parts {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return instanceIndex(a) - instanceIndex(b)
	})
	return names
}

// PropulsionUnits is the number of propeller instances of the design.
func (d *Design) PropulsionUnits() int {
	return len(d.Instances(PropPrefix))
}

// Part returns the part assigned to the n-th instance with prefix.
func (d *Design) Part(prefix string, n int) (string, error) {
	inst := fmt.Sprintf("%s%d", prefix, n)
	part, ok := d.Parts[inst]
	if !ok {
		return "", fmt.Errorf("design %s has no %s", d.Class, inst)
	}
	return part, nil
}

// Pending returns the substitutions not yet reflected in the component map.
func (d *Design) Pending() Changeset {
	return slices.Clone(d.pending)
}

// NeedsSwap reports whether substitutions are queued.
func (d *Design) NeedsSwap() bool {
	return len(d.pending) > 0
}

// ClearPending forgets the queued substitutions once they have been applied.
func (d *Design) ClearPending() {
	d.pending = nil
}

func instanceIndex(name string) int {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return 0
	}
	n := 0
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
