// Package fdm speaks the flight dynamics simulator's file formats: it renders input documents,
// parses reports and metrics, and computes the aggregate path score.
package fdm

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/symbench/fdmopt/internal/catalog"
	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/models"
)

// Controller parameter names and their value when a design leaves them out.
var controlParams = []struct {
	param string
	key   string
	def   float64
}{
	{"q_position", "Q_position", 1},
	{"q_velocity", "Q_velocity", 1},
	{"q_angular_velocity", "Q_angular_velocity", 1},
	{"q_angles", "Q_angles", 1},
	{"r", "R", 1},
}

// Input is everything needed to render one simulator input document.
type Input struct {
	Design        *design.Design
	Catalog       *catalog.Catalog
	Requirement   models.Requirement
	Path          models.Path
	PropellersDir string
}

// InputFileName is the input document name for path p.
func InputFileName(p models.Path) string {
	return fmt.Sprintf("FlightDyn_Path%d.inp", p)
}

// ReportFileName is the report document name for path p.
func ReportFileName(p models.Path) string {
	return fmt.Sprintf("FlightDynReport_Path%d.out", p)
}

// MetricsFileName is the per-path name metrics.out is moved to after pass p.
func MetricsFileName(p models.Path) string {
	return fmt.Sprintf("metrics_Path%d.out", p)
}

// namelist writes "section%key = value" lines. The first error sticks.
type namelist struct {
	w   *bufio.Writer
	err error
}

func (n *namelist) line(format string, args ...any) {
	if n.err != nil {
		return
	}
	_, n.err = fmt.Fprintf(n.w, format+"\n", args...)
}

func (n *namelist) num(section, key string, v float64) {
	n.line("   %s%%%s = %s", section, key, formatNumber(v))
}

func (n *namelist) integer(section, key string, v int) {
	n.line("   %s%%%s = %d", section, key, v)
}

func (n *namelist) str(section, key, v string) {
	n.line("   %s%%%s = '%s'", section, key, v)
}

// array writes the first group on the key line and one repeated key line per extra group.
func (n *namelist) array(section, key string, groups [][]float64) {
	for _, g := range groups {
		vals := make([]string, len(g))
		for i, v := range g {
			vals[i] = formatNumber(v)
		}
		n.line("   %s%%%s = %s", section, key, strings.Join(vals, ", "))
	}
}

// Render writes the simulator input document for one analysis pass.
// The output depends only on in; it is byte-identical across calls.
func Render(w io.Writer, in Input) error {
	d, cat := in.Design, in.Catalog
	mp, err := design.EstimateMassProperties(d, cat)
	if err != nil {
		return fmt.Errorf("estimating mass properties: %w", err)
	}
	req := in.Requirement.ForPass(in.Path)
	positions := design.UnitPositions(d)
	batteries := d.Instances(design.BatteryPrefix)

	n := &namelist{w: bufio.NewWriter(w)}
	n.line("&aircraft_data")

	const ac = "aircraft"
	n.str(ac, "cname", d.Aircraft.CName)
	n.str(ac, "ctype", d.Aircraft.CType)
	n.integer(ac, "num_wings", 0)
	n.num(ac, "mass", mp.Mass)
	n.num(ac, "x_cm", mp.CM.X)
	n.num(ac, "y_cm", mp.CM.Y)
	n.num(ac, "z_cm", mp.CM.Z)
	n.num(ac, "x_fuse", mp.CM.X)
	n.num(ac, "y_fuse", mp.CM.Y)
	n.num(ac, "z_fuse", mp.CM.Z)
	n.num(ac, "X_fuseuu", d.Aircraft.XFuseuu)
	n.num(ac, "Y_fusevv", d.Aircraft.YFusevv)
	n.num(ac, "Z_fuseww", d.Aircraft.ZFuseww)
	n.num(ac, "Ixx", mp.Ixx)
	n.num(ac, "Iyy", mp.Iyy)
	n.num(ac, "Izz", mp.Izz)
	n.num(ac, "Ixy", mp.Ixy)
	n.num(ac, "Ixz", mp.Ixz)
	n.num(ac, "Iyz", mp.Iyz)
	n.num(ac, "time", 0)
	n.num(ac, "dt", 0.001)
	n.num(ac, "dt_output", 1)
	n.num(ac, "time_end", d.Aircraft.TimeEnd)
	n.num(ac, "Unwind", 0)
	n.num(ac, "Vewind", 0)
	n.num(ac, "Wdwind", 0)
	n.integer(ac, "debug", 0)
	n.integer(ac, "num_propellers", len(positions))
	n.integer(ac, "num_batteries", len(batteries))
	n.integer(ac, "i_analysis_type", d.Aircraft.AnalysisType)
	n.array(ac, "x_initial", [][]float64{{0, 0, 0}, {0, 0, 0}, {1, 0, 0, 0}, {0, 0, 0}})
	n.array(ac, "uc_initial", controlGroups(len(positions)))

	for i, pos := range positions {
		if err := renderUnit(n, d, cat, in.PropellersDir, i, pos); err != nil {
			return err
		}
	}

	for i, inst := range batteries {
		b, ok := cat.Battery(d.Parts[inst])
		if !ok {
			return fmt.Errorf("%s: battery %q not in catalog", inst, d.Parts[inst])
		}
		section := fmt.Sprintf("battery(%d)", i+1)
		n.integer(section, "num_cells", b.Cells)
		n.num(section, "voltage", b.Voltage)
		n.num(section, "capacity", b.Capacity)
		n.num(section, "C_Continuous", b.ContDischarge)
		n.num(section, "C_Peak", b.PeakDischarge)
	}

	const ctl = "control"
	n.integer(ctl, "i_flight_path", int(in.Path))
	n.num(ctl, "requested_lateral_speed", req.LateralSpeed)
	n.num(ctl, "requested_vertical_speed", req.VerticalSpeed)
	n.integer(ctl, "iaileron", 5)
	n.integer(ctl, "iflap", 6)
	for _, c := range controlParams {
		n.num(ctl, c.key, d.Param(c.param, c.def))
	}
	n.line("/")

	if n.err != nil {
		return n.err
	}
	return n.w.Flush()
}

func renderUnit(n *namelist, d *design.Design, cat *catalog.Catalog, propDir string, i int, pos design.Vec) error {
	propName, err := d.Part(design.PropPrefix, i)
	if err != nil {
		return err
	}
	prop, ok := cat.Propeller(propName)
	if !ok {
		return fmt.Errorf("propeller %q not in catalog", propName)
	}
	motorName, err := d.Part(design.MotorPrefix, i)
	if err != nil {
		return err
	}
	motor, ok := cat.Motor(motorName)
	if !ok {
		return fmt.Errorf("motor %q not in catalog", motorName)
	}

	section := fmt.Sprintf("propeller(%d)", i+1)
	n.str(section, "cname", prop.Name)
	n.str(section, "motor_cname", motor.Name)
	n.str(section, "prop_fname", filepath.Join(propDir, prop.PerformanceFile))
	n.num(section, "x", pos.X)
	n.num(section, "y", pos.Y)
	n.num(section, "z", pos.Z)
	n.num(section, "nx", 0)
	n.num(section, "ny", 0)
	n.num(section, "nz", -1)
	n.num(section, "radius", prop.Diameter/2)
	n.num(section, "spin", prop.Direction)
	n.num(section, "KV", motor.KV)
	n.num(section, "KT", motor.KT)
	n.num(section, "I_max", motor.MaxCurrent)
	n.num(section, "I_idle", motor.IdleCurrent)
	n.num(section, "maxpower", motor.MaxPower)
	n.num(section, "Rw", motor.Resistance/1000)
	n.integer(section, "icontrol", i+1)
	n.integer(section, "ibattery", 1)
	return n.err
}

// controlGroups splits the initial throttle settings into lines of at most four values.
func controlGroups(n int) [][]float64 {
	var groups [][]float64
	for n > 0 {
		k := min(n, 4)
		g := make([]float64, k)
		for i := range g {
			g[i] = 0.5
		}
		groups = append(groups, g)
		n -= k
	}
	return groups
}

func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
