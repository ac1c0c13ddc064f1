package design

import (
	"fmt"

	"github.com/symbench/fdmopt/internal/catalog"
	"github.com/symbench/fdmopt/internal/models"
)

// Change records one part substitution on a component instance.
type Change struct {
	Instance string
	From     string
	To       string
}

// Changeset is an ordered list of part substitutions.
type Changeset []Change

// Targets maps each instance to the part it ends up with after the whole changeset.
func (cs Changeset) Targets() map[string]string {
	out := make(map[string]string, len(cs))
	for _, c := range cs {
		out[c.Instance] = c.To
	}
	return out
}

// ApplyChanges returns a copy of d with every change applied and queued as pending.
// A change whose From does not match the current part is rejected; no-op changes are dropped.
func ApplyChanges(d *Design, cs Changeset) (*Design, error) {
	out := d.Clone()
	for _, c := range cs {
		cur, ok := out.Parts[c.Instance]
		if !ok {
			return nil, fmt.Errorf("design %s has no component instance %s", d.Class, c.Instance)
		}
		if cur != c.From {
			return nil, fmt.Errorf("instance %s holds %s, not %s", c.Instance, cur, c.From)
		}
		if c.From == c.To {
			continue
		}
		out.Parts[c.Instance] = c.To
		out.pending = append(out.pending, c)
	}
	return out, nil
}

// Swap builds the changeset replacing the part on each of instances with part.
func Swap(d *Design, part string, instances ...string) Changeset {
	var cs Changeset
	for _, inst := range instances {
		cs = append(cs, Change{Instance: inst, From: d.Parts[inst], To: part})
	}
	return cs
}

// AssignPropeller fits prop to a quadcopter so that it can rise and hover: the given propeller
// goes on one diagonal and its opposite-spin partner on the other.
func AssignPropeller(d *Design, cat *catalog.Catalog, prop string) (*Design, error) {
	if d.PropulsionUnits() != 4 {
		return nil, &models.PartAssignmentError{Part: prop, Reason: "spin pairing needs exactly four propellers"}
	}
	p, ok := cat.Propeller(prop)
	if !ok {
		return nil, &models.PartAssignmentError{Part: prop, Reason: "not in the catalog"}
	}
	partner, ok := cat.SpinPartner(p)
	if !ok {
		return nil, &models.PartAssignmentError{
			Part:   prop,
			Reason: "no propeller with the same performance data and opposite spin",
		}
	}

	even, odd := p, partner
	if p.Direction != -1 {
		even, odd = partner, p
	}
	cs := append(
		Swap(d, even.Name, PropPrefix+"0", PropPrefix+"2"),
		Swap(d, odd.Name, PropPrefix+"1", PropPrefix+"3")...,
	)
	return ApplyChanges(d, cs)
}

// CanRunFor reports whether prop can be assigned to d. d is not modified.
func CanRunFor(d *Design, cat *catalog.Catalog, prop string) bool {
	_, err := AssignPropeller(d, cat, prop)
	return err == nil
}

// AvailablePropellers lists the catalog propellers d can be fitted with.
func AvailablePropellers(d *Design, cat *catalog.Catalog) []string {
	var names []string
	for _, p := range cat.Propellers {
		if CanRunFor(d, cat, p.Name) {
			names = append(names, p.Name)
		}
	}
	return names
}

// AssignBattery swaps the design's battery.
func AssignBattery(d *Design, cat *catalog.Catalog, battery string) (*Design, error) {
	if _, ok := cat.Battery(battery); !ok {
		return nil, &models.PartAssignmentError{Part: battery, Reason: "not a battery in the catalog"}
	}
	return ApplyChanges(d, Swap(d, battery, d.Instances(BatteryPrefix)...))
}

// AssignMotor puts motor on every motor instance.
func AssignMotor(d *Design, cat *catalog.Catalog, motor string) (*Design, error) {
	if _, ok := cat.Motor(motor); !ok {
		return nil, &models.PartAssignmentError{Part: motor, Reason: "not a motor in the catalog"}
	}
	return ApplyChanges(d, Swap(d, motor, d.Instances(MotorPrefix)...))
}
