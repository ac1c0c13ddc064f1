package design

import (
	"fmt"
	"math"

	"github.com/symbench/fdmopt/internal/catalog"
)

// Parameter names the geometry model understands.
const (
	ArmLength        = "arm_length"
	SupportLength    = "support_length"
	BattMountXOffset = "batt_mount_x_offset"
	BattMountZOffset = "batt_mount_z_offset"
)

// Vec is a position in the body frame, mm. Z points down.
type Vec struct {
	X, Y, Z float64
}

// MassProperties are the lumped mass figures of a configured design.
type MassProperties struct {
	Mass          float64 // kg
	CM            Vec
	Ixx, Iyy, Izz float64 // kg mm^2 about the centre of mass
	Ixy, Ixz, Iyz float64
}

// UnitPositions returns the hub position of each propulsion unit: units sit evenly around the
// centre at hub radius plus arm length, raised by the support length.
func UnitPositions(d *Design) []Vec {
	n := d.PropulsionUnits()
	r := d.Aircraft.HubRadius + d.Param(ArmLength, 0)
	z := -d.Param(SupportLength, 0)
	out := make([]Vec, n)
	for i := range n {
		theta := 2*math.Pi*float64(i)/float64(n) + math.Pi/float64(n)
		out[i] = Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta), Z: z}
	}
	return out
}

// EstimateMassProperties lumps the frame and every part into point masses and returns the
// resulting mass, centre of mass and inertia tensor.
func EstimateMassProperties(d *Design, cat *catalog.Catalog) (MassProperties, error) {
	type pointMass struct {
		m   float64
		pos Vec
	}
	points := []pointMass{{m: d.Aircraft.StructuralMass}}

	weight := func(inst string) (float64, error) {
		part := d.Parts[inst]
		w, ok := cat.Weight(part)
		if !ok {
			return 0, fmt.Errorf("%s: part %q not in catalog", inst, part)
		}
		return w, nil
	}

	for i, pos := range UnitPositions(d) {
		for _, prefix := range []string{PropPrefix, MotorPrefix} {
			inst := fmt.Sprintf("%s%d", prefix, i)
			if _, ok := d.Parts[inst]; !ok {
				continue
			}
			w, err := weight(inst)
			if err != nil {
				return MassProperties{}, err
			}
			points = append(points, pointMass{m: w, pos: pos})
		}
	}
	for _, inst := range d.Instances(ESCPrefix) {
		w, err := weight(inst)
		if err != nil {
			return MassProperties{}, err
		}
		points = append(points, pointMass{m: w})
	}
	batt := Vec{X: d.Param(BattMountXOffset, 0), Z: d.Param(BattMountZOffset, 0)}
	for _, inst := range d.Instances(BatteryPrefix) {
		w, err := weight(inst)
		if err != nil {
			return MassProperties{}, err
		}
		points = append(points, pointMass{m: w, pos: batt})
	}

	var mp MassProperties
	for _, p := range points {
		mp.Mass += p.m
		mp.CM.X += p.m * p.pos.X
		mp.CM.Y += p.m * p.pos.Y
		mp.CM.Z += p.m * p.pos.Z
	}
	if mp.Mass <= 0 {
		return MassProperties{}, fmt.Errorf("design %s has no mass", d.Class)
	}
	mp.CM.X /= mp.Mass
	mp.CM.Y /= mp.Mass
	mp.CM.Z /= mp.Mass

	mp.Ixx, mp.Iyy, mp.Izz = d.Aircraft.Ixx, d.Aircraft.Iyy, d.Aircraft.Izz
	for _, p := range points {
		x, y, z := p.pos.X-mp.CM.X, p.pos.Y-mp.CM.Y, p.pos.Z-mp.CM.Z
		mp.Ixx += p.m * (y*y + z*z)
		mp.Iyy += p.m * (x*x + z*z)
		mp.Izz += p.m * (x*x + y*y)
		mp.Ixy -= p.m * x * y
		mp.Ixz -= p.m * x * z
		mp.Iyz -= p.m * y * z
	}
	return mp, nil
}
