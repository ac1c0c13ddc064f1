// Package catalog holds the component database the designs pick their parts from.
package catalog

import (
	"fmt"
	"io/fs"
	"slices"

	"github.com/BurntSushi/toml"
)

// Propeller is a propeller part with its tabulated performance data file.
type Propeller struct {
	Name            string  `toml:"name"`
	PerformanceFile string  `toml:"performance_file"`
	Direction       float64 `toml:"direction"` // +1 or -1 spin
	Diameter        float64 `toml:"diameter"`  // mm
	HubThickness    float64 `toml:"hub_thickness"`
	Weight          float64 `toml:"weight"` // kg
}

// Motor is an electric motor part.
type Motor struct {
	Name        string  `toml:"name"`
	KV          float64 `toml:"kv"`
	KT          float64 `toml:"kt"`
	MaxCurrent  float64 `toml:"max_current"`
	IdleCurrent float64 `toml:"idle_current"`
	MaxPower    float64 `toml:"max_power"`
	Resistance  float64 `toml:"internal_resistance"` // mOhm
	Weight      float64 `toml:"weight"`
}

// Battery is a battery pack part.
type Battery struct {
	Name          string  `toml:"name"`
	Cells         int     `toml:"cells"`
	Voltage       float64 `toml:"voltage"`
	Capacity      float64 `toml:"capacity"` // mAh
	ContDischarge float64 `toml:"cont_discharge_rate"`
	PeakDischarge float64 `toml:"peak_discharge_rate"`
	Weight        float64 `toml:"weight"`
}

// ESC is a speed controller part.
type ESC struct {
	Name   string  `toml:"name"`
	Weight float64 `toml:"weight"`
}

// Catalog is the set of parts available to designs.
type Catalog struct {
	Propellers []Propeller `toml:"propeller"`
	Motors     []Motor     `toml:"motor"`
	Batteries  []Battery   `toml:"battery"`
	ESCs       []ESC       `toml:"esc"`
}

// Load parses a catalog TOML file from fsys.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var cat Catalog
	if _, err := toml.Decode(string(data), &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]string)
	check := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("catalog: %s without a name", kind)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("catalog: %s %q already defined as %s", kind, name, prev)
		}
		seen[name] = kind
		return nil
	}
	for _, p := range c.Propellers {
		if err := check("propeller", p.Name); err != nil {
			return err
		}
		if p.Direction != 1 && p.Direction != -1 {
			return fmt.Errorf("catalog: propeller %q has direction %v, want 1 or -1", p.Name, p.Direction)
		}
	}
	for _, m := range c.Motors {
		if err := check("motor", m.Name); err != nil {
			return err
		}
	}
	for _, b := range c.Batteries {
		if err := check("battery", b.Name); err != nil {
			return err
		}
	}
	for _, e := range c.ESCs {
		if err := check("esc", e.Name); err != nil {
			return err
		}
	}
	return nil
}

// Propeller looks a propeller up by name.
func (c *Catalog) Propeller(name string) (Propeller, bool) {
	i := slices.IndexFunc(c.Propellers, func(p Propeller) bool { return p.Name == name })
	if i < 0 {
		return Propeller{}, false
	}
	return c.Propellers[i], true
}

// Motor looks a motor up by name.
func (c *Catalog) Motor(name string) (Motor, bool) {
	i := slices.IndexFunc(c.Motors, func(m Motor) bool { return m.Name == name })
	if i < 0 {
		return Motor{}, false
	}
	return c.Motors[i], true
}

// Battery looks a battery up by name.
func (c *Catalog) Battery(name string) (Battery, bool) {
	i := slices.IndexFunc(c.Batteries, func(b Battery) bool { return b.Name == name })
	if i < 0 {
		return Battery{}, false
	}
	return c.Batteries[i], true
}

// ESC looks a speed controller up by name.
func (c *Catalog) ESC(name string) (ESC, bool) {
	i := slices.IndexFunc(c.ESCs, func(e ESC) bool { return e.Name == name })
	if i < 0 {
		return ESC{}, false
	}
	return c.ESCs[i], true
}

// Weight returns the weight of any part by name.
func (c *Catalog) Weight(name string) (float64, bool) {
	if p, ok := c.Propeller(name); ok {
		return p.Weight, true
	}
	if m, ok := c.Motor(name); ok {
		return m.Weight, true
	}
	if b, ok := c.Battery(name); ok {
		return b.Weight, true
	}
	if e, ok := c.ESC(name); ok {
		return e.Weight, true
	}
	return 0, false
}

// SpinPartner returns the propeller sharing p's performance data with the opposite spin.
func (c *Catalog) SpinPartner(p Propeller) (Propeller, bool) {
	for _, q := range c.Propellers {
		if q.PerformanceFile == p.PerformanceFile && q.Direction == -p.Direction {
			return q, true
		}
	}
	return Propeller{}, false
}
