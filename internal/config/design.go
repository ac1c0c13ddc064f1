package config

import (
	"fmt"
	"io/fs"
	"maps"

	"github.com/BurntSushi/toml"

	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/models"
)

// DesignFile is the TOML layout of a seed design.
type DesignFile struct {
	Name       string             `toml:"name"`
	Class      string             `toml:"class"`
	Parameters map[string]float64 `toml:"parameters"`
	Parts      map[string]string  `toml:"parts"`
	Aircraft   design.Aircraft    `toml:"aircraft"`

	// Older files name one part per kind and a unit count instead of listing instances.
	PropulsionUnits int    `toml:"propulsion_units"`
	Propeller       string `toml:"propeller"`
	Motor           string `toml:"motor"`
	ESC             string `toml:"esc"`
	Battery         string `toml:"battery"`
}

// DefaultDesignFile returns a DesignFile with default values.
func DefaultDesignFile() DesignFile {
	return DesignFile{
		Aircraft: design.Aircraft{
			CName:        "UAV",
			CType:        "SymCPS UAV Design",
			TimeEnd:      1000,
			AnalysisType: 3,
		},
	}
}

// LoadDesign loads and parses a design TOML file from the given filesystem.
func LoadDesign(fsys fs.FS, name string) (*design.Design, error) {
	f := DefaultDesignFile()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	if f.Class == "" {
		f.Class = f.Name
	}
	if f.Class == "" {
		return nil, fmt.Errorf("%s: design needs a class or name", name)
	}

	// Handle legacy per-kind part keys if no [parts] table is given
	if !md.IsDefined("parts") && md.IsDefined("propulsion_units") {
		f.Parts = expandParts(f)
	}
	if len(f.Parts) == 0 {
		return nil, fmt.Errorf("%s: design has no parts", name)
	}

	if !md.IsDefined("aircraft", "cname") {
		f.Aircraft.CName = f.Class
	}

	return design.New(f.Class, models.Parameters(maps.Clone(f.Parameters)), f.Parts, f.Aircraft), nil
}

func expandParts(f DesignFile) map[string]string {
	parts := make(map[string]string)
	for i := range f.PropulsionUnits {
		set := func(prefix, part string) {
			if part != "" {
				parts[fmt.Sprintf("%s%d", prefix, i)] = part
			}
		}
		set(design.PropPrefix, f.Propeller)
		set(design.MotorPrefix, f.Motor)
		set(design.ESCPrefix, f.ESC)
	}
	if f.Battery != "" {
		parts[design.BatteryPrefix+"0"] = f.Battery
	}
	return parts
}
