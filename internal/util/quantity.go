package util

import (
	"fmt"
	"strings"
)

var memoryUnits = map[string]float64{
	"":  1.0 / (1024 * 1024),
	"B": 1.0 / (1024 * 1024),
	"K": 1.0 / 1024,
	"M": 1,
	"G": 1024,
	"T": 1024 * 1024,
}

// ParseMemory converts a memory string (e.g. "2G", "512Mi") to MiB.
// A bare number is taken as bytes; an empty string is 0.
func ParseMemory(memory string) (int, error) {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return 0, nil
	}

	var value float64
	var unit string
	n, err := fmt.Sscanf(memory, "%f%s", &value, &unit)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("invalid memory value: %s", memory)
	}

	key := strings.ToUpper(strings.TrimSpace(unit))
	key = strings.TrimSuffix(strings.TrimSuffix(key, "B"), "I")
	if key == "" && strings.EqualFold(strings.TrimSpace(unit), "B") {
		key = "B"
	}
	scale, ok := memoryUnits[key]
	if !ok {
		return 0, fmt.Errorf("unknown memory unit: %s", unit)
	}
	return int(value * scale), nil
}
