package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"2G", 2048},
		{"2GiB", 2048},
		{"512M", 512},
		{"512Mi", 512},
		{"1.5G", 1536},
		{"2048K", 2},
		{"1048576", 1},
		{"1048576B", 1},
	}
	for _, tt := range tests {
		got, err := ParseMemory(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMemory("lots")
	assert.Error(t, err)
	_, err = ParseMemory("2Q")
	assert.Error(t, err)
}
