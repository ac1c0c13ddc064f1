package apple

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/simulator"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.AppleConfig
		want []string
	}{
		{
			name: "no resource limits",
			cfg:  models.AppleConfig{Image: "fdm:latest"},
			want: []string{
				"run", "--rm", "-i", "--name", "fdmopt-abc-path4",
				"--volume", "/tmp/artifacts/abc:/work", "--workdir", "/work",
				"fdm:latest", "new_fdm",
			},
		},
		{
			name: "cpus and memory",
			cfg:  models.AppleConfig{Image: "fdm:latest", CPUs: 2, MemoryMB: 1024},
			want: []string{
				"run", "--rm", "-i", "--name", "fdmopt-abc-path4",
				"--cpus", "2", "--memory", "1024m",
				"--volume", "/tmp/artifacts/abc:/work", "--workdir", "/work",
				"fdm:latest", "new_fdm",
			},
		},
	}

	inv := simulator.Invocation{Path: models.PathRiseAndHover, WorkDir: "/tmp/artifacts/abc"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := newSimulator(tt.cfg, "", "container").Args(inv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestArgsRejectsTraversal(t *testing.T) {
	_, err := newSimulator(models.AppleConfig{Image: "fdm"}, "", "container").Args(simulator.Invocation{WorkDir: "results/../../etc"})
	assert.ErrorContains(t, err, "directory traversal")
}

func TestNewRequiresImage(t *testing.T) {
	_, err := New(models.AppleConfig{}, "")
	assert.ErrorContains(t, err, "image is required")
}

func TestRunThroughContainerCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	bin := t.TempDir()
	record := filepath.Join(bin, "args")
	script := "#!/bin/sh\necho \"$@\" > " + record + "\ncat > /dev/null\necho ' no trim conditions found'\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "container"), []byte(script), 0755))

	dir := t.TempDir()
	inv := simulator.Invocation{
		Path:       models.PathCircle,
		WorkDir:    dir,
		InputPath:  "FlightDyn_Path3.inp",
		ReportPath: "FlightDynReport_Path3.out",
	}
	doc := "aircraft%mass = 1\naircraft%Ixx = 1\naircraft%Iyy = 1\naircraft%Izz = 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, inv.InputPath), []byte(doc), 0644))

	s := newSimulator(models.AppleConfig{Image: "fdm:test"}, "/opt/new_fdm", filepath.Join(bin, "container"))
	res, err := s.Run(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, res.NoTrim)
	assert.Equal(t, models.BackendApple, s.Name())

	got, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(got)), "fdm:test /opt/new_fdm"))
}
