package docker

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
	s := New("ghcr.io/symbench/new_fdm:latest", "")
	inv := simulator.Invocation{Path: models.PathCircle, WorkDir: "/tmp/artifacts/abc"}

	args, err := s.Args(inv)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run", "--rm", "-i",
		"--name", "fdmopt-abc-path3",
		"-v", "/tmp/artifacts/abc:/work",
		"-w", "/work",
		"ghcr.io/symbench/new_fdm:latest",
		"new_fdm",
	}, args)
}

func TestRunThroughDockerCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	// stands in for the docker CLI: records its arguments and echoes a no-trim report
	bin := t.TempDir()
	record := filepath.Join(bin, "args")
	script := "#!/bin/sh\necho \"$@\" > " + record + "\ncat > /dev/null\necho ' no trim conditions found'\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "docker"), []byte(script), 0755))

	dir := t.TempDir()
	inv := simulator.Invocation{
		Path:       models.PathStraightLine,
		WorkDir:    dir,
		InputPath:  "FlightDyn_Path1.inp",
		ReportPath: "FlightDynReport_Path1.out",
	}
	doc := "aircraft%mass = 1\naircraft%Ixx = 1\naircraft%Iyy = 1\naircraft%Izz = 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, inv.InputPath), []byte(doc), 0644))

	s := New("fdm:test", "/opt/new_fdm")
	s.docker = filepath.Join(bin, "docker")

	res, err := s.Run(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, res.NoTrim)

	got, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(got)), "fdm:test /opt/new_fdm"))
	assert.Equal(t, models.BackendDocker, s.Name())
}
