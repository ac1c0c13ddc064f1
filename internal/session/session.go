// Package session owns the on-disk layout of one optimization session: the session directory,
// the testbench maps, per-run artifact directories and the run metric log.
package session

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/symbench/fdmopt/internal/design"
	"github.com/symbench/fdmopt/internal/models"
)

// Files produced inside a session directory.
const (
	GeneratedMarker   = ".generated"
	ComponentMapFile  = "componentMap.json"
	ConnectionMapFile = "connectionMap.json"
	ArtifactsDirName  = "artifacts"
	RunLogFile        = "output.csv"
)

const maxSessionAttempts = 1000

// Options configures Start.
type Options struct {
	ResultsDir string
	Design     *design.Design
	// Testbench is a zip archive holding the component and connection maps. Optional.
	Testbench string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is one timestamped results directory for a design.
type Session struct {
	ID  string
	Dir string

	components []map[string]any
	runLog     *ResultsLog
}

// Start creates a new session directory for opts.Design.
func Start(opts Options) (*Session, error) {
	if opts.Design == nil {
		return nil, fmt.Errorf("session: design is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	id, dir, err := createSessionDir(filepath.Join(opts.ResultsDir, opts.Design.Class), now())
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(filepath.Join(dir, ArtifactsDirName), 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, GeneratedMarker), nil, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", GeneratedMarker, err)
	}

	s := &Session{ID: id, Dir: dir}
	if opts.Testbench != "" {
		if err := extractMaps(opts.Testbench, dir); err != nil {
			return nil, err
		}
		components, err := readComponentMap(filepath.Join(dir, ComponentMapFile))
		if err != nil {
			return nil, err
		}
		s.components = components
		if opts.Design.NeedsSwap() {
			patched, err := s.writeComponentMap(dir, opts.Design.Pending())
			if err != nil {
				return nil, err
			}
			s.components = patched
		}
	}
	opts.Design.ClearPending()
	return s, nil
}

// createSessionDir creates a fresh session directory under parent named after t. A name already
// taken is retried one microsecond later so concurrent sessions never share a directory.
func createSessionDir(parent string, t time.Time) (id, dir string, err error) {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", "", fmt.Errorf("creating session directory: %w", err)
	}
	for range maxSessionAttempts {
		id = "e-" + strings.ReplaceAll(t.Format("2006-01-02T15:04:05.000000"), ":", "-")
		dir = filepath.Join(parent, id)
		err = os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("creating session directory: %w", err)
		}
		t = t.Add(time.Microsecond)
	}
	return "", "", fmt.Errorf("creating session directory: %w", err)
}

// ArtifactsDir is the parent of every run directory.
func (s *Session) ArtifactsDir() string {
	return filepath.Join(s.Dir, ArtifactsDirName)
}

// BeginRun allocates a fresh run directory. Pending part substitutions on d are written to a
// component map inside it and then cleared.
func (s *Session) BeginRun(d *design.Design) (runID, dir string, err error) {
	runID = uuid.NewString()
	dir = filepath.Join(s.ArtifactsDir(), runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating run directory: %w", err)
	}
	if d.NeedsSwap() {
		if s.components != nil {
			if _, err := s.writeComponentMap(dir, d.Pending()); err != nil {
				return "", "", err
			}
		}
		d.ClearPending()
	}
	return runID, dir, nil
}

// FinalizeRun appends rec to the session's run log.
func (s *Session) FinalizeRun(rec *models.RunRecord) error {
	header, values := rec.Row()
	if s.runLog == nil {
		log, err := OpenResultsLog(filepath.Join(s.Dir, RunLogFile), header)
		if err != nil {
			return err
		}
		s.runLog = log
	}
	return s.runLog.Append(values)
}

// Close releases the run log.
func (s *Session) Close() error {
	if s.runLog == nil {
		return nil
	}
	err := s.runLog.Close()
	s.runLog = nil
	return err
}

// writeComponentMap writes the session component map with the LIB_COMPONENT of every changed
// instance replaced.
func (s *Session) writeComponentMap(dir string, cs design.Changeset) ([]map[string]any, error) {
	targets := cs.Targets()
	patched := make([]map[string]any, 0, len(s.components))
	for _, entry := range s.components {
		out := make(map[string]any, len(entry))
		for k, v := range entry {
			out[k] = v
		}
		if inst, ok := entry["FROM_COMP"].(string); ok {
			if part, ok := targets[inst]; ok {
				out["LIB_COMPONENT"] = part
			}
		}
		patched = append(patched, out)
	}

	data, err := json.MarshalIndent(patched, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding component map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ComponentMapFile), data, 0644); err != nil {
		return nil, fmt.Errorf("writing component map: %w", err)
	}
	return patched, nil
}

func readComponentMap(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading component map: %w", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing component map: %w", err)
	}
	return entries, nil
}

// extractMaps copies the component and connection maps out of the testbench archive.
func extractMaps(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening testbench %s: %w", archive, err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if name != ComponentMapFile && name != ConnectionMapFile {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s in testbench: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return out.Close()
}
