package session

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ResultsLog appends CSV rows to a file. The header is written only when the file is created.
// A ResultsLog has a single owner and is not safe for concurrent use.
type ResultsLog struct {
	path    string
	columns int
	f       *os.File
	w       *csv.Writer
}

// OpenResultsLog opens path for appending, writing header first if the file is new or empty.
func OpenResultsLog(path string, header []string) (*ResultsLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening results log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results log: %w", err)
	}

	l := &ResultsLog{path: path, columns: len(header), f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// Path returns the file being written.
func (l *ResultsLog) Path() string {
	return l.path
}

// Append writes one row and flushes it to disk.
func (l *ResultsLog) Append(values []string) error {
	if len(values) != l.columns {
		return fmt.Errorf("results log %s: row has %d columns, header has %d", l.path, len(values), l.columns)
	}
	return l.write(values)
}

func (l *ResultsLog) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("writing results log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flushing results log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *ResultsLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
