package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/pthm-cable/evobee/config"
)

// RunInfo identifies one simulation run in its output directory.
type RunInfo struct {
	ID        string    `json:"id"`
	Seed      int64     `json:"seed"`
	Ticks     int       `json:"ticks"`
	Hives     []string  `json:"hives"`
	StartedAt time.Time `json:"started_at"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// CSVFile is an append-only CSV file that writes its header once.
type CSVFile struct {
	f             *os.File
	headerWritten bool
}

// CreateCSV creates (or truncates) the CSV file at path.
func CreateCSV(path string) (*CSVFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CSVFile{f: f}, nil
}

// Close closes the underlying file. Closing twice is a no-op.
func (cf *CSVFile) Close() error {
	if cf == nil || cf.f == nil {
		return nil
	}
	err := cf.f.Close()
	cf.f = nil
	return err
}

// AppendCSV writes records to cf, preceded by the header on first use.
func AppendCSV[T any](cf *CSVFile, records []T) error {
	if !cf.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, cf.f); err != nil {
			return err
		}
		cf.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	return gocsv.MarshalWithoutHeaders(records, cf.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry *CSVFile
	hives     *CSVFile
	perf      *CSVFile
	bookmarks *CSVFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  **CSVFile
	}{
		{"telemetry.csv", &om.telemetry},
		{"hives.csv", &om.hives},
		{"perf.csv", &om.perf},
		{"bookmarks.csv", &om.bookmarks},
	}
	for _, file := range files {
		cf, err := CreateCSV(filepath.Join(dir, file.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", file.name, err)
		}
		*file.dst = cf
	}

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRunInfo saves the run identity as run.json.
func (om *OutputManager) WriteRunInfo(info RunInfo) error {
	if om == nil {
		return nil
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "run.json"), data, 0644); err != nil {
		return fmt.Errorf("writing run.json: %w", err)
	}
	return nil
}

// WriteTick writes a tick record to telemetry.csv and its hive rows to hives.csv.
func (om *OutputManager) WriteTick(stats TickStats) error {
	if om == nil {
		return nil
	}
	if err := AppendCSV(om.telemetry, []TickStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	if len(stats.Hives) == 0 {
		return nil
	}
	if err := AppendCSV(om.hives, stats.Hives); err != nil {
		return fmt.Errorf("writing hive stats: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := AppendCSV(om.perf, []PerfRow{stats.Row(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := AppendCSV(om.bookmarks, []Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, cf := range []*CSVFile{om.telemetry, om.hives, om.perf, om.bookmarks} {
		if err := cf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
