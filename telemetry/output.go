package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/config"
)

// CSVOutput is a module that writes every candidate it receives as a row of
// detections CSV. Rows are buffered and written in batches. Safe for
// concurrent use.
type CSVOutput struct {
	mu            sync.Mutex
	w             io.Writer
	buf           []DetectionRecord
	batch         int
	headerWritten bool
	rows          int
	err           error
}

// NewCSVOutput creates a CSV output flushing every batch rows.
func NewCSVOutput(w io.Writer, batch int) *CSVOutput {
	if batch < 1 {
		batch = 256
	}
	return &CSVOutput{w: w, batch: batch, buf: make([]DetectionRecord, 0, batch)}
}

// Process buffers c as a detection row.
func (o *CSVOutput) Process(c *candidate.Candidate) {
	rec := NewDetectionRecord(c)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf = append(o.buf, rec)
	if len(o.buf) >= o.batch {
		o.flushLocked()
	}
}

// Description implements module.Describer.
func (o *CSVOutput) Description() string {
	return fmt.Sprintf("CSVOutput: batches of %d rows", o.batch)
}

// Flush writes any buffered rows and returns the first write error seen.
func (o *CSVOutput) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushLocked()
	return o.err
}

// Rows returns the number of rows written so far.
func (o *CSVOutput) Rows() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rows
}

func (o *CSVOutput) flushLocked() {
	if len(o.buf) == 0 || o.err != nil {
		o.buf = o.buf[:0]
		return
	}

	var err error
	if !o.headerWritten {
		err = gocsv.Marshal(o.buf, o.w)
		o.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(o.buf, o.w)
	}
	if err != nil {
		o.err = fmt.Errorf("writing detections: %w", err)
	} else {
		o.rows += len(o.buf)
	}
	o.buf = o.buf[:0]
}

// Report is the machine-readable summary of a run.
type Report struct {
	Run        RunStats `json:"run"`
	Detections Summary  `json:"detections"`
	Pipeline   []string `json:"pipeline"`
}

// OutputManager handles structured run output: the configuration snapshot,
// detections.csv, spectrum.csv and summary.json.
type OutputManager struct {
	dir            string
	detectionsFile *os.File
	detections     *CSVOutput
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string, batch int) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "detections.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating detections.csv: %w", err)
	}

	return &OutputManager{
		dir:            dir,
		detectionsFile: f,
		detections:     NewCSVOutput(f, batch),
	}, nil
}

// Detections returns the module streaming rows to detections.csv, or nil
// when output is disabled.
func (om *OutputManager) Detections() *CSVOutput {
	if om == nil {
		return nil
	}
	return om.detections
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteSpectrum writes the binned spectrum to spectrum.csv.
func (om *OutputManager) WriteSpectrum(bins []SpectrumBin) error {
	if om == nil {
		return nil
	}

	f, err := os.Create(filepath.Join(om.dir, "spectrum.csv"))
	if err != nil {
		return fmt.Errorf("creating spectrum.csv: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(bins, f); err != nil {
		return fmt.Errorf("writing spectrum: %w", err)
	}
	return nil
}

// WriteReport saves the run report as summary.json.
func (om *OutputManager) WriteReport(r Report) error {
	if om == nil {
		return nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "summary.json"), data, 0644); err != nil {
		return fmt.Errorf("writing summary.json: %w", err)
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

	firstErr := om.detections.Flush()
	if err := om.detectionsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
