package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/spf13/afero"
)

var csvHeader = []string{
	"date", "file", "outcome", "bytes", "remote_size", "duration_ms",
	"reason", "error", "url", "path", "finished_at",
}

// CSVWriter writes one row per result.
type CSVWriter struct {
	file   afero.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename on fs and writes the header row.
func NewCSVWriter(fs afero.Fs, filename string) (*CSVWriter, error) {
	f, err := createReport(fs, filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVWriter{file: f, writer: writer}, nil
}

// Write appends results.
func (cw *CSVWriter) Write(results []*models.DownloadResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, r := range results {
		finished := ""
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.Date,
			r.File,
			string(r.Outcome),
			strconv.FormatInt(r.Bytes, 10),
			strconv.FormatInt(r.RemoteSize, 10),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Reason,
			r.Error,
			r.URL,
			r.Path,
			finished,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate checks that the report holds more than the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= int64(len(strings.Join(csvHeader, ","))+1) {
		return fmt.Errorf("csv report has no rows")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON.
type JSONWriter struct {
	file    afero.File
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates filename on fs.
func NewJSONWriter(fs afero.Fs, filename string) (*JSONWriter, error) {
	f, err := createReport(fs, filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &JSONWriter{file: f, buf: buf, encoder: json.NewEncoder(buf)}, nil
}

// Write appends results, one object per line.
func (jw *JSONWriter) Write(results []*models.DownloadResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range results {
		if err := jw.encoder.Encode(r); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate checks that the report is not empty.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json report is empty")
	}
	return nil
}

// OpenReport returns the writer for format ("csv", "json" or "dual"). Dual
// reports write filename with .csv and .jsonl extensions.
func OpenReport(fs afero.Fs, format, filename string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVWriter(fs, filename)
	case "json":
		return NewJSONWriter(fs, filename)
	case "dual":
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		return NewDualWriter(fs, base+".csv", base+".jsonl")
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

func createReport(fs afero.Fs, filename string) (afero.File, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := fs.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create report %q: %w", filename, err)
	}
	return f, nil
}
