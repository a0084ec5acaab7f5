package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/spf13/afero"
)

// DualWriter records results as CSV and JSONL side by side.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

// NewDualWriter creates both report files on fs.
func NewDualWriter(fs afero.Fs, csvFilename, jsonFilename string) (*DualWriter, error) {
	cw, err := NewCSVWriter(fs, csvFilename)
	if err != nil {
		return nil, fmt.Errorf("csv report: %w", err)
	}
	jw, err := NewJSONWriter(fs, jsonFilename)
	if err != nil {
		cw.Close()
		return nil, fmt.Errorf("json report: %w", err)
	}
	return &DualWriter{csv: cw, json: jw}, nil
}

func (dw *DualWriter) Write(results []*models.DownloadResult) error {
	if err := dw.csv.Write(results); err != nil {
		return fmt.Errorf("csv report: %w", err)
	}
	if err := dw.json.Write(results); err != nil {
		return fmt.Errorf("json report: %w", err)
	}
	return nil
}

func (dw *DualWriter) Close() error {
	return errors.Join(dw.csv.Close(), dw.json.Close())
}

func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}
