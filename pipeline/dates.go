package pipeline

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteDateList saves dates to path, one per line.
func WriteDateList(fs afero.Fs, path string, dates []string) error {
	f, err := createReport(fs, path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, d := range dates {
		if _, err := fmt.Fprintln(w, d); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
