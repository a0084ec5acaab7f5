package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeSpace reports the free bytes on the volume that holds dir. dir need
// not exist yet; its nearest existing ancestor is measured instead.
func FreeSpace(ctx context.Context, dir string) (uint64, error) {
	probe, err := existingAncestor(dir)
	if err != nil {
		return 0, err
	}
	usage, err := disk.UsageWithContext(ctx, probe)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", probe, err)
	}
	return usage.Free, nil
}

func existingAncestor(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	for {
		_, err := os.Stat(abs)
		if err == nil {
			return abs, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", abs, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor for %s", dir)
		}
		abs = parent
	}
}
