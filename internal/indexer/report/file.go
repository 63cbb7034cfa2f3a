package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// WriteFile atomically creates the report file at path. The report is
// written to a .tmp sibling, synced and renamed into place, so a failed run
// never leaves a partial report behind.
func WriteFile(path string, idx *index.Index) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp report in %s: %v", apperrors.ErrOutputUnwritable, dir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := Write(tmp, idx)
	if err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("%w: syncing report: %v", apperrors.ErrOutputUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("%w: closing report: %v", apperrors.ErrOutputUnwritable, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return n, fmt.Errorf("%w: setting report mode: %v", apperrors.ErrOutputUnwritable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return n, fmt.Errorf("%w: renaming report to %s: %v", apperrors.ErrOutputUnwritable, path, err)
	}
	committed = true
	return n, nil
}
