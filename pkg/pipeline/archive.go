package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/printlab/arcpress/pkg/errors"
)

// archiveFile moves a finished document into the archive directory and
// returns its archived path. Falls back to copy+remove when rename crosses
// filesystems.
func archiveFile(path, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create archive dir %s", archiveDir)
	}

	dest := filepath.Join(archiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "archive %s", path)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "archive %s", path)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errors.Wrap(errors.ErrCodeInternal, err, "archive %s", path)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "archive %s", path)
	}
	if err := os.Remove(path); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "remove %s after archive", path)
	}
	return dest, nil
}

// ListArchived returns the archived master documents, newest first.
func ListArchived(archiveDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(archiveDir, "MASTER_ORDER_*.pdf"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return modTime(matches[i]).After(modTime(matches[j]))
	})
	return matches, nil
}

// RetainRecent keeps the newest keep archived masters and removes the rest,
// returning the removed paths.
func RetainRecent(archiveDir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "retention must be >= 1, got %d", keep)
	}
	archived, err := ListArchived(archiveDir)
	if err != nil {
		return nil, err
	}
	if len(archived) <= keep {
		return nil, nil
	}

	var removed []string
	for _, path := range archived[keep:] {
		if err := os.Remove(path); err != nil {
			return removed, errors.Wrap(errors.ErrCodeInternal, err, "prune %s", path)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func modTime(path string) (t time.Time) {
	if info, err := os.Stat(path); err == nil {
		t = info.ModTime()
	}
	return t
}
