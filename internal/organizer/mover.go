package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// MoveEntry relocates a downloaded file or folder into the library. A plain
// rename is tried first; when source and target sit on different filesystems
// the entry is copied and the source removed afterwards.
func MoveEntry(sourcePath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(sourcePath, targetPath); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if err := copyEntry(sourcePath, targetPath); err != nil {
				return fmt.Errorf("copy across devices: %w", err)
			}
			if err := os.RemoveAll(sourcePath); err != nil {
				return fmt.Errorf("remove source after copy: %w", err)
			}
			return nil
		}
		return fmt.Errorf("move entry: %w", err)
	}
	return nil
}

func copyEntry(sourcePath, targetPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return copyDir(sourcePath, targetPath)
	}
	return copyFileContents(sourcePath, targetPath, info.Mode().Perm())
}

func copyDir(sourceDir, targetDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("read source directory: %w", err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	for _, entry := range entries {
		src := filepath.Join(sourceDir, entry.Name())
		dst := filepath.Join(targetDir, entry.Name())
		if entry.IsDir() {
			if err := copyDir(src, dst); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}
		if err := copyFileContents(src, dst, info.Mode().Perm()); err != nil {
			return err
		}
	}
	return nil
}

func copyFileContents(sourcePath, targetPath string, mode os.FileMode) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// nextAvailablePath returns target unchanged when it is free, otherwise the
// first "name (n)" variant that does not exist yet.
func nextAvailablePath(target string) (string, error) {
	const maxAttempts = 10000
	candidate := target
	ext := filepath.Ext(target)
	stem := target[:len(target)-len(ext)]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, attempt, ext)
	}
	return "", fmt.Errorf("exhausted placement slots for %s", target)
}
