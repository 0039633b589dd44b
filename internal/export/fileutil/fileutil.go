// Package fileutil replaces export files so readers never observe a partial write.
package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes a file through a buffered writer into a temporary sibling
// and renames it over path once write succeeds.
func WriteFile(path string, write func(w io.Writer) error) error {
	return ReplaceFile(path, func(tmpPath string) error {
		file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open temporary file: %w", err)
		}

		buf := bufio.NewWriter(file)
		if err := write(buf); err != nil {
			file.Close()
			return err
		}

		if err := buf.Flush(); err != nil {
			file.Close()
			return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
		}

		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
		}

		return file.Close()
	})
}

// ReplaceFile creates an empty temporary file next to path, lets build fill it
// by name and renames it over path. The temporary file is removed on failure.
func ReplaceFile(path string, build func(tmpPath string) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := build(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
