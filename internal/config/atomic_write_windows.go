//go:build windows

package config

import (
	"os"
	"path/filepath"
)

// AtomicWrite writes data to a file using a write-rename pattern since
// renameio doesn't support Windows.
func AtomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return err
	}

	return nil
}
