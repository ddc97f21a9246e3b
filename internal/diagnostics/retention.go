package diagnostics

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoReports is returned by LatestReport when the directory holds none.
var ErrNoReports = errors.New("no crash reports found")

type crashFile struct {
	name    string
	modTime time.Time
}

// listImages returns the memory images in dir, oldest first.
func listImages(dir string) ([]crashFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []crashFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ImageSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, crashFile{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].modTime.Before(images[j].modTime)
	})
	return images, nil
}

// PruneReports removes the oldest memory images and their reports so at
// most keep remain. A missing directory is not an error.
func PruneReports(dir string, keep int, logger *slog.Logger) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	images, err := listImages(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing crash dir: %w", err)
	}

	removed := 0
	for len(images) > keep {
		image := filepath.Join(dir, images[0].name)
		for _, path := range []string{image, ReportPath(image)} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
				logger.Warn("failed to remove old crash file",
					"path", path,
					"error", err,
				)
			}
		}
		removed++
		images = images[1:]
	}
	return removed, nil
}

// LatestReport returns the path and contents of the newest crash report
// in dir.
func LatestReport(dir string) (string, []byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("reading crash dir: %w", err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ImageSuffix+ReportSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = e.Name()
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", nil, ErrNoReports
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return "", nil, fmt.Errorf("opening crash dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(newest)
	if err != nil {
		return "", nil, fmt.Errorf("reading crash report: %w", err)
	}
	return filepath.Join(dir, newest), data, nil
}
