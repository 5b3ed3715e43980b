package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// parseSize parses a human-readable size string into bytes.
// Supports formats: "100", "1K", "1MB", "1GiB", etc.
func parseSize(s string) (int64, error) {
	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(bytes), nil
}

// normalizePaths converts watched paths to absolute form so log messages
// and baseline keys stay stable regardless of the working directory.
func normalizePaths(paths []string) ([]string, error) {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", p, err)
		}
		abs = append(abs, a)
	}
	return abs, nil
}
