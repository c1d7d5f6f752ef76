// CLAUDE:SUMMARY Export directory layout: validation, month-range file filtering, response file matching.
// Package backup reads a Plurk export ("backup") directory and yields
// normalized Plurk and Response records.
//
// Layout of a valid backup:
//
//	<dir>/
//	├── data/
//	│   ├── plurks/      one JS file per month (2008_12.js, ...)
//	│   ├── responses/   one JS file per plurk base id (100o22.js, ...)
//	│   └── indexes.js
//
// Parsing a file is deterministic and side-effect-free; malformed records
// are skipped with a warning, never aborting the month.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidDir is returned when the directory lacks the export layout.
var ErrInvalidDir = fmt.Errorf("backup: not a valid backup directory (need data/plurks/, data/responses/, data/indexes.js)")

// PlurksDir returns the plurk month-file directory under root.
func PlurksDir(root string) string { return filepath.Join(root, "data", "plurks") }

// ResponsesDir returns the response-file directory under root.
func ResponsesDir(root string) string { return filepath.Join(root, "data", "responses") }

// ValidateDir checks that root has the required export structure.
func ValidateDir(root string) error {
	required := []string{
		PlurksDir(root),
		ResponsesDir(root),
		filepath.Join(root, "data", "indexes.js"),
	}
	for _, p := range required {
		if _, err := os.Stat(p); err != nil {
			return ErrInvalidDir
		}
	}
	return nil
}

// PlurkFiles lists plurk month files under dir whose month key falls in
// [start, end]. Months are "YYYY-MM" strings; empty start selects all
// files. The result is sorted by file name (chronological, since month
// files are named YYYY_MM.js).
func PlurkFiles(dir, start, end string) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, fmt.Errorf("backup: glob plurk files: %w", err)
	}
	sort.Strings(all)

	if start == "" {
		return all, nil
	}

	var files []string
	for _, f := range all {
		// File stem YYYY_MM -> YYYY-MM for lexical comparison.
		stem := strings.TrimSuffix(filepath.Base(f), ".js")
		month := strings.ReplaceAll(stem, "_", "-")
		if start <= month && month <= end {
			files = append(files, f)
		}
	}
	return files, nil
}

// ResponseFiles lists response files under dir whose stem matches one of
// the given plurk base ids, sorted by file name.
func ResponseFiles(dir string, baseIDs map[string]bool) ([]string, error) {
	if len(baseIDs) == 0 {
		return nil, nil
	}
	all, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, fmt.Errorf("backup: glob response files: %w", err)
	}

	var files []string
	for _, f := range all {
		stem := strings.TrimSuffix(filepath.Base(f), ".js")
		if baseIDs[stem] {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

// MonthKey converts an operator-facing YYYYMM month into the "YYYY-MM"
// form used for file filtering. Returns an error for malformed input.
func MonthKey(yyyymm string) (string, error) {
	if len(yyyymm) != 6 {
		return "", fmt.Errorf("backup: month must be YYYYMM, got %q", yyyymm)
	}
	for _, r := range yyyymm {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("backup: month must be YYYYMM, got %q", yyyymm)
		}
	}
	mm := yyyymm[4:]
	if mm < "01" || mm > "12" {
		return "", fmt.Errorf("backup: month must be 01-12, got %q", mm)
	}
	return yyyymm[:4] + "-" + mm, nil
}
