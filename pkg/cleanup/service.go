// Package cleanup implements the filesystem hygiene phases: the Phase 0
// pre-run purge of stale staging and cache trees, and the Phase 5 post-run
// purge of temp artifacts with essential-file validation.
//
// Both services are idempotent: re-running them against an already-clean
// tree reports zero work and no error.
package cleanup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// tempPatterns are the Phase 5 removal candidates. A file is removed only
// when it matches one of these AND is not essential for the tool.
var tempPatterns = []string{
	"*.tmp",
	"*_staging.*",
	"*_intelligence.*",
	"*_phase_*.*",
	"agent_*_*.*",
}

// InitReport is the Phase 0 outcome.
type InitReport struct {
	FilesRemoved        int      `json:"files_removed"`
	DirectoriesCleaned  int      `json:"directories_cleaned"`
	TotalSizeFreedBytes int64    `json:"total_size_freed_bytes"`
	Errors              []string `json:"errors,omitempty"`
}

// RunReport is the Phase 5 outcome.
type RunReport struct {
	FilesRemoved     int      `json:"files_removed"`
	EssentialFiles   []string `json:"essential_files"`
	MissingEssential []string `json:"missing_essential,omitempty"`
	ValidationPassed bool     `json:"validation_passed"`
	Errors           []string `json:"errors,omitempty"`
}

// InitCleaner purges stale state from previous runs before a new run starts.
type InitCleaner struct {
	root   string
	logger *slog.Logger
}

// NewInitCleaner cleans under the given output root.
func NewInitCleaner(root string) *InitCleaner {
	return &InitCleaner{root: root, logger: slog.With("component", "init_cleanup")}
}

// Clean empties <root>/staging/ and <root>/cache/. It never descends into
// <root>/runs/; completed run artifacts outlive any number of new runs.
// Per-entry removal failures are collected, not fatal.
func (c *InitCleaner) Clean() *InitReport {
	report := &InitReport{}
	for _, name := range []string{"staging", "cache"} {
		dir := filepath.Join(c.root, name)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", dir, err))
			}
			continue
		}
		report.DirectoriesCleaned++
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			files, size := measure(path)
			if err := os.RemoveAll(path); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			report.FilesRemoved += files
			report.TotalSizeFreedBytes += size
		}
	}
	c.logger.Info("Initialization cleanup complete",
		"files_removed", report.FilesRemoved,
		"directories_cleaned", report.DirectoriesCleaned,
		"bytes_freed", report.TotalSizeFreedBytes)
	return report
}

// measure counts regular files and their total size under path.
func measure(path string) (files int, size int64) {
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		files++
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return files, size
}

// RunCleaner removes temp artifacts from a finished run directory.
type RunCleaner struct {
	logger *slog.Logger
}

// NewRunCleaner builds the Phase 5 cleaner.
func NewRunCleaner() *RunCleaner {
	return &RunCleaner{logger: slog.With("component", "run_cleanup")}
}

// Clean removes every file in runDir that matches a temp pattern and is not
// essential for the tool, then validates that all essential files survived.
func (c *RunCleaner) Clean(runDir string, tool models.Tool) *RunReport {
	essential := tool.EssentialFiles()
	report := &RunReport{EssentialFiles: essential}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", runDir, err))
		report.MissingEssential = essential
		return report
	}

	keep := make(map[string]bool, len(essential))
	for _, name := range essential {
		keep[name] = true
	}

	for _, entry := range entries {
		if entry.IsDir() || keep[entry.Name()] || !isTempFile(entry.Name()) {
			continue
		}
		path := filepath.Join(runDir, entry.Name())
		if err := os.Remove(path); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		report.FilesRemoved++
	}

	for _, name := range essential {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			report.MissingEssential = append(report.MissingEssential, name)
		}
	}
	report.ValidationPassed = len(report.MissingEssential) == 0

	c.logger.Info("Run cleanup complete",
		"run_dir", runDir,
		"files_removed", report.FilesRemoved,
		"validation_passed", report.ValidationPassed)
	return report
}

func isTempFile(name string) bool {
	for _, pattern := range tempPatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
