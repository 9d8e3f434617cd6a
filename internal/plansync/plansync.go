// Package plansync copies validated plan CSVs from the master directory into
// the directory the dataset cache serves from.
package plansync

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/floorsync/server/internal/dataset"
)

type Outcome string

const (
	OutcomeCopied         Outcome = "copied"
	OutcomeWouldCopy      Outcome = "would_copy"
	OutcomeMissing        Outcome = "missing"
	OutcomeHeaderMismatch Outcome = "header_mismatch"
	OutcomeFailed         Outcome = "failed"
)

type Result struct {
	Key     string  `json:"key"`
	Source  string  `json:"source,omitempty"`
	Dest    string  `json:"dest"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

type Report struct {
	SourceDir string   `json:"source_dir"`
	TargetDir string   `json:"target_dir"`
	DryRun    bool     `json:"dry_run"`
	Results   []Result `json:"results"`
}

// Failed reports whether any dataset was rejected or could not be copied.
// Missing sources are not failures.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeHeaderMismatch || res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

type Syncer struct {
	SourceDir string
	TargetDir string
	Defs      []dataset.Definition
	DryRun    bool
	Logger    *slog.Logger
}

func (s *Syncer) Run() Report {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{SourceDir: s.SourceDir, TargetDir: s.TargetDir, DryRun: s.DryRun, Results: []Result{}}

	if info, err := os.Stat(s.SourceDir); err != nil || !info.IsDir() {
		logger.Warn("plan source directory not found", "dir", s.SourceDir)
		return report
	}

	for _, def := range s.Defs {
		res := Result{Key: def.Key, Dest: filepath.Join(s.TargetDir, def.Filename)}

		src, ok := findSource(s.SourceDir, def.Filename)
		if !ok {
			res.Outcome = OutcomeMissing
			logger.Warn("plan dataset not found", "filename", def.Filename, "dir", s.SourceDir)
			report.Results = append(report.Results, res)
			continue
		}
		res.Source = src

		header, err := dataset.ReadHeader(src)
		switch {
		case err != nil:
			res.Outcome = OutcomeFailed
			res.Detail = fmt.Sprintf("read header: %v", err)
		case !slices.Equal(header, def.Columns):
			res.Outcome = OutcomeHeaderMismatch
			res.Detail = fmt.Sprintf("unexpected header %v (expected %v)", header, def.Columns)
		case s.DryRun:
			res.Outcome = OutcomeWouldCopy
		default:
			if err := copyFile(src, res.Dest); err != nil {
				res.Outcome = OutcomeFailed
				res.Detail = err.Error()
			} else {
				res.Outcome = OutcomeCopied
			}
		}

		if res.Detail != "" {
			logger.Error("plan dataset rejected", "filename", def.Filename, "outcome", res.Outcome, "detail", res.Detail)
		} else {
			logger.Info("plan dataset synced", "filename", def.Filename, "outcome", res.Outcome, "dest", res.Dest)
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func findSource(base, filename string) (string, bool) {
	for _, candidate := range []string{
		filepath.Join(base, filename),
		filepath.Join(base, "plan", filename),
	} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// copyFile replaces dest with src via a temp file and rename, keeping the
// source modification time so the cache reports when the plan was exported.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".plansync-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0640); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("chtimes: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
