// Package logrotate archives append-only log files into gzip files next to
// them and prunes archives past a retention window.
package logrotate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const archiveSuffix = ".log.gz"

type Options struct {
	// Retention is how long archives are kept. <= 0 keeps them forever.
	Retention time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

type Rotated struct {
	Source  string `json:"source"`
	Archive string `json:"archive"`
	Bytes   int64  `json:"bytes"`
}

type Report struct {
	Rotated []Rotated `json:"rotated"`
	Pruned  []string  `json:"pruned"`
}

// Rotate copies every non-empty file in paths into
// <dir>/<stem>-YYYYMMDDHHMMSS.log.gz and truncates the original. The file is
// truncated in place so processes holding it open in append mode keep
// writing to it. Missing files are skipped.
func Rotate(paths []string, opts Options) (Report, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	now := opts.Now()
	report := Report{Rotated: []Rotated{}, Pruned: []string{}}

	var errs []error
	seen := map[string]bool{}
	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		rotated, ok, err := rotateFile(path, now)
		if err != nil {
			opts.Logger.Error("log rotation failed", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			opts.Logger.Info("log rotated", "path", path, "archive", rotated.Archive, "bytes", rotated.Bytes)
			report.Rotated = append(report.Rotated, rotated)
		}
	}

	if opts.Retention > 0 {
		cutoff := now.Add(-opts.Retention)
		for path := range seen {
			pruned, err := pruneArchives(path, cutoff)
			if err != nil {
				errs = append(errs, err)
			}
			for _, p := range pruned {
				opts.Logger.Info("log archive pruned", "archive", p)
			}
			report.Pruned = append(report.Pruned, pruned...)
		}
		sort.Strings(report.Pruned)
	}
	return report, errors.Join(errs...)
}

// archiveGlob matches the archives Rotate produces for path.
func archiveGlob(path string) string {
	return filepath.Join(filepath.Dir(path), stem(path)+"-*"+archiveSuffix)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func rotateFile(path string, now time.Time) (Rotated, bool, error) {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Rotated{}, false, nil
	}
	if err != nil {
		return Rotated{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return Rotated{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return Rotated{}, false, nil
	}

	archive := archiveName(path, now)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+stem(path)+".*.tmp")
	if err != nil {
		return Rotated{}, false, fmt.Errorf("create archive: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	gz := gzip.NewWriter(tmp)
	gz.Name = filepath.Base(path)
	gz.ModTime = info.ModTime()
	n, err := io.Copy(gz, src)
	if err != nil {
		cleanup()
		return Rotated{}, false, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		cleanup()
		return Rotated{}, false, fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return Rotated{}, false, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Rotated{}, false, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, archive); err != nil {
		os.Remove(tmpPath)
		return Rotated{}, false, fmt.Errorf("rename archive: %w", err)
	}

	// Lines appended after the copy and before the truncate are lost.
	if err := os.Truncate(path, 0); err != nil {
		return Rotated{}, false, fmt.Errorf("truncate %s: %w", path, err)
	}
	return Rotated{Source: path, Archive: archive, Bytes: n}, true, nil
}

// archiveName picks an unused archive path, adding a counter when the
// same file is rotated twice within one second.
func archiveName(path string, now time.Time) string {
	base := filepath.Join(filepath.Dir(path), stem(path)+"-"+now.Format("20060102150405"))
	name := base + archiveSuffix
	for i := 1; ; i++ {
		if _, err := os.Stat(name); err != nil {
			return name
		}
		name = fmt.Sprintf("%s.%d%s", base, i, archiveSuffix)
	}
}

func pruneArchives(path string, cutoff time.Time) ([]string, error) {
	matches, err := filepath.Glob(archiveGlob(path))
	if err != nil {
		return nil, fmt.Errorf("glob archives: %w", err)
	}
	var pruned []string
	var errs []error
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", m, err))
			continue
		}
		pruned = append(pruned, m)
	}
	return pruned, errors.Join(errs...)
}
