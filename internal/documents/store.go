// Package documents serves work instruction PDFs looked up by part number.
package documents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrInvalidPath = errors.New("invalid document path")

type Document struct {
	PartNumber string    `json:"partNumber"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve documents dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

func (s *Store) Dir() string {
	return s.baseDir
}

// Find returns the filename of the PDF whose stem matches part, ignoring
// case.
func (s *Store) Find(part string) (string, bool) {
	part = strings.TrimSpace(part)
	if part == "" || strings.ContainsAny(part, `/\`) {
		return "", false
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return "", false
	}
	want := strings.ToLower(part)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isPDF(name) {
			continue
		}
		if strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))) == want {
			return name, true
		}
	}
	return "", false
}

// Path resolves filename inside the documents directory. Anything escaping
// it, or not a regular file, is rejected.
func (s *Store) Path(filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, filename)
	}

	full := filepath.Join(s.baseDir, filename)
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, filename)
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, filename)
	}
	return full, nil
}

// List returns every PDF in the documents directory sorted by filename.
func (s *Store) List() ([]Document, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}

	docs := []Document{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isPDF(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, Document{
			PartNumber: strings.TrimSuffix(name, filepath.Ext(name)),
			Filename:   name,
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
