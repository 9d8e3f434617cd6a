// Package dataset serves tabular reference files through a read-through
// cache that reloads a file when its modification time changes.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/floorsync/server/internal/stamp"
)

var ErrUnknownDataset = errors.New("unknown dataset")

// Dataset is a loaded snapshot. Either Entries is populated and Error is
// nil, or Entries is empty and Error describes why.
type Dataset struct {
	Label     string              `json:"label"`
	Entries   []map[string]string `json:"entries"`
	UpdatedAt *string             `json:"updated_at"`
	Error     *string             `json:"error"`
}

func (d Dataset) clone() Dataset {
	out := Dataset{Label: d.Label, Entries: make([]map[string]string, len(d.Entries))}
	for i, row := range d.Entries {
		cp := make(map[string]string, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Entries[i] = cp
	}
	if d.UpdatedAt != nil {
		s := *d.UpdatedAt
		out.UpdatedAt = &s
	}
	if d.Error != nil {
		s := *d.Error
		out.Error = &s
	}
	return out
}

// Summary is the per-key outcome of a forced refresh.
type Summary struct {
	Entries   int     `json:"entries"`
	Error     *string `json:"error"`
	UpdatedAt *string `json:"updated_at"`
}

type Cache struct {
	baseDir string
	defs    map[string]Definition
	order   []string

	mu       sync.Mutex
	cache    map[string]Dataset
	mtimes   map[string]time.Time
	loadedAt *time.Time
}

func NewCache(baseDir string, defs []Definition) *Cache {
	c := &Cache{
		baseDir: baseDir,
		defs:    make(map[string]Definition, len(defs)),
		cache:   make(map[string]Dataset),
		mtimes:  make(map[string]time.Time),
	}
	for _, d := range defs {
		if _, dup := c.defs[d.Key]; !dup {
			c.order = append(c.order, d.Key)
		}
		c.defs[d.Key] = d
	}
	return c
}

// Keys returns the configured dataset keys in definition order.
func (c *Cache) Keys() []string {
	return slices.Clone(c.order)
}

// Get returns a copy of the dataset, reloading it first if the source file
// changed since the last load.
func (c *Cache) Get(key string) (Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(key, false)
}

// Refresh reloads the given keys (all keys when none are given) regardless of
// modification times.
func (c *Cache) Refresh(keys ...string) (map[string]Summary, error) {
	if len(keys) == 0 {
		keys = c.order
	}
	for _, k := range keys {
		if _, ok := c.defs[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, k)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	summary := make(map[string]Summary, len(keys))
	for _, k := range keys {
		d, err := c.loadLocked(k, true)
		if err != nil {
			return nil, err
		}
		summary[k] = Summary{Entries: len(d.Entries), Error: d.Error, UpdatedAt: d.UpdatedAt}
	}
	now := stamp.Now()
	c.loadedAt = &now
	return summary, nil
}

// LoadedAt is the time of the last forced refresh, or nil.
func (c *Cache) LoadedAt() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadedAt == nil {
		return nil
	}
	t := *c.loadedAt
	return &t
}

func (c *Cache) loadLocked(key string, force bool) (Dataset, error) {
	def, ok := c.defs[key]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %s", ErrUnknownDataset, key)
	}

	result := Dataset{Label: def.Label, Entries: []map[string]string{}}
	path := filepath.Join(c.baseDir, def.Filename)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.Error = ptr(def.Label + " not found")
		} else {
			result.Error = ptr(fmt.Sprintf("failed to load dataset: %v", err))
		}
		c.cache[key] = result
		delete(c.mtimes, key)
		return result.clone(), nil
	}

	mtime := info.ModTime()
	if cached, ok := c.cache[key]; ok && !force {
		if prev, seen := c.mtimes[key]; seen && prev.Equal(mtime) {
			return cached.clone(), nil
		}
	}

	entries, err := readCSV(path, def.Columns)
	if err != nil {
		result.Error = ptr(err.Error())
	} else {
		result.Entries = entries
		result.UpdatedAt = ptr(stamp.Format(mtime))
	}

	c.cache[key] = result
	c.mtimes[key] = mtime
	return result.clone(), nil
}

// readCSV parses path, requiring the header to equal columns exactly and in
// order. Short rows are padded with empty strings.
func readCSV(path string, columns []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(skipBOM(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		header = []string{}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if !slices.Equal(header, columns) {
		return nil, fmt.Errorf("unexpected columns: %v", header)
	}

	entries := []map[string]string{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		entries = append(entries, row)
	}
	return entries, nil
}

// ReadHeader returns the first CSV record of path with any UTF-8 BOM removed.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(skipBOM(f)).Read()
	if err == io.EOF {
		return []string{}, nil
	}
	return header, err
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

func ptr(s string) *string {
	return &s
}
