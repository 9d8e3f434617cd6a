package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/floorsync/server/internal/filelock"
	"github.com/floorsync/server/internal/stamp"
)

const DefaultLockTimeout = 5 * time.Second

type Options struct {
	Path        string
	LockPath    string        // defaults to Path + ".lock"
	LockTimeout time.Duration // defaults to DefaultLockTimeout
	MaxJobs     int           // <= 0 disables the count bound
	Retention   time.Duration // <= 0 disables the age bound
	Policy      *Policy
	Now         func() time.Time
}

// Store keeps the job collection as a single JSON array on disk. Every
// access takes an exclusive flock on a sibling lock file; writes go to a
// temporary file that is renamed over the store.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	maxJobs     int
	retention   time.Duration
	policy      *Policy
	now         func() time.Time
}

func NewStore(opts Options) *Store {
	s := &Store{
		path:        opts.Path,
		lockPath:    opts.LockPath,
		lockTimeout: opts.LockTimeout,
		maxJobs:     opts.MaxJobs,
		retention:   opts.Retention,
		policy:      opts.Policy,
		now:         opts.Now,
	}
	if s.lockPath == "" {
		s.lockPath = s.path + ".lock"
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.policy == nil {
		s.policy = NewPolicy(nil)
	}
	if s.now == nil {
		s.now = stamp.Now
	}
	return s
}

func (s *Store) Policy() *Policy {
	return s.policy
}

// List returns up to limit jobs, most recently updated first. A limit <= 0
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	var out []Job
	err := s.withLock(ctx, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		sortByEffectiveTime(jobs)
		if limit > 0 && len(jobs) > limit {
			jobs = jobs[:limit]
		}
		out = jobs
		return nil
	})
	return out, err
}

// Get returns a single job by id.
func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	var out Job
	err := s.withLock(ctx, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		idx := indexOf(jobs, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = jobs[idx]
		return nil
	})
	return out, err
}

// Upsert creates j, or replaces the stored job with the same ID. On replace
// the stored RequestedAt is kept unless j carries one, and a status change
// must be permitted by the policy. An empty ID is generated.
func (s *Store) Upsert(ctx context.Context, j Job) (Result, error) {
	if !s.policy.Allowed(j.Status) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidStatus, j.Status)
	}
	if j.ID == "" {
		j.ID = stamp.NewJobID()
	}

	var res Result
	err := s.mutate(ctx, func(jobs []Job, now time.Time) ([]Job, error) {
		j.UpdatedAt = now
		idx := indexOf(jobs, j.ID)
		if idx < 0 {
			if j.RequestedAt.IsZero() {
				j.RequestedAt = now
			}
			res = Result{Job: j}
			return append(jobs, j), nil
		}

		existing := jobs[idx]
		if !s.policy.CanTransition(existing.Status, j.Status) {
			return nil, &ConflictError{Job: existing, Current: existing.Status, Requested: j.Status}
		}
		if j.RequestedAt.IsZero() {
			j.RequestedAt = existing.RequestedAt
		}
		jobs[idx] = j
		res = Result{Job: j, Previous: &existing}
		return jobs, nil
	})
	return res, err
}

// Transition changes the status of an existing job, applying any non-empty
// location overrides.
func (s *Store) Transition(ctx context.Context, id string, status Status, o Overrides) (Result, error) {
	if !s.policy.Allowed(status) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var res Result
	err := s.mutate(ctx, func(jobs []Job, now time.Time) ([]Job, error) {
		idx := indexOf(jobs, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		existing := jobs[idx]
		if !s.policy.CanTransition(existing.Status, status) {
			return nil, &ConflictError{Job: existing, Current: existing.Status, Requested: status}
		}

		updated := existing
		updated.Status = status
		if o.FromLocation != "" {
			updated.FromLocation = o.FromLocation
		}
		if o.ToLocation != "" {
			updated.ToLocation = o.ToLocation
		}
		updated.UpdatedAt = now
		jobs[idx] = updated
		res = Result{Job: updated, Previous: &existing}
		return jobs, nil
	})
	return res, err
}

// mutate runs the read-modify-prune-replace cycle under the lock. When fn
// returns an error nothing is written.
func (s *Store) mutate(ctx context.Context, fn func(jobs []Job, now time.Time) ([]Job, error)) error {
	return s.withLock(ctx, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		now := s.now()
		jobs, err = fn(jobs, now)
		if err != nil {
			return err
		}
		return s.write(prune(jobs, now, s.retention, s.maxJobs))
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	lock, err := filelock.Acquire(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		if errors.Is(err, filelock.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("acquire job store lock: %w", err)
	}
	defer lock.Release()

	if err := s.ensureFile(); err != nil {
		return err
	}
	return fn()
}

func (s *Store) ensureFile() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat job store: %w", err)
	}
	return s.write([]Job{})
}

func (s *Store) read() ([]Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read job store: %w", err)
	}
	jobs := []Job{}
	if len(bytes.TrimSpace(data)) == 0 {
		return jobs, nil
	}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decode job store: %w", err)
	}
	return jobs, nil
}

func (s *Store) write(jobs []Job) error {
	if jobs == nil {
		jobs = []Job{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jobs); err != nil {
		return fmt.Errorf("encode job store: %w", err)
	}
	return writeFileAtomic(s.path, bytes.TrimRight(buf.Bytes(), "\n"))
}

// writeFileAtomic writes data next to path and renames it into place so
// readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace job store: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// prune drops jobs older than the retention window and keeps the newest
// maxJobs of the rest. Jobs without any usable timestamp are only subject
// to the count bound. The result is ordered newest first.
func prune(jobs []Job, now time.Time, retention time.Duration, maxJobs int) []Job {
	kept := jobs[:0:0]
	if retention > 0 {
		cutoff := now.Add(-retention)
		for _, j := range jobs {
			if t := j.EffectiveTime(); t.IsZero() || !t.Before(cutoff) {
				kept = append(kept, j)
			}
		}
	} else {
		kept = append(kept, jobs...)
	}

	sortByEffectiveTime(kept)
	if maxJobs > 0 && len(kept) > maxJobs {
		kept = kept[:maxJobs]
	}
	return kept
}

// sortByEffectiveTime orders jobs newest first. Equal effective times fall
// back to requested_at, then to the id, both descending.
func sortByEffectiveTime(jobs []Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ea, eb := jobs[a].EffectiveTime(), jobs[b].EffectiveTime()
		if !ea.Equal(eb) {
			return ea.After(eb)
		}
		if !jobs[a].RequestedAt.Equal(jobs[b].RequestedAt) {
			return jobs[a].RequestedAt.After(jobs[b].RequestedAt)
		}
		return jobs[a].ID > jobs[b].ID
	})
}

func indexOf(jobs []Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
