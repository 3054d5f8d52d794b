package runner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const diskTimeLayout = "2006-01-02T15-04-05"

// DiskStore persists run history to disk as one JSON file per run.
type DiskStore struct {
	dir      string
	logger   *slog.Logger
	maxCount int
	runs     []RunRecord // protected by mu, most recent first
	mu       sync.Mutex
}

// NewDiskStore creates a new disk-backed store.
// The directory is created if it doesn't exist, and existing runs are loaded.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:      dir,
		logger:   logger.With("component", "disk_store"),
		maxCount: maxCount,
		runs:     make([]RunRecord, 0),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	runs, err := s.load()
	if err != nil {
		s.logger.Warn("failed to load existing runs", "error", err)
	} else {
		s.runs = runs
	}

	return s, nil
}

// History returns all runs as summaries.
func (s *DiskStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.runs))
	for i, run := range s.runs {
		result[i] = run.RunSummary
	}
	return result
}

// Get returns the record of a specific run.
func (s *DiskStore) Get(id string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run, true
		}
	}
	return RunRecord{}, false
}

// Save persists a run to disk and updates the in-memory representation.
func (s *DiskStore) Save(run RunRecord) error {
	if err := validateRecord(run); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	path := filepath.Join(s.dir, fileName(run))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	s.runs = append([]RunRecord{run}, s.runs...)
	if s.maxCount > 0 && len(s.runs) > s.maxCount {
		for _, old := range s.runs[s.maxCount:] {
			if err := os.Remove(filepath.Join(s.dir, fileName(old))); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove old run file", "id", old.ID, "error", err)
			}
		}
		s.runs = s.runs[:s.maxCount]
	}

	s.logger.Debug("saved run to disk", "path", path)
	return nil
}

// Reload re-loads all runs from disk.
func (s *DiskStore) Reload() error {
	runs, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = runs
	return nil
}

// fileName sorts by start time and stays unique per run.
func fileName(run RunRecord) string {
	return run.StartedAt.UTC().Format(diskTimeLayout) + "_" + run.ID + ".json"
}

// load loads all runs from disk, skipping files that cannot be parsed.
func (s *DiskStore) load() ([]RunRecord, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	runs := make([]RunRecord, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read run file", "file", path, "error", err)
			continue
		}

		var run RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("failed to parse run file", "file", path, "error", err)
			continue
		}
		if run.ID == "" || run.StartedAt == nil {
			s.logger.Warn("skipping incomplete run file", "file", path)
			continue
		}

		runs = append(runs, run)
	}

	// Most recent first
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(*runs[j].StartedAt)
	})

	if s.maxCount > 0 && len(runs) > s.maxCount {
		runs = runs[:s.maxCount]
	}

	s.logger.Info("loaded run history from disk", "count", len(runs))
	return runs, nil
}
