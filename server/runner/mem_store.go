package runner

import "sync"

// MemoryStore keeps run history in memory only (no persistence).
type MemoryStore struct {
	maxCount int
	runs     []RunRecord // most recent first
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory store keeping at most maxCount
// runs. A maxCount below 1 keeps everything.
func NewMemoryStore(maxCount int) *MemoryStore {
	return &MemoryStore{
		maxCount: maxCount,
		runs:     make([]RunRecord, 0),
	}
}

// History returns all runs as summaries.
func (s *MemoryStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.runs))
	for i, run := range s.runs {
		result[i] = run.RunSummary
	}
	return result
}

// Get returns the record of a specific run.
func (s *MemoryStore) Get(id string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run, true
		}
	}
	return RunRecord{}, false
}

// Save stores a run in memory.
func (s *MemoryStore) Save(run RunRecord) error {
	if err := validateRecord(run); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend to keep most recent first
	s.runs = append([]RunRecord{run}, s.runs...)
	if s.maxCount > 0 && len(s.runs) > s.maxCount {
		s.runs = s.runs[:s.maxCount]
	}
	return nil
}
