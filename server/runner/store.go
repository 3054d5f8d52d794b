package runner

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nomis52/orderflow/config"
)

// StateStore manages persistence of run history.
type StateStore interface {
	// History returns run summaries, most recent first.
	History() []RunSummary
	// Get returns the full record of a run.
	Get(id string) (RunRecord, bool)
	// Save persists a finished run.
	Save(RunRecord) error
}

// NewStore builds the history store selected by cfg.
func NewStore(cfg config.HistoryConfig, logger *slog.Logger) (StateStore, error) {
	switch cfg.Store {
	case config.HistoryMemory, "":
		return NewMemoryStore(cfg.MaxRuns), nil
	case config.HistoryDisk:
		return NewDiskStore(cfg.Path, cfg.MaxRuns, logger)
	case config.HistorySQLite:
		return NewSQLiteStore(cfg.Path, cfg.MaxRuns, logger)
	default:
		return nil, fmt.Errorf("unknown history store %q", cfg.Store)
	}
}

func validateRecord(run RunRecord) error {
	if run.ID == "" {
		return errors.New("cannot save run without an id")
	}
	if run.StartedAt == nil {
		return errors.New("cannot save run without start time")
	}
	return nil
}
