package runner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s1, err := NewSQLiteStore(path, 10, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s1.Save(testRun("run-1", 0)))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path, 10, discardLogger())
	require.NoError(t, err)
	defer s2.Close()

	history := s2.History()
	require.Len(t, history, 1)
	assert.Equal(t, "run-1", history[0].ID)

	run, ok := s2.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, "run-1", run.Report.RunID)
}

func TestSQLiteStore_SaveReplacesSameID(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), 10, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	run := testRun("run-1", 0)
	require.NoError(t, s.Save(run))
	run.Error = "second attempt"
	require.NoError(t, s.Save(run))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "second attempt", history[0].Error)
}
