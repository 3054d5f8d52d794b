package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/orderflow/orchestrator"
)

type mockReportProvider struct {
	report *orchestrator.Report
}

func (m *mockReportProvider) LastReport() *orchestrator.Report {
	return m.report
}

func TestReportHandler(t *testing.T) {
	provider := &mockReportProvider{}
	handler := NewReportHandler(provider)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no run has finished yet")

	provider.report = &orchestrator.Report{
		RunID:   "run-1",
		Outcome: orchestrator.OutcomeCompleted,
		Units:   []orchestrator.UnitReport{{Name: "reader", Status: orchestrator.Completed, Outputs: []string{}}},
		Outputs: []string{},
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "completed", body["outcome"])
	units := body["units"].([]any)
	require.Len(t, units, 1)
	assert.Equal(t, "completed", units[0].(map[string]any)["status"])
}
