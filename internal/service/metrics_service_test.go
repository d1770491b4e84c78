package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/jobs"
)

func TestMetricsServiceEngineCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordTransition(models.SubmissionPending, models.SubmissionApproved)
	m.RecordTransition(models.SubmissionPending, models.SubmissionApproved)
	m.RecordBatch(models.BatchReport{Matched: 3, Adjusted: 2, Skipped: 1})
	m.RecordLedgerRows(LedgerImport, 4)
	m.RecordLedgerRows(LedgerExport, 0)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/courses/:courseId/summary", http.StatusOK, 20*time.Millisecond)
	m.ObserveDBQuery("grade_records.list_cohort", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchRecords.WithLabelValues("adjusted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchRecords.WithLabelValues("skipped")))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.TransitionsTotal)
	assert.Equal(t, uint64(2), snapshot.BatchRecordsAdjusted)
	assert.Equal(t, uint64(4), snapshot.LedgerRowsImported)
	assert.Equal(t, uint64(0), snapshot.LedgerRowsExported)
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 10.0, snapshot.AverageDBQueryDurationMs, 0.001)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordTransition(models.SubmissionApproved, models.SubmissionInProgress)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "submission_transitions_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordTransition(models.SubmissionPending, models.SubmissionRejected)
	m.RecordBatch(models.BatchReport{Adjusted: 1})
	assert.Nil(t, m.Registry())
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceObserveQueue(t *testing.T) {
	m := NewMetricsService()
	stats := jobs.Stats{Pending: 3, Processed: 7, Failed: 2, Abandoned: 1}
	require.NoError(t, m.ObserveQueue("grade_sheet", func() jobs.Stats { return stats }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `job_queue_pending{queue="grade_sheet"} 3`)
	assert.Contains(t, body, `job_queue_processed_total{queue="grade_sheet"} 7`)
	assert.Contains(t, body, `job_queue_abandoned_total{queue="grade_sheet"} 1`)

	assert.Error(t, m.ObserveQueue("grade_sheet", func() jobs.Stats { return stats }))
}
