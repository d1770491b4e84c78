package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type gradeRecordStoreStub struct {
	records    []models.GradeRecord
	saved      [][]models.GradeRecord
	attendance map[string][]models.AttendanceRecord
	listCalls  int
	listErr    error
	saveErr    error
}

func newGradeRecordStoreStub(records ...models.GradeRecord) *gradeRecordStoreStub {
	return &gradeRecordStoreStub{records: records, attendance: map[string][]models.AttendanceRecord{}}
}

func (s *gradeRecordStoreStub) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.GradeRecord, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.GradeRecord
	for _, r := range s.records {
		if r.CourseID != filter.CourseID {
			continue
		}
		if filter.Section != "" && !strings.EqualFold(r.Section, filter.Section) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *gradeRecordStoreStub) GetByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	for _, r := range s.records {
		if r.ID == id {
			clone := r.Clone()
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("get grade record: %w", sql.ErrNoRows)
}

func (s *gradeRecordStoreStub) SaveAll(ctx context.Context, records []models.GradeRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, records)
	return nil
}

func (s *gradeRecordStoreStub) AppendAttendance(ctx context.Context, recordID string, entry models.AttendanceRecord) error {
	s.attendance[recordID] = append(s.attendance[recordID], entry)
	for i := range s.records {
		if s.records[i].ID != recordID {
			continue
		}
		s.records[i].Attendance = append(s.records[i].Attendance, entry)
	}
	return nil
}

func (s *gradeRecordStoreStub) SetRequirement(ctx context.Context, recordID, requirementID string, completed bool) error {
	for _, r := range s.records {
		if r.ID != recordID {
			continue
		}
		for _, item := range r.Requirements {
			if item.ID == requirementID {
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func cohortFixture() []models.GradeRecord {
	return []models.GradeRecord{
		{
			ID: "r1", StudentID: "s1", StudentName: "Ana", CourseID: "bio-101", Section: "A",
			Components: []models.GradeComponent{
				{Name: models.ComponentMidterm, Score: 80, MaxScore: 100, Weight: 0.25},
				{Name: models.ComponentFinal, Score: 90, MaxScore: 100, Weight: 0.30},
			},
			Attendance: []models.AttendanceRecord{
				{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Status: models.AttendancePresent},
				{Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), Status: models.AttendanceAbsent},
			},
			Requirements: []models.RequirementItem{{ID: "req-1", Name: "Insurance"}, {ID: "req-2", Name: "Consent", Completed: true}},
		},
		{
			ID: "r2", StudentID: "s2", StudentName: "Budi", CourseID: "bio-101", Section: "B",
			Components: []models.GradeComponent{
				{Name: models.ComponentMidterm, Score: 50, MaxScore: 100, Weight: 0.25},
			},
		},
		{
			ID: "r3", StudentID: "s3", StudentName: "Citra", CourseID: "chem-201", Section: "A",
			Components: []models.GradeComponent{
				{Name: models.ComponentMidterm, Score: 100, MaxScore: 100, Weight: 0.25},
			},
		},
	}
}

func newCohortServiceForTest(store *gradeRecordStoreStub, cache *CacheService) *CohortService {
	svc := NewCohortService(store, nil, nil, cache, nil, nil, zap.NewNop(), CohortServiceConfig{CacheTTL: time.Minute})
	svc.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCohortServiceSummary(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	summary, err := svc.Summary(context.Background(), "bio-101", "")
	require.NoError(t, err)
	require.Len(t, summary.Students, 2)
	assert.Equal(t, 85.0, summary.Students[0].FinalGrade)
	assert.Equal(t, models.BandExcellent, summary.Students[0].Band)
	assert.Equal(t, 50.0, summary.Students[0].AttendancePercentage)
	assert.Equal(t, 50.0, summary.Students[0].RequirementCompletion)
	assert.Equal(t, 50.0, summary.Students[1].FinalGrade)
	assert.Equal(t, 68.0, summary.AverageGrade)
	assert.Equal(t, 1, summary.BandCounts[models.BandExcellent])
	assert.Equal(t, 1, summary.BandCounts[models.BandNeedsImprovement])

	section, err := svc.Summary(context.Background(), "bio-101", "b")
	require.NoError(t, err)
	require.Len(t, section.Students, 1)
	assert.Equal(t, "s2", section.Students[0].StudentID)

	_, err = svc.Summary(context.Background(), " ", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCohortServiceSummaryUsesCache(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	svc := newCohortServiceForTest(store, cache)

	first, err := svc.Summary(context.Background(), "bio-101", "A")
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), "bio-101", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, first.AverageGrade, second.AverageGrade)

	_, err = svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{
		Component: models.ComponentMidterm, Op: models.BatchAdd, Value: floatPtr(1),
	}, "staff-1")
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), "bio-101", "A")
	require.NoError(t, err)
	assert.Equal(t, 3, store.listCalls)
}

func TestCohortServiceSummaryLoadFailure(t *testing.T) {
	store := newGradeRecordStoreStub()
	store.listErr = errors.New("connection reset")
	svc := newCohortServiceForTest(store, nil)
	_, err := svc.Summary(context.Background(), "bio-101", "")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func floatPtr(v float64) *float64 { return &v }

func TestCohortServiceApplyBatch(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	resp, err := svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{
		Component: models.ComponentFinal,
		Op:        models.BatchAdd,
		Value:     floatPtr(20),
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.BatchReport{Matched: 2, Adjusted: 1, Skipped: 1}, resp.Report)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "r1", resp.Records[0].ID)
	assert.Equal(t, 100.0, resp.Records[0].Components[1].Score)
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 1)
}

func TestCohortServiceApplyBatchFilters(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	resp, err := svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{
		Component:  models.ComponentMidterm,
		Op:         models.BatchSet,
		Value:      floatPtr(70),
		StudentIDs: []string{"s2"},
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Report.Adjusted)
	assert.Equal(t, "s2", resp.Records[0].StudentID)
	assert.Equal(t, 70.0, resp.Records[0].FinalGrade)

	resp, err = svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{
		Component: models.ComponentMidterm,
		Op:        models.BatchSubtract,
		Value:     floatPtr(5),
		Section:   "C",
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Report.Matched)
	assert.Empty(t, resp.Records)
}

func TestCohortServiceApplyBatchValidation(t *testing.T) {
	svc := newCohortServiceForTest(newGradeRecordStoreStub(cohortFixture()...), nil)
	_, err := svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{Component: "midterm", Op: "multiply", Value: floatPtr(1)}, "staff-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ApplyBatch(context.Background(), "bio-101", dto.BatchAdjustRequest{Component: "midterm", Op: models.BatchAdd}, "staff-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCohortServiceLedgerRoundTrip(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	text, err := svc.ExportLedger(context.Background(), "bio-101", "A")
	require.NoError(t, err)
	assert.Equal(t, "studentId,studentName,section,midterm,final,assignments,labReports,attendance,finalGrade\n"+
		"s1,Ana,A,80,90,,,,0\n", text)

	ledger := "s1,Ana Maria,A,85,,,,,87\n" +
		"s9,Dewi,B,60,70,,,,66\n" +
		"s9,Dewi,B,65,,,,,67\n"
	resp, err := svc.ImportLedger(context.Background(), "bio-101", ledger, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, &dto.LedgerImportResponse{Imported: 3, Created: 1, Updated: 1}, resp)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	require.Len(t, saved, 2)
	assert.Equal(t, "r1", saved[0].ID)
	assert.Equal(t, "Ana Maria", saved[0].StudentName)
	assert.Equal(t, 85.0, saved[0].Components[0].Score)
	assert.Equal(t, 90.0, saved[0].Components[1].Score)
	assert.Equal(t, 87.0, saved[0].FinalGrade)

	assert.Equal(t, "bio-101", saved[1].CourseID)
	assert.Equal(t, 65.0, saved[1].Components[0].Score)
	assert.Equal(t, 70.0, saved[1].Components[1].Score)
	assert.Equal(t, 67.0, saved[1].FinalGrade)
}

func TestCohortServiceImportLedgerRejectsMalformed(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	_, err := svc.ImportLedger(context.Background(), "bio-101", "s1,Ana,A,80\n", "staff-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "line 1")
	assert.Empty(t, store.saved)

	_, err = svc.ImportLedger(context.Background(), "bio-101", "\n\n", "staff-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCohortServiceRecordAttendanceSameDayCountsEverySession(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	// r1 already holds 2024-03-08 absent; a second session that day is added, not merged.
	summary, err := svc.RecordAttendance(context.Background(), "bio-101", "r1", dto.AttendanceRequest{Date: "2024-03-08", Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.InDelta(t, 66.666, summary.AttendancePercentage, 0.01)

	stored, err := store.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, stored.Attendance, 3)
	assert.Equal(t, models.AttendanceAbsent, stored.Attendance[1].Status)
	assert.Equal(t, models.AttendanceLate, stored.Attendance[2].Status)
	assert.True(t, stored.Attendance[1].Date.Equal(stored.Attendance[2].Date))
}

func TestCohortServiceRecordAttendance(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)

	summary, err := svc.RecordAttendance(context.Background(), "bio-101", "r1", dto.AttendanceRequest{Date: "2024-03-15", Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.InDelta(t, 66.666, summary.AttendancePercentage, 0.01)
	require.Len(t, store.attendance["r1"], 1)

	summary, err = svc.RecordAttendance(context.Background(), "bio-101", "r1", dto.AttendanceRequest{Date: "2024-03-22", Status: models.AttendanceExcused})
	require.NoError(t, err)
	assert.Equal(t, 50.0, summary.AttendancePercentage)

	_, err = svc.RecordAttendance(context.Background(), "chem-201", "r1", dto.AttendanceRequest{Date: "2024-03-15", Status: models.AttendancePresent})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.RecordAttendance(context.Background(), "bio-101", "r1", dto.AttendanceRequest{Date: "15/03/2024", Status: models.AttendancePresent})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCohortServiceUpdateRequirement(t *testing.T) {
	store := newGradeRecordStoreStub(cohortFixture()...)
	svc := newCohortServiceForTest(store, nil)
	done := true

	summary, err := svc.UpdateRequirement(context.Background(), "bio-101", "r1", "req-1", dto.RequirementUpdateRequest{Completed: &done})
	require.NoError(t, err)
	assert.Equal(t, 100.0, summary.RequirementCompletion)

	_, err = svc.UpdateRequirement(context.Background(), "bio-101", "r1", "req-9", dto.RequirementUpdateRequest{Completed: &done})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.UpdateRequirement(context.Background(), "bio-101", "missing", "req-1", dto.RequirementUpdateRequest{Completed: &done})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCohortServiceEvaluate(t *testing.T) {
	svc := newCohortServiceForTest(newGradeRecordStoreStub(), nil)
	summary, err := svc.Evaluate(dto.ComputeGradeRequest{
		Components: []models.GradeComponent{{Name: "quiz", Score: 45, MaxScore: 50, Weight: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, summary.FinalGrade)

	_, err = svc.Evaluate(dto.ComputeGradeRequest{
		Components: []models.GradeComponent{{Name: "quiz", Score: 45, MaxScore: 0, Weight: 1}},
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}
