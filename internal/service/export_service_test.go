package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/export"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

type cohortSummaryStub struct {
	err error
}

func (c cohortSummaryStub) Summary(ctx context.Context, courseID, section string) (*dto.CohortSummary, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &dto.CohortSummary{
		CourseID: courseID,
		Section:  section,
		Students: []models.GradeSummary{
			{RecordID: "r1", StudentID: "s1", StudentName: "Ana", Section: "A", FinalGrade: 89, Band: models.BandGood, AttendancePercentage: 100, RequirementCompletion: 50},
			{RecordID: "r2", StudentID: "s2", StudentName: "Budi", Section: "A", FinalGrade: 40, Band: models.BandNeedsImprovement},
		},
		AverageGrade: 64.5,
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(cohortSummaryStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Params:    models.ReportJobParams{CourseID: "bio-101", Section: "A", Format: models.ReportFormatCSV},
		CreatedBy: "staff-1",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RelativePath, "grades_bio-101_A_"))
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "s1,Ana,A,89,good,100.00,50.00", lines[1])
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:     "job-2",
		Params: models.ReportJobParams{CourseID: "bio-101", Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, err := svc.Generate(context.Background(), nil)
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{ID: "j", Params: models.ReportJobParams{CourseID: "c", Format: "xlsx"}})
	require.Error(t, err)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	failing := NewExportService(cohortSummaryStub{err: errors.New("db down")}, store, storage.NewSignedURLSigner("s", time.Hour), ExportConfig{}, nil, nil, nil)
	_, err = failing.Generate(context.Background(), &models.ReportJob{ID: "j", Params: models.ReportJobParams{CourseID: "c", Format: models.ReportFormatCSV}})
	require.EqualError(t, err, "db down")
}

func TestGradeSheetDatasetFooter(t *testing.T) {
	summary, err := cohortSummaryStub{}.Summary(context.Background(), "bio-101", "")
	require.NoError(t, err)
	ds := GradeSheetDataset(summary)
	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, "Students: 2  Average: 64.5", ds.Footer)
	assert.Empty(t, GradeSheetDataset(nil).Rows)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "bio-101_sec-A", sanitizeFilename("bio/101 sec:A"))
}
