package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/export"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

type cohortSummarizer interface {
	Summary(ctx context.Context, courseID, section string) (*dto.CohortSummary, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders cohort grade sheets and stores them behind signed URLs.
type ExportService struct {
	cohorts cohortSummarizer
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(cohorts cohortSummarizer, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		cohorts: cohorts,
		storage: files,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the grade sheet requested by job and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	summary, err := s.cohorts.Summary(ctx, job.Params.CourseID, job.Params.Section)
	if err != nil {
		return nil, err
	}
	dataset := GradeSheetDataset(summary)
	title := gradeSheetTitle(job.Params)

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("grade sheet rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// GradeSheetDataset flattens a cohort summary into report rows.
func GradeSheetDataset(summary *dto.CohortSummary) export.Dataset {
	headers := []string{"Student ID", "Student Name", "Section", "Final Grade", "Band", "Attendance (%)", "Requirements (%)"}
	if summary == nil {
		return export.Dataset{Headers: headers}
	}
	rows := make([]map[string]string, 0, len(summary.Students))
	for _, st := range summary.Students {
		rows = append(rows, map[string]string{
			"Student ID":       st.StudentID,
			"Student Name":     st.StudentName,
			"Section":          st.Section,
			"Final Grade":      fmt.Sprintf("%g", st.FinalGrade),
			"Band":             string(st.Band),
			"Attendance (%)":   fmt.Sprintf("%.2f", st.AttendancePercentage),
			"Requirements (%)": fmt.Sprintf("%.2f", st.RequirementCompletion),
		})
	}
	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Footer:  fmt.Sprintf("Students: %d  Average: %g", len(summary.Students), summary.AverageGrade),
	}
}

func gradeSheetTitle(params models.ReportJobParams) string {
	if params.Section == "" {
		return fmt.Sprintf("Grade Sheet %s", params.CourseID)
	}
	return fmt.Sprintf("Grade Sheet %s / %s", params.CourseID, params.Section)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	claims, err := s.signer.Verify(token, allowExpired)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return claims.JobID, claims.Path, claims.ExpiresAt, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().Format("20060102_150405")
	parts := []string{"grades", sanitizeFilename(job.Params.CourseID)}
	if job.Params.Section != "" {
		parts = append(parts, sanitizeFilename(job.Params.Section))
	}
	parts = append(parts, timestamp)
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
