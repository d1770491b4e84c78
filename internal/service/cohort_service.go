package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/export"
)

type gradeRecordStore interface {
	ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.GradeRecord, error)
	GetByID(ctx context.Context, id string) (*models.GradeRecord, error)
	SaveAll(ctx context.Context, records []models.GradeRecord) error
	AppendAttendance(ctx context.Context, recordID string, entry models.AttendanceRecord) error
	SetRequirement(ctx context.Context, recordID, requirementID string, completed bool) error
}

// CohortServiceConfig tunes cohort caching.
type CohortServiceConfig struct {
	CacheTTL time.Duration
}

// CohortService loads cohorts and runs the grade engine over them.
type CohortService struct {
	repo       gradeRecordStore
	aggregator *GradeAggregator
	adjuster   *BatchAdjuster
	codec      *export.LedgerCodec
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        CohortServiceConfig
	now        func() time.Time
}

// NewCohortService constructs the cohort service. cache and metrics may be nil.
func NewCohortService(
	repo gradeRecordStore,
	aggregator *GradeAggregator,
	codec *export.LedgerCodec,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CohortServiceConfig,
) *CohortService {
	if aggregator == nil {
		aggregator = NewGradeAggregator(AggregatorConfig{})
	}
	if codec == nil {
		codec = export.NewLedgerCodec(models.DefaultGradingScheme())
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortService{
		repo:       repo,
		aggregator: aggregator,
		adjuster:   NewBatchAdjuster(aggregator),
		codec:      codec,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate computes the figures for an unsaved record.
func (s *CohortService) Evaluate(req dto.ComputeGradeRequest) (*models.GradeSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	summary, err := s.aggregator.Summarize(models.GradeRecord{
		Components:   req.Components,
		Attendance:   req.Attendance,
		Requirements: req.Requirements,
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Summary returns per-student figures for a course section, served from cache when possible.
func (s *CohortService) Summary(ctx context.Context, courseID, section string) (*dto.CohortSummary, error) {
	courseID = strings.TrimSpace(courseID)
	section = strings.TrimSpace(section)
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}

	key := CohortSummaryKey(courseID, section)
	var cached dto.CohortSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	records, err := s.load(ctx, models.CohortFilter{CourseID: courseID, Section: section})
	if err != nil {
		return nil, err
	}
	summaries, err := s.aggregator.SummarizeCohort(ctx, records)
	if err != nil {
		return nil, engineError(err, "failed to summarize cohort")
	}

	summary := &dto.CohortSummary{
		CourseID:    courseID,
		Section:     section,
		Students:    summaries,
		BandCounts:  make(map[models.GradeBand]int, 4),
		GeneratedAt: s.now(),
	}
	var total float64
	for _, st := range summaries {
		total += st.FinalGrade
		summary.BandCounts[st.Band]++
	}
	if len(summaries) > 0 {
		summary.AverageGrade = s.aggregator.round(total / float64(len(summaries)))
	}

	_ = s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, nil
}

// ApplyBatch adjusts one component across the selected part of a course and
// persists the touched records.
func (s *CohortService) ApplyBatch(ctx context.Context, courseID string, req dto.BatchAdjustRequest, actor string) (*dto.BatchAdjustResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}

	filters := []RecordFilter{ByCourse(courseID)}
	if section := strings.TrimSpace(req.Section); section != "" {
		filters = append(filters, BySection(section))
	}
	if len(req.StudentIDs) > 0 {
		filters = append(filters, ByStudentIDs(req.StudentIDs...))
	}
	filter := AllOf(filters...)

	records, err := s.load(ctx, models.CohortFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	adjusted, report, err := s.adjuster.ApplyBatchReport(records, req.Component, req.Op, *req.Value, filter)
	if err != nil {
		return nil, engineError(err, "failed to apply batch")
	}

	touched := make([]models.GradeRecord, 0, report.Adjusted)
	for i := range records {
		if filter(records[i]) && records[i].Component(req.Component) >= 0 {
			touched = append(touched, adjusted[i])
		}
	}
	if err := s.save(ctx, touched); err != nil {
		return nil, err
	}
	s.invalidate(ctx, courseID)
	s.metrics.RecordBatch(report)
	s.logger.Info("batch adjustment applied",
		zap.String("course_id", courseID),
		zap.String("component", req.Component),
		zap.String("op", string(req.Op)),
		zap.Float64("value", *req.Value),
		zap.Int("adjusted", report.Adjusted),
		zap.Int("skipped", report.Skipped),
		zap.String("actor", actor),
	)
	return &dto.BatchAdjustResponse{Report: report, Records: touched}, nil
}

// ExportLedger encodes a course section as a CSV ledger.
func (s *CohortService) ExportLedger(ctx context.Context, courseID, section string) (string, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	records, err := s.load(ctx, models.CohortFilter{CourseID: courseID, Section: strings.TrimSpace(section)})
	if err != nil {
		return "", err
	}
	s.metrics.RecordLedgerRows(LedgerExport, len(records))
	return s.codec.Encode(records), nil
}

// ImportLedger decodes a ledger and merges it into the course by student ID.
// Components present in the ledger overwrite stored scores; students not yet
// enrolled are created. One malformed line rejects the whole import.
func (s *CohortService) ImportLedger(ctx context.Context, courseID, text, actor string) (*dto.LedgerImportResponse, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	decoded, err := s.codec.Decode(text)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ledger contains no rows")
	}

	existing, err := s.load(ctx, models.CohortFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	known := make(map[string]models.GradeRecord, len(existing))
	for _, r := range existing {
		known[r.StudentID] = r
	}

	result := &dto.LedgerImportResponse{}
	merged := make([]models.GradeRecord, 0, len(decoded))
	position := make(map[string]int, len(decoded))
	for _, row := range decoded {
		if idx, dup := position[row.StudentID]; dup {
			merged[idx] = mergeLedgerRow(merged[idx], row)
			continue
		}
		if current, ok := known[row.StudentID]; ok {
			merged = append(merged, mergeLedgerRow(current.Clone(), row))
			result.Updated++
		} else {
			row.CourseID = courseID
			merged = append(merged, row)
			result.Created++
		}
		position[row.StudentID] = len(merged) - 1
	}
	result.Imported = len(decoded)

	if err := s.save(ctx, merged); err != nil {
		return nil, err
	}
	s.invalidate(ctx, courseID)
	s.metrics.RecordLedgerRows(LedgerImport, len(decoded))
	s.logger.Info("grade ledger imported",
		zap.String("course_id", courseID),
		zap.Int("rows", result.Imported),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.String("actor", actor),
	)
	return result, nil
}

func mergeLedgerRow(target, row models.GradeRecord) models.GradeRecord {
	if row.StudentName != "" {
		target.StudentName = row.StudentName
	}
	if row.Section != "" {
		target.Section = row.Section
	}
	target.FinalGrade = row.FinalGrade
	for _, c := range row.Components {
		if idx := target.Component(c.Name); idx >= 0 {
			target.Components[idx].Score = c.Score
		} else {
			target.Components = append(target.Components, c)
		}
	}
	return target
}

// RecordAttendance stores a session for a record and returns its refreshed figures.
func (s *CohortService) RecordAttendance(ctx context.Context, courseID, recordID string, req dto.AttendanceRequest) (*models.GradeSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	record, err := s.record(ctx, courseID, recordID)
	if err != nil {
		return nil, err
	}
	entry := models.AttendanceRecord{Date: date, Status: req.Status, Notes: req.Notes}
	if err := s.repo.AppendAttendance(ctx, record.ID, entry); err != nil {
		return nil, appErrors.Internal(err, "failed to record attendance")
	}

	record.Attendance = append(record.Attendance, entry)
	s.invalidate(ctx, record.CourseID)
	return s.summarize(*record)
}

// UpdateRequirement toggles a requirement item and returns the refreshed figures.
func (s *CohortService) UpdateRequirement(ctx context.Context, courseID, recordID, requirementID string, req dto.RequirementUpdateRequest) (*models.GradeSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	record, err := s.record(ctx, courseID, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRequirement(ctx, record.ID, requirementID, *req.Completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Internal(err, "failed to update requirement")
	}
	for i := range record.Requirements {
		if record.Requirements[i].ID == requirementID {
			record.Requirements[i].Completed = *req.Completed
		}
	}
	s.invalidate(ctx, record.CourseID)
	return s.summarize(*record)
}

func (s *CohortService) record(ctx context.Context, courseID, recordID string) (*models.GradeRecord, error) {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Internal(err, "failed to load grade record")
	}
	if record.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
	}
	return record, nil
}

func (s *CohortService) summarize(record models.GradeRecord) (*models.GradeSummary, error) {
	summary, err := s.aggregator.Summarize(record)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *CohortService) load(ctx context.Context, filter models.CohortFilter) ([]models.GradeRecord, error) {
	start := time.Now()
	records, err := s.repo.ListCohort(ctx, filter)
	s.metrics.ObserveDBQuery("grade_records.list_cohort", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load cohort")
	}
	return records, nil
}

func (s *CohortService) save(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	err := s.repo.SaveAll(ctx, records)
	s.metrics.ObserveDBQuery("grade_records.save_all", time.Since(start))
	if err != nil {
		return appErrors.Internal(err, "failed to save grade records")
	}
	return nil
}

func (s *CohortService) invalidate(ctx context.Context, courseID string) {
	if err := s.cache.InvalidateCohort(ctx, courseID); err != nil {
		s.logger.Warn("failed to invalidate cohort cache", zap.String("course_id", courseID), zap.Error(err))
	}
}

// engineError keeps typed engine failures and wraps anything else as internal.
func engineError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Internal(err, message)
}
