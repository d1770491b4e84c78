package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

// RecordFilter selects the records a batch adjustment applies to.
type RecordFilter func(models.GradeRecord) bool

// AllRecords selects every record.
func AllRecords() RecordFilter {
	return func(models.GradeRecord) bool { return true }
}

// BySection selects records of one section.
func BySection(section string) RecordFilter {
	section = strings.TrimSpace(section)
	return func(r models.GradeRecord) bool { return strings.EqualFold(r.Section, section) }
}

// ByCourse selects records of one course.
func ByCourse(courseID string) RecordFilter {
	return func(r models.GradeRecord) bool { return r.CourseID == courseID }
}

// ByStudentIDs selects records belonging to the listed students.
func ByStudentIDs(ids ...string) RecordFilter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(r models.GradeRecord) bool {
		_, ok := set[r.StudentID]
		return ok
	}
}

// AllOf selects records accepted by every filter. Nil filters are ignored.
func AllOf(filters ...RecordFilter) RecordFilter {
	return func(r models.GradeRecord) bool {
		for _, f := range filters {
			if f != nil && !f(r) {
				return false
			}
		}
		return true
	}
}

// BatchAdjuster applies one arithmetic change to a component across a cohort.
type BatchAdjuster struct {
	aggregator *GradeAggregator
}

// NewBatchAdjuster constructs a BatchAdjuster recomputing grades with aggregator.
func NewBatchAdjuster(aggregator *GradeAggregator) *BatchAdjuster {
	if aggregator == nil {
		aggregator = NewGradeAggregator(AggregatorConfig{})
	}
	return &BatchAdjuster{aggregator: aggregator}
}

// ApplyBatch returns a copy of records with component adjusted on every
// record selected by filter.
func (b *BatchAdjuster) ApplyBatch(records []models.GradeRecord, component string, op models.BatchOp, value float64, filter RecordFilter) ([]models.GradeRecord, error) {
	out, _, err := b.ApplyBatchReport(records, component, op, value, filter)
	return out, err
}

// ApplyBatchReport is ApplyBatch plus counts of matched, adjusted and skipped
// records. Records selected by filter that lack the component are skipped.
func (b *BatchAdjuster) ApplyBatchReport(records []models.GradeRecord, component string, op models.BatchOp, value float64, filter RecordFilter) ([]models.GradeRecord, models.BatchReport, error) {
	var report models.BatchReport
	if !isFinite(value) {
		return nil, report, appErrors.Clone(appErrors.ErrInvalidInput, "adjustment value must be finite")
	}
	if !op.Valid() {
		return nil, report, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unsupported batch op %q", op))
	}
	if strings.TrimSpace(component) == "" {
		return nil, report, appErrors.Clone(appErrors.ErrInvalidInput, "component name is required")
	}
	if filter == nil {
		filter = AllRecords()
	}

	out := make([]models.GradeRecord, len(records))
	for i, record := range records {
		out[i] = record.Clone()
		if !filter(record) {
			continue
		}
		report.Matched++

		idx := out[i].Component(component)
		if idx < 0 {
			report.Skipped++
			continue
		}
		c := &out[i].Components[idx]
		c.Score = adjustScore(c.Score, c.MaxScore, op, value)

		final, err := b.aggregator.ComputeFinalGrade(out[i].Components)
		if err != nil {
			return nil, models.BatchReport{}, fmt.Errorf("record %s: %w", record.ID, err)
		}
		out[i].FinalGrade = final
		report.Adjusted++
	}
	return out, report, nil
}

func adjustScore(score, maxScore float64, op models.BatchOp, value float64) float64 {
	var next float64
	switch op {
	case models.BatchAdd:
		next = score + value
	case models.BatchSubtract:
		next = score - value
	default:
		next = value
	}
	return math.Min(math.Max(next, 0), math.Max(maxScore, 0))
}
