package dto

import (
	"time"

	"github.com/noah-isme/practicum-api/internal/models"
)

// ComputeGradeRequest evaluates an ad-hoc record without persisting it.
type ComputeGradeRequest struct {
	Components   []models.GradeComponent   `json:"components" validate:"dive"`
	Attendance   []models.AttendanceRecord `json:"attendance"`
	Requirements []models.RequirementItem  `json:"requirements"`
}

// CohortSummary is the computed view of a course section.
type CohortSummary struct {
	CourseID     string                   `json:"courseId"`
	Section      string                   `json:"section,omitempty"`
	Students     []models.GradeSummary    `json:"students"`
	AverageGrade float64                  `json:"averageGrade"`
	BandCounts   map[models.GradeBand]int `json:"bandCounts"`
	GeneratedAt  time.Time                `json:"generatedAt"`
}

// BatchAdjustRequest applies one arithmetic change across a cohort.
type BatchAdjustRequest struct {
	Component  string         `json:"component" validate:"required"`
	Op         models.BatchOp `json:"op" validate:"required,oneof=add subtract set"`
	Value      *float64       `json:"value" validate:"required"`
	Section    string         `json:"section"`
	StudentIDs []string       `json:"studentIds"`
}

// BatchAdjustResponse reports what a batch adjustment changed.
type BatchAdjustResponse struct {
	Report  models.BatchReport   `json:"report"`
	Records []models.GradeRecord `json:"records"`
}

// LedgerImportResponse summarises a ledger import.
type LedgerImportResponse struct {
	Imported int `json:"imported"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
}

// AttendanceRequest records one practicum session.
type AttendanceRequest struct {
	Date   string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Status models.AttendanceStatus `json:"status" validate:"required,oneof=present late excused absent"`
	Notes  *string                 `json:"notes"`
}

// RequirementUpdateRequest toggles a requirement item.
type RequirementUpdateRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}
