package dto

import (
	"time"

	"github.com/noah-isme/practicum-api/internal/models"
)

// ReportRequest captures the POST /reports payload.
type ReportRequest struct {
	CourseID string              `json:"courseId" validate:"required"`
	Section  string              `json:"section"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing a grade sheet.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ReportStatusResponse exposes job state.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Cohort     string              `json:"cohort"`
	Format     models.ReportFormat `json:"format"`
	Status     models.ReportStatus `json:"status"`
	Attempts   int                 `json:"attempts"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}
