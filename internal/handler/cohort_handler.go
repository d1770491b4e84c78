package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/middleware/actor"
	"github.com/noah-isme/practicum-api/pkg/response"
)

// maxLedgerBytes caps ledger uploads.
const maxLedgerBytes = 4 << 20

type cohortService interface {
	Evaluate(req dto.ComputeGradeRequest) (*models.GradeSummary, error)
	Summary(ctx context.Context, courseID, section string) (*dto.CohortSummary, error)
	ApplyBatch(ctx context.Context, courseID string, req dto.BatchAdjustRequest, actor string) (*dto.BatchAdjustResponse, error)
	ExportLedger(ctx context.Context, courseID, section string) (string, error)
	ImportLedger(ctx context.Context, courseID, text, actor string) (*dto.LedgerImportResponse, error)
	RecordAttendance(ctx context.Context, courseID, recordID string, req dto.AttendanceRequest) (*models.GradeSummary, error)
	UpdateRequirement(ctx context.Context, courseID, recordID, requirementID string, req dto.RequirementUpdateRequest) (*models.GradeSummary, error)
}

// CohortHandler exposes grade computation and course-level grade operations.
type CohortHandler struct {
	cohorts cohortService
}

// NewCohortHandler constructs the handler.
func NewCohortHandler(cohorts cohortService) *CohortHandler {
	return &CohortHandler{cohorts: cohorts}
}

// Compute godoc
// @Summary Compute grade figures for an unsaved record
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.ComputeGradeRequest true "Components, attendance and requirements"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/compute [post]
func (h *CohortHandler) Compute(c *gin.Context) {
	var req dto.ComputeGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	summary, err := h.cohorts.Evaluate(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Summary godoc
// @Summary Cohort grade summary
// @Tags Grades
// @Produce json
// @Param courseId path string true "Course ID"
// @Param section query string false "Section"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/summary [get]
func (h *CohortHandler) Summary(c *gin.Context) {
	summary, err := h.cohorts.Summary(c.Request.Context(), c.Param("courseId"), c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Batch godoc
// @Summary Adjust one component across a course
// @Tags Grades
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body dto.BatchAdjustRequest true "Adjustment"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/batch [post]
func (h *CohortHandler) Batch(c *gin.Context) {
	var req dto.BatchAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	result, err := h.cohorts.ApplyBatch(c.Request.Context(), c.Param("courseId"), req, actor.Value(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ExportLedger godoc
// @Summary Download the grade ledger as CSV
// @Tags Grades
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Param section query string false "Section"
// @Success 200 {string} string "CSV ledger"
// @Router /courses/{courseId}/ledger [get]
func (h *CohortHandler) ExportLedger(c *gin.Context) {
	courseID := c.Param("courseId")
	text, err := h.cohorts.ExportLedger(c.Request.Context(), courseID, c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CSV(c, "ledger_"+courseID+".csv", text)
}

// ImportLedger godoc
// @Summary Upload a CSV grade ledger
// @Tags Grades
// @Accept text/csv
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/ledger [post]
func (h *CohortHandler) ImportLedger(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLedgerBytes+1))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "unable to read ledger"))
		return
	}
	if len(body) > maxLedgerBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "ledger too large"))
		return
	}
	result, err := h.cohorts.ImportLedger(c.Request.Context(), c.Param("courseId"), string(body), actor.Value(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// RecordAttendance godoc
// @Summary Record a practicum session
// @Tags Grades
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param recordId path string true "Grade record ID"
// @Param payload body dto.AttendanceRequest true "Session"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/records/{recordId}/attendance [post]
func (h *CohortHandler) RecordAttendance(c *gin.Context) {
	var req dto.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	summary, err := h.cohorts.RecordAttendance(c.Request.Context(), c.Param("courseId"), c.Param("recordId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// UpdateRequirement godoc
// @Summary Mark a requirement item complete or incomplete
// @Tags Grades
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param recordId path string true "Grade record ID"
// @Param requirementId path string true "Requirement ID"
// @Param payload body dto.RequirementUpdateRequest true "Completion flag"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/records/{recordId}/requirements/{requirementId} [patch]
func (h *CohortHandler) UpdateRequirement(c *gin.Context) {
	var req dto.RequirementUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	summary, err := h.cohorts.UpdateRequirement(c.Request.Context(), c.Param("courseId"), c.Param("recordId"), c.Param("requirementId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}
