package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/middleware/actor"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, req dto.CreateSubmissionRequest, actor string) (*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, query dto.SubmissionQuery) ([]models.Submission, error)
	AvailableActions(ctx context.Context, id string) (*dto.AvailableActionsResponse, error)
	Transition(ctx context.Context, id string, req dto.TransitionRequest, actor string) (*dto.TransitionResponse, error)
	History(ctx context.Context, id string) ([]models.TransitionRecord, error)
}

// SubmissionHandler exposes the review workflow for proposals and enrollments.
type SubmissionHandler struct {
	submissions submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions submissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create godoc
// @Summary Open a submission for review
// @Tags Submissions
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Submitting user"
// @Param payload body dto.CreateSubmissionRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	sub, err := h.submissions.Create(c.Request.Context(), req, actor.Value(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param kind query string false "location_proposal, team_proposal or enrollment"
// @Param status query string false "Comma separated statuses"
// @Param submittedBy query string false "Submitter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	query := dto.SubmissionQuery{
		Kind:        models.SubmissionKind(c.Query("kind")),
		SubmittedBy: c.Query("submittedBy"),
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			query.Status = append(query.Status, models.SubmissionStatus(status))
		}
	}
	var err error
	if query.Limit, err = intQuery(c, "limit"); err != nil {
		response.Error(c, err)
		return
	}
	if query.Offset, err = intQuery(c, "offset"); err != nil {
		response.Error(c, err)
		return
	}
	subs, err := h.submissions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, map[string]interface{}{"count": len(subs)})
}

// Get godoc
// @Summary Get a submission with its history
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	sub, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// Actions godoc
// @Summary Events the submission accepts next
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/actions [get]
func (h *SubmissionHandler) Actions(c *gin.Context) {
	actions, err := h.submissions.AvailableActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions)
}

// Transition godoc
// @Summary Apply a workflow event
// @Tags Submissions
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Reviewer"
// @Param id path string true "Submission ID"
// @Param payload body dto.TransitionRequest true "Event and feedback"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions/{id}/transitions [post]
func (h *SubmissionHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid payload"))
		return
	}
	result, err := h.submissions.Transition(c.Request.Context(), c.Param("id"), req, actor.Value(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// History godoc
// @Summary Transition audit trail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/history [get]
func (h *SubmissionHandler) History(c *gin.Context) {
	history, err := h.submissions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidInput, key+" must be a non-negative integer")
	}
	return v, nil
}
