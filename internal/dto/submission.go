package dto

import "github.com/noah-isme/practicum-api/internal/models"

// CreateSubmissionRequest opens a new reviewable submission.
type CreateSubmissionRequest struct {
	Kind        models.SubmissionKind `json:"kind" validate:"required,oneof=location_proposal team_proposal enrollment"`
	ReferenceID string                `json:"referenceId" validate:"required"`
	Title       string                `json:"title" validate:"required,max=200"`
}

// TransitionRequest applies a workflow event.
type TransitionRequest struct {
	Event    models.WorkflowEvent `json:"event" validate:"required"`
	Feedback string               `json:"feedback" validate:"max=2000"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	Kind        models.SubmissionKind
	Status      []models.SubmissionStatus
	SubmittedBy string
	Limit       int
	Offset      int
}

// TransitionResponse returns the updated submission with its audit entry.
type TransitionResponse struct {
	Submission models.Submission       `json:"submission"`
	Transition models.TransitionRecord `json:"transition"`
	Actions    []models.WorkflowEvent  `json:"actions"`
}

// AvailableActionsResponse lists the events that may be applied next.
type AvailableActionsResponse struct {
	SubmissionID string                  `json:"submissionId"`
	Status       models.SubmissionStatus `json:"status"`
	Actions      []models.WorkflowEvent  `json:"actions"`
}
