package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

// SystemActor reviews submissions that are approved on creation.
const SystemActor = "system"

type transitionRule struct {
	to               models.SubmissionStatus
	enrollmentOnly   bool
	feedbackRequired bool
}

// transitions is the complete edge set; anything missing is illegal.
// completed and rejected have no outgoing edges.
var transitions = map[models.SubmissionStatus]map[models.WorkflowEvent]transitionRule{
	models.SubmissionPending: {
		models.EventApprove:         {to: models.SubmissionApproved},
		models.EventReject:          {to: models.SubmissionRejected, feedbackRequired: true},
		models.EventRequestRevision: {to: models.SubmissionRevisionNeeded, feedbackRequired: true},
	},
	models.SubmissionRevisionNeeded: {
		models.EventApprove: {to: models.SubmissionApproved},
		models.EventReject:  {to: models.SubmissionRejected, feedbackRequired: true},
	},
	models.SubmissionApproved: {
		models.EventRequestRevision: {to: models.SubmissionRevisionNeeded, feedbackRequired: true},
		models.EventStart:           {to: models.SubmissionInProgress, enrollmentOnly: true},
	},
	models.SubmissionInProgress: {
		models.EventComplete: {to: models.SubmissionCompleted, enrollmentOnly: true},
	},
}

// eventTargets names the state each event asks for, used in error messages.
var eventTargets = map[models.WorkflowEvent]models.SubmissionStatus{
	models.EventApprove:         models.SubmissionApproved,
	models.EventReject:          models.SubmissionRejected,
	models.EventRequestRevision: models.SubmissionRevisionNeeded,
	models.EventStart:           models.SubmissionInProgress,
	models.EventComplete:        models.SubmissionCompleted,
}

var eventOrder = []models.WorkflowEvent{
	models.EventApprove,
	models.EventReject,
	models.EventRequestRevision,
	models.EventStart,
	models.EventComplete,
}

// WorkflowConfig configures the submission state machine.
type WorkflowConfig struct {
	AutoApproveEnrollment bool
	Clock                 func() time.Time
}

// SubmissionWorkflow is the single state machine for location proposals,
// team proposals and enrollments.
type SubmissionWorkflow struct {
	autoApprove bool
	now         func() time.Time
}

// NewSubmissionWorkflow constructs the state machine.
func NewSubmissionWorkflow(cfg WorkflowConfig) *SubmissionWorkflow {
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SubmissionWorkflow{autoApprove: cfg.AutoApproveEnrollment, now: now}
}

// NewSubmission creates a submission in its initial state.
func (w *SubmissionWorkflow) NewSubmission(kind models.SubmissionKind, referenceID, title, submittedBy string) (models.Submission, error) {
	if !kind.Valid() {
		return models.Submission{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported submission kind %q", kind))
	}
	if strings.TrimSpace(submittedBy) == "" {
		return models.Submission{}, appErrors.Clone(appErrors.ErrUnauthorized, "submitter required")
	}
	now := w.now()
	sub := models.Submission{
		ID:          uuid.NewString(),
		Kind:        kind,
		ReferenceID: strings.TrimSpace(referenceID),
		Title:       strings.TrimSpace(title),
		SubmittedBy: strings.TrimSpace(submittedBy),
		Status:      models.SubmissionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if kind == models.SubmissionEnrollment && w.autoApprove {
		reviewer := SystemActor
		sub.Status = models.SubmissionApproved
		sub.ReviewedBy = &reviewer
		sub.ReviewDate = &now
	}
	return sub, nil
}

// Transition applies event to sub on behalf of actor. The input is left
// untouched; the updated submission and the audit record are returned.
func (w *SubmissionWorkflow) Transition(sub models.Submission, event models.WorkflowEvent, actor, feedback string) (models.Submission, models.TransitionRecord, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return sub, models.TransitionRecord{}, appErrors.Clone(appErrors.ErrUnauthorized, "actor required for submission transition")
	}
	target, known := eventTargets[event]
	if !known {
		return sub, models.TransitionRecord{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown workflow event %q", event))
	}
	rule, ok := w.rule(sub, event)
	if !ok {
		return sub, models.TransitionRecord{}, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("cannot move %s submission from %s to %s", sub.Kind, sub.Status, target))
	}
	feedback = strings.TrimSpace(feedback)
	if rule.feedbackRequired && feedback == "" {
		return sub, models.TransitionRecord{}, appErrors.Clone(appErrors.ErrValidation, "feedback required")
	}

	now := w.now()
	next := sub
	next.History = append([]models.TransitionRecord(nil), sub.History...)
	next.Status = rule.to
	next.UpdatedAt = now

	var note *string
	if feedback != "" {
		note = &feedback
	}
	switch event {
	case models.EventApprove, models.EventReject, models.EventRequestRevision:
		reviewer := actor
		reviewedAt := now
		next.ReviewedBy = &reviewer
		next.ReviewDate = &reviewedAt
		next.Feedback = note
	case models.EventComplete:
		completedAt := now
		next.CompletionDate = &completedAt
	}

	record := models.TransitionRecord{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		From:         sub.Status,
		To:           rule.to,
		Event:        event,
		Actor:        actor,
		Feedback:     note,
		At:           now,
	}
	next.History = append(next.History, record)
	return next, record, nil
}

// RequestRevision sends a pending or approved submission back to its author.
func (w *SubmissionWorkflow) RequestRevision(sub models.Submission, actor, feedback string) (models.Submission, models.TransitionRecord, error) {
	return w.Transition(sub, models.EventRequestRevision, actor, feedback)
}

// AvailableActions lists the events the presentation layer may offer for sub.
func (w *SubmissionWorkflow) AvailableActions(sub models.Submission) []models.WorkflowEvent {
	actions := make([]models.WorkflowEvent, 0, 3)
	for _, event := range eventOrder {
		if _, ok := w.rule(sub, event); ok {
			actions = append(actions, event)
		}
	}
	return actions
}

// RequiresFeedback reports whether event needs reviewer feedback.
func (w *SubmissionWorkflow) RequiresFeedback(event models.WorkflowEvent) bool {
	return event == models.EventReject || event == models.EventRequestRevision
}

// IsTerminal reports whether no further transitions exist from status.
func (w *SubmissionWorkflow) IsTerminal(status models.SubmissionStatus) bool {
	return len(transitions[status]) == 0
}

func (w *SubmissionWorkflow) rule(sub models.Submission, event models.WorkflowEvent) (transitionRule, bool) {
	rule, ok := transitions[sub.Status][event]
	if !ok {
		return transitionRule{}, false
	}
	if rule.enrollmentOnly && sub.Kind != models.SubmissionEnrollment {
		return transitionRule{}, false
	}
	return rule, true
}
