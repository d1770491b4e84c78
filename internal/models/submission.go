package models

import "time"

// SubmissionKind identifies what is being reviewed.
type SubmissionKind string

const (
	SubmissionLocationProposal SubmissionKind = "location_proposal"
	SubmissionTeamProposal     SubmissionKind = "team_proposal"
	SubmissionEnrollment       SubmissionKind = "enrollment"
)

// Valid reports whether the kind is known.
func (k SubmissionKind) Valid() bool {
	switch k {
	case SubmissionLocationProposal, SubmissionTeamProposal, SubmissionEnrollment:
		return true
	}
	return false
}

// SubmissionStatus captures workflow states for reviewable submissions.
type SubmissionStatus string

const (
	SubmissionPending        SubmissionStatus = "pending"
	SubmissionApproved       SubmissionStatus = "approved"
	SubmissionRejected       SubmissionStatus = "rejected"
	SubmissionInProgress     SubmissionStatus = "in_progress"
	SubmissionCompleted      SubmissionStatus = "completed"
	SubmissionRevisionNeeded SubmissionStatus = "revision_needed"
)

// WorkflowEvent is a reviewer or staff action applied to a submission.
type WorkflowEvent string

const (
	EventApprove         WorkflowEvent = "approve"
	EventReject          WorkflowEvent = "reject"
	EventRequestRevision WorkflowEvent = "request_revision"
	EventStart           WorkflowEvent = "start"
	EventComplete        WorkflowEvent = "complete"
)

// Submission is a location proposal, team proposal or enrollment under review.
type Submission struct {
	ID             string             `db:"id" json:"id"`
	Kind           SubmissionKind     `db:"kind" json:"kind"`
	ReferenceID    string             `db:"reference_id" json:"referenceId"`
	Title          string             `db:"title" json:"title"`
	SubmittedBy    string             `db:"submitted_by" json:"submittedBy"`
	Status         SubmissionStatus   `db:"status" json:"status"`
	ReviewedBy     *string            `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewDate     *time.Time         `db:"review_date" json:"reviewDate,omitempty"`
	Feedback       *string            `db:"feedback" json:"feedback,omitempty"`
	CompletionDate *time.Time         `db:"completion_date" json:"completionDate,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updatedAt"`
	History        []TransitionRecord `json:"history,omitempty"`
}

// TransitionRecord is the audit entry written for every applied transition.
type TransitionRecord struct {
	ID           string           `db:"id" json:"id"`
	SubmissionID string           `db:"submission_id" json:"submissionId"`
	From         SubmissionStatus `db:"from_status" json:"from"`
	To           SubmissionStatus `db:"to_status" json:"to"`
	Event        WorkflowEvent    `db:"event" json:"event"`
	Actor        string           `db:"actor" json:"actor"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	At           time.Time        `db:"occurred_at" json:"at"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Kind        SubmissionKind
	Status      []SubmissionStatus
	SubmittedBy string
	Limit       int
	Offset      int
}
