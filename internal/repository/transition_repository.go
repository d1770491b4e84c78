package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// TransitionRepository reads the submission transition audit trail. Records
// are written by SubmissionRepository.ApplyTransition.
type TransitionRepository struct {
	db *sqlx.DB
}

// NewTransitionRepository constructs the repository.
func NewTransitionRepository(db *sqlx.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

func insertTransition(ctx context.Context, e sqlx.ExtContext, record *models.TransitionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}
	const query = `INSERT INTO submission_transitions (id, submission_id, from_status, to_status, event, actor, feedback, occurred_at)
	VALUES (:id, :submission_id, :from_status, :to_status, :event, :actor, :feedback, :occurred_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, query, record); err != nil {
		return fmt.Errorf("append submission transition: %w", err)
	}
	return nil
}

// ListBySubmission returns a submission's transitions, oldest first.
func (r *TransitionRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.TransitionRecord, error) {
	const query = `SELECT id, submission_id, from_status, to_status, event, actor, feedback, occurred_at
	FROM submission_transitions WHERE submission_id = $1 ORDER BY occurred_at ASC`
	var records []models.TransitionRecord
	if err := r.db.SelectContext(ctx, &records, query, submissionID); err != nil {
		return nil, fmt.Errorf("list submission transitions: %w", err)
	}
	return records, nil
}
