package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// SubmissionRepository persists reviewable submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, kind, reference_id, title, submitted_by, status, reviewed_by, review_date,
       feedback, completion_date, created_at, updated_at`

// Create inserts a new submission row.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.SubmissionPending
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
		sub.UpdatedAt = sub.CreatedAt
	}
	const query = `INSERT INTO submissions
	(id, kind, reference_id, title, submitted_by, status, reviewed_by, review_date, feedback, completion_date, created_at, updated_at)
	VALUES (:id, :kind, :reference_id, :title, :submitted_by, :status, :reviewed_by, :review_date, :feedback, :completion_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + submissionColumns + ` FROM submissions`)

	conditions := make([]string, 0, 3)
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// UpdateSubmissionStatusParams carries the outcome of one transition.
type UpdateSubmissionStatusParams struct {
	ID             string
	FromStatus     models.SubmissionStatus
	ToStatus       models.SubmissionStatus
	ReviewedBy     *string
	ReviewDate     *time.Time
	Feedback       *string
	CompletionDate *time.Time
	UpdatedAt      time.Time
}

// ApplyTransition moves the row from FromStatus to ToStatus and records the
// transition in one transaction. A stale writer gets sql.ErrNoRows and a
// failed audit insert leaves the status untouched.
func (r *SubmissionRepository) ApplyTransition(ctx context.Context, params UpdateSubmissionStatusParams, record *models.TransitionRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission transition: %w", err)
	}
	if err := updateStatus(ctx, tx, params); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := insertTransition(ctx, tx, record); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission transition: %w", err)
	}
	return nil
}

func updateStatus(ctx context.Context, e sqlx.ExtContext, params UpdateSubmissionStatusParams) error {
	const query = `UPDATE submissions SET status = :to_status, reviewed_by = :reviewed_by, review_date = :review_date,
       feedback = :feedback, completion_date = :completion_date, updated_at = :updated_at
	WHERE id = :id AND status = :from_status`
	result, err := sqlx.NamedExecContext(ctx, e, query, map[string]interface{}{
		"id":              params.ID,
		"from_status":     params.FromStatus,
		"to_status":       params.ToStatus,
		"reviewed_by":     params.ReviewedBy,
		"review_date":     params.ReviewDate,
		"feedback":        params.Feedback,
		"completion_date": params.CompletionDate,
		"updated_at":      params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
