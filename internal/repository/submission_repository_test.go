package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var submissionTestColumns = []string{"id", "kind", "reference_id", "title", "submitted_by", "status", "reviewed_by",
	"review_date", "feedback", "completion_date", "created_at", "updated_at"}

func TestSubmissionRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sub := &models.Submission{
		Kind:        models.SubmissionLocationProposal,
		ReferenceID: "loc-1",
		Title:       "RSUD Cibabat",
		SubmittedBy: "student-1",
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	require.NotEmpty(t, sub.ID)
	require.Equal(t, models.SubmissionPending, sub.Status)

	now := time.Now()
	rows := sqlmock.NewRows(submissionTestColumns).
		AddRow(sub.ID, "location_proposal", "loc-1", "RSUD Cibabat", "student-1", "pending", nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE id = $1")).
		WithArgs(sub.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, sub.ID, found.ID)
	require.Equal(t, models.SubmissionLocationProposal, found.Kind)
	require.Nil(t, found.ReviewedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(submissionTestColumns).
		AddRow("sub-1", "enrollment", "course-1", "Bio lab", "student-2", "approved", "staff-1", now, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = $1 AND status IN ($2,$3) ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("enrollment", "pending", "approved").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.SubmissionFilter{
		Kind:   models.SubmissionEnrollment,
		Status: []models.SubmissionStatus{models.SubmissionPending, models.SubmissionApproved},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].ReviewedBy)
	require.Equal(t, "staff-1", *list[0].ReviewedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func approvalFixture() (UpdateSubmissionStatusParams, *models.TransitionRecord) {
	reviewer := "reviewer-1"
	now := time.Now()
	params := UpdateSubmissionStatusParams{
		ID:         "sub-1",
		FromStatus: models.SubmissionPending,
		ToStatus:   models.SubmissionApproved,
		ReviewedBy: &reviewer,
		ReviewDate: &now,
		UpdatedAt:  now,
	}
	record := &models.TransitionRecord{
		SubmissionID: "sub-1",
		From:         models.SubmissionPending,
		To:           models.SubmissionApproved,
		Event:        models.EventApprove,
		Actor:        reviewer,
	}
	return params, record
}

func TestSubmissionRepositoryApplyTransitionCommitsBothWrites(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	params, record := approvalFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_transitions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyTransition(context.Background(), params, record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.At.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApplyTransitionGuardsFromStatus(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	params, record := approvalFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), params, record)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApplyTransitionRollsBackOnAuditFailure(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	params, record := approvalFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_transitions")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), params, record)
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRepositoryListBySubmission(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewTransitionRepository(db)

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "submission_id", "from_status", "to_status", "event", "actor", "feedback", "occurred_at"}).
		AddRow("tr-1", "sub-1", "pending", "approved", "approve", "reviewer-1", nil, at)
	mock.ExpectQuery(regexp.QuoteMeta("FROM submission_transitions WHERE submission_id = $1 ORDER BY occurred_at ASC")).
		WithArgs("sub-1").
		WillReturnRows(rows)

	history, err := repo.ListBySubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.EventApprove, history[0].Event)
	require.NoError(t, mock.ExpectationsWereMet())
}
