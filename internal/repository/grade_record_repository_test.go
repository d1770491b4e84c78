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

func newGradeRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestGradeRecordRepositoryListCohortHydrates(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	recordRows := sqlmock.NewRows([]string{"id", "student_id", "student_name", "course_id", "section", "final_grade"}).
		AddRow("rec-1", "s1", "Ayu", "bio-101", "A", 89.0).
		AddRow("rec-2", "s2", "Budi", "bio-101", "A", 70.0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name, course_id, section, final_grade FROM grade_records WHERE course_id = $1 AND section = $2")).
		WithArgs("bio-101", "A").
		WillReturnRows(recordRows)

	componentRows := sqlmock.NewRows([]string{"record_id", "name", "score", "max_score", "weight"}).
		AddRow("rec-1", "midterm", 85.0, 100.0, 0.25).
		AddRow("rec-1", "final", 90.0, 100.0, 0.30).
		AddRow("rec-2", "final", 70.0, 100.0, 0.30)
	mock.ExpectQuery(`FROM grade_record_components\s+WHERE record_id IN \(\$1, \$2\)`).
		WithArgs("rec-1", "rec-2").
		WillReturnRows(componentRows)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	attendanceRows := sqlmock.NewRows([]string{"record_id", "session_date", "status", "notes"}).
		AddRow("rec-1", day, "present", nil).
		AddRow("rec-2", day, "late", "traffic")
	mock.ExpectQuery(`FROM grade_record_attendance\s+WHERE record_id IN \(\$1, \$2\)`).
		WithArgs("rec-1", "rec-2").
		WillReturnRows(attendanceRows)

	requirementRows := sqlmock.NewRows([]string{"record_id", "id", "name", "completed"}).
		AddRow("rec-2", "req-1", "KRS", true)
	mock.ExpectQuery(`FROM grade_record_requirements\s+WHERE record_id IN \(\$1, \$2\)`).
		WithArgs("rec-1", "rec-2").
		WillReturnRows(requirementRows)

	records, err := repo.ListCohort(context.Background(), models.CohortFilter{CourseID: "bio-101", Section: "A"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, records[0].Components, 2)
	require.Equal(t, 0.30, records[0].Components[1].Weight)
	require.Len(t, records[1].Attendance, 1)
	require.Equal(t, models.AttendanceLate, records[1].Attendance[0].Status)
	require.NotNil(t, records[1].Attendance[0].Notes)
	require.Len(t, records[1].Requirements, 1)
	require.Empty(t, records[0].Requirements)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryListCohortEmpty(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_records WHERE course_id = $1 ORDER BY")).
		WithArgs("bio-101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "student_name", "course_id", "section", "final_grade"}))

	records, err := repo.ListCohort(context.Background(), models.CohortFilter{CourseID: "bio-101"})
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositorySaveAll(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	records := []models.GradeRecord{{
		StudentID: "s1", StudentName: "Ayu", CourseID: "bio-101", Section: "A", FinalGrade: 88,
		Components: []models.GradeComponent{
			{Name: "midterm", Score: 85, MaxScore: 100, Weight: 0.5},
			{Name: "final", Score: 91, MaxScore: 100, Weight: 0.5},
		},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WithArgs(sqlmock.AnyArg(), "s1", "Ayu", "bio-101", "A", 88.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_record_components WHERE record_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_record_components")).
		WithArgs(sqlmock.AnyArg(), 0, "midterm", 85.0, 100.0, 0.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_record_components")).
		WithArgs(sqlmock.AnyArg(), 1, "final", 91.0, 100.0, 0.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveAll(context.Background(), records))
	require.NotEmpty(t, records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositorySaveAllRollsBack(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.SaveAll(context.Background(), []models.GradeRecord{{ID: "rec-1", StudentID: "s1", CourseID: "bio-101"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositorySetRequirement(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_record_requirements SET completed = $1 WHERE id = $2 AND record_id = $3")).
		WithArgs(true, "req-1", "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetRequirement(context.Background(), "rec-1", "req-1", true))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_record_requirements")).
		WithArgs(true, "req-9", "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetRequirement(context.Background(), "rec-1", "req-9", true)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryAppendAttendanceKeepsSameDaySessions(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	day := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	plainInsert := `^INSERT INTO grade_record_attendance \(record_id, session_date, status, notes\)\s+VALUES \(\$1, \$2, \$3, \$4\)$`
	mock.ExpectExec(plainInsert).
		WithArgs("rec-1", day, models.AttendanceAbsent, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(plainInsert).
		WithArgs("rec-1", day, models.AttendanceLate, nil).
		WillReturnResult(sqlmock.NewResult(2, 1))

	require.NoError(t, repo.AppendAttendance(context.Background(), "rec-1", models.AttendanceRecord{Date: day, Status: models.AttendanceAbsent}))
	require.NoError(t, repo.AppendAttendance(context.Background(), "rec-1", models.AttendanceRecord{Date: day, Status: models.AttendanceLate}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryAppendAttendance(t *testing.T) {
	db, mock, cleanup := newGradeRecordRepoMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_record_attendance")).
		WithArgs("rec-1", day, models.AttendanceExcused, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendAttendance(context.Background(), "rec-1", models.AttendanceRecord{Date: day, Status: models.AttendanceExcused})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
