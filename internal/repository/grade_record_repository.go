package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// GradeRecordRepository persists grade sheets with their components,
// attendance sessions and requirement checklists.
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository constructs the repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

type componentRow struct {
	RecordID string `db:"record_id"`
	models.GradeComponent
}

type attendanceRow struct {
	RecordID string `db:"record_id"`
	models.AttendanceRecord
}

type requirementRow struct {
	RecordID string `db:"record_id"`
	models.RequirementItem
}

const gradeRecordColumns = `id, student_id, student_name, course_id, section, final_grade`

// ListCohort loads every record of a course, optionally narrowed to a section.
func (r *GradeRecordRepository) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.GradeRecord, error) {
	query := `SELECT ` + gradeRecordColumns + ` FROM grade_records WHERE course_id = $1`
	args := []interface{}{filter.CourseID}
	if filter.Section != "" {
		args = append(args, filter.Section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	query += " ORDER BY section, student_name, student_id"

	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	if err := r.hydrate(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetByID fetches one record with its children.
func (r *GradeRecordRepository) GetByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	const query = `SELECT ` + gradeRecordColumns + ` FROM grade_records WHERE id = $1`
	var record models.GradeRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	records := []models.GradeRecord{record}
	if err := r.hydrate(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

func (r *GradeRecordRepository) hydrate(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	ids := make([]string, len(records))
	for i := range records {
		index[records[i].ID] = i
		ids[i] = records[i].ID
	}

	var components []componentRow
	if err := r.selectIn(ctx, &components, `SELECT record_id, name, score, max_score, weight FROM grade_record_components
        WHERE record_id IN (?) ORDER BY record_id, position`, ids); err != nil {
		return fmt.Errorf("list grade components: %w", err)
	}
	for _, row := range components {
		if i, ok := index[row.RecordID]; ok {
			records[i].Components = append(records[i].Components, row.GradeComponent)
		}
	}

	var attendance []attendanceRow
	if err := r.selectIn(ctx, &attendance, `SELECT record_id, session_date, status, notes FROM grade_record_attendance
        WHERE record_id IN (?) ORDER BY record_id, session_date, id`, ids); err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}
	for _, row := range attendance {
		if i, ok := index[row.RecordID]; ok {
			records[i].Attendance = append(records[i].Attendance, row.AttendanceRecord)
		}
	}

	var requirements []requirementRow
	if err := r.selectIn(ctx, &requirements, `SELECT record_id, id, name, completed FROM grade_record_requirements
        WHERE record_id IN (?) ORDER BY record_id, name`, ids); err != nil {
		return fmt.Errorf("list requirements: %w", err)
	}
	for _, row := range requirements {
		if i, ok := index[row.RecordID]; ok {
			records[i].Requirements = append(records[i].Requirements, row.RequirementItem)
		}
	}
	return nil
}

// SaveAll upserts records and replaces their components in one transaction.
// Records without an ID receive a generated one.
func (r *GradeRecordRepository) SaveAll(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save grade records: %w", err)
	}
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if err := saveRecord(ctx, tx, &records[i], now); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade records: %w", err)
	}
	return nil
}

func saveRecord(ctx context.Context, tx *sqlx.Tx, record *models.GradeRecord, now time.Time) error {
	const upsert = `INSERT INTO grade_records (id, student_id, student_name, course_id, section, final_grade, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET student_name = EXCLUDED.student_name, section = EXCLUDED.section,
            final_grade = EXCLUDED.final_grade, updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, record.ID, record.StudentID, record.StudentName,
		record.CourseID, record.Section, record.FinalGrade, now); err != nil {
		return fmt.Errorf("upsert grade record %s: %w", record.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM grade_record_components WHERE record_id = $1`, record.ID); err != nil {
		return fmt.Errorf("clear grade components %s: %w", record.ID, err)
	}
	const insert = `INSERT INTO grade_record_components (record_id, position, name, score, max_score, weight)
        VALUES ($1, $2, $3, $4, $5, $6)`
	for pos, c := range record.Components {
		if _, err := tx.ExecContext(ctx, insert, record.ID, pos, c.Name, c.Score, c.MaxScore, c.Weight); err != nil {
			return fmt.Errorf("insert grade component %s/%s: %w", record.ID, c.Name, err)
		}
	}
	return nil
}

// AppendAttendance records a session. Sessions are never overwritten; two
// sessions on the same date are stored as separate rows.
func (r *GradeRecordRepository) AppendAttendance(ctx context.Context, recordID string, entry models.AttendanceRecord) error {
	const query = `INSERT INTO grade_record_attendance (record_id, session_date, status, notes)
        VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, recordID, entry.Date, entry.Status, entry.Notes); err != nil {
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

// SetRequirement toggles a requirement item. It returns sql.ErrNoRows when
// the item does not belong to the record.
func (r *GradeRecordRepository) SetRequirement(ctx context.Context, recordID, requirementID string, completed bool) error {
	const query = `UPDATE grade_record_requirements SET completed = $1 WHERE id = $2 AND record_id = $3`
	result, err := r.db.ExecContext(ctx, query, completed, requirementID, recordID)
	if err != nil {
		return fmt.Errorf("set requirement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check requirement update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *GradeRecordRepository) selectIn(ctx context.Context, dest interface{}, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}
