package models

import (
	"strings"
	"time"
)

// GradeComponent is one weighted assessment item (midterm, final, lab report...).
type GradeComponent struct {
	Name     string  `db:"name" json:"name"`
	Score    float64 `db:"score" json:"score"`
	MaxScore float64 `db:"max_score" json:"maxScore"`
	Weight   float64 `db:"weight" json:"weight"`
}

// AttendanceStatus enumerates session attendance outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid reports whether the status is one of the known values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceExcused, AttendanceAbsent:
		return true
	}
	return false
}

// CountsAsPresent is true for statuses that contribute to the attendance percentage.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord captures one practicum session for a student.
type AttendanceRecord struct {
	Date   time.Time        `db:"session_date" json:"date"`
	Status AttendanceStatus `db:"status" json:"status"`
	Notes  *string          `db:"notes" json:"notes,omitempty"`
}

// RequirementItem is a prerequisite document or task.
type RequirementItem struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Completed bool   `db:"completed" json:"completed"`
}

// GradeRecord is a student's grade sheet for one course section.
type GradeRecord struct {
	ID           string             `db:"id" json:"id"`
	StudentID    string             `db:"student_id" json:"studentId"`
	StudentName  string             `db:"student_name" json:"studentName"`
	CourseID     string             `db:"course_id" json:"courseId"`
	Section      string             `db:"section" json:"section"`
	FinalGrade   float64            `db:"final_grade" json:"finalGrade"`
	Components   []GradeComponent   `json:"components"`
	Attendance   []AttendanceRecord `json:"attendance"`
	Requirements []RequirementItem  `json:"requirements"`
}

// Component returns the index of the named component (case-insensitive), or -1.
func (r *GradeRecord) Component(name string) int {
	for i := range r.Components {
		if strings.EqualFold(r.Components[i].Name, name) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can edit it without touching r.
func (r GradeRecord) Clone() GradeRecord {
	out := r
	out.Components = append([]GradeComponent(nil), r.Components...)
	out.Requirements = append([]RequirementItem(nil), r.Requirements...)
	if r.Attendance != nil {
		out.Attendance = make([]AttendanceRecord, len(r.Attendance))
		for i, a := range r.Attendance {
			out.Attendance[i] = a
			if a.Notes != nil {
				note := *a.Notes
				out.Attendance[i].Notes = &note
			}
		}
	}
	return out
}

// GradeBand classifies a final grade.
type GradeBand string

const (
	BandExcellent        GradeBand = "excellent"
	BandGood             GradeBand = "good"
	BandSatisfactory     GradeBand = "satisfactory"
	BandNeedsImprovement GradeBand = "needs_improvement"
)

// GradeSummary holds the computed figures for one record.
type GradeSummary struct {
	RecordID              string    `json:"recordId"`
	StudentID             string    `json:"studentId"`
	StudentName           string    `json:"studentName"`
	Section               string    `json:"section"`
	FinalGrade            float64   `json:"finalGrade"`
	Band                  GradeBand `json:"band"`
	AttendancePercentage  float64   `json:"attendancePercentage"`
	RequirementCompletion float64   `json:"requirementCompletion"`
}

// CohortFilter scopes cohort loading.
type CohortFilter struct {
	CourseID string
	Section  string
}

// ComponentTemplate seeds MaxScore and Weight for a named component.
type ComponentTemplate struct {
	Name     string  `json:"name"`
	MaxScore float64 `json:"maxScore"`
	Weight   float64 `json:"weight"`
}

// GradingScheme is the ordered set of component templates for a course.
type GradingScheme struct {
	Name       string              `json:"name"`
	Components []ComponentTemplate `json:"components"`
}

// Template looks a component template up by name (case-insensitive).
func (s GradingScheme) Template(name string) (ComponentTemplate, bool) {
	for _, c := range s.Components {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ComponentTemplate{}, false
}

// Ledger component names, in column order.
const (
	ComponentMidterm     = "midterm"
	ComponentFinal       = "final"
	ComponentAssignments = "assignments"
	ComponentLabReports  = "labReports"
	ComponentAttendance  = "attendance"
)

// DefaultGradingScheme is the practicum weighting used when no scheme file is configured.
func DefaultGradingScheme() GradingScheme {
	return GradingScheme{
		Name: "practicum-default",
		Components: []ComponentTemplate{
			{Name: ComponentMidterm, MaxScore: 100, Weight: 0.25},
			{Name: ComponentFinal, MaxScore: 100, Weight: 0.30},
			{Name: ComponentAssignments, MaxScore: 100, Weight: 0.20},
			{Name: ComponentLabReports, MaxScore: 100, Weight: 0.15},
			{Name: ComponentAttendance, MaxScore: 100, Weight: 0.10},
		},
	}
}
