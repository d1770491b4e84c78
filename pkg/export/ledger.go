package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

// LedgerHeader is the first line of every encoded grade ledger.
const LedgerHeader = "studentId,studentName,section,midterm,final,assignments,labReports,attendance,finalGrade"

const ledgerFieldCount = 9

// ledgerComponents are the score columns, in order, between section and finalGrade.
var ledgerComponents = []string{
	models.ComponentMidterm,
	models.ComponentFinal,
	models.ComponentAssignments,
	models.ComponentLabReports,
	models.ComponentAttendance,
}

// LedgerCodec converts grade records to and from the flat CSV ledger. Fields
// are neither quoted nor escaped, so names containing commas do not survive.
type LedgerCodec struct {
	scheme models.GradingScheme
}

// NewLedgerCodec builds a codec that fills decoded components from scheme.
func NewLedgerCodec(scheme models.GradingScheme) *LedgerCodec {
	if len(scheme.Components) == 0 {
		scheme = models.DefaultGradingScheme()
	}
	return &LedgerCodec{scheme: scheme}
}

// Encode renders the header and one newline-terminated line per record.
func (c *LedgerCodec) Encode(records []models.GradeRecord) string {
	var b strings.Builder
	b.WriteString(LedgerHeader)
	b.WriteByte('\n')
	for i := range records {
		r := &records[i]
		fields := make([]string, 0, ledgerFieldCount)
		fields = append(fields, r.StudentID, r.StudentName, r.Section)
		for _, name := range ledgerComponents {
			if idx := r.Component(name); idx >= 0 {
				fields = append(fields, formatNumber(r.Components[idx].Score))
			} else {
				fields = append(fields, "")
			}
		}
		fields = append(fields, formatNumber(r.FinalGrade))
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// Decode parses a ledger. The header is optional and blank lines are ignored.
// Any malformed line fails the whole decode with its 1-based line number.
func (c *LedgerCodec) Decode(text string) ([]models.GradeRecord, error) {
	lines := strings.Split(text, "\n")
	records := make([]models.GradeRecord, 0, len(lines))
	seenContent := false

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !seenContent {
			seenContent = true
			if strings.EqualFold(strings.TrimSpace(line), LedgerHeader) {
				continue
			}
		}

		fields := strings.Split(line, ",")
		if len(fields) != ledgerFieldCount {
			return nil, ledgerError(lineNo, fmt.Sprintf("expected %d fields, got %d", ledgerFieldCount, len(fields)))
		}

		record := models.GradeRecord{
			StudentID:   fields[0],
			StudentName: fields[1],
			Section:     fields[2],
			Components:  make([]models.GradeComponent, 0, len(ledgerComponents)),
		}
		for j, name := range ledgerComponents {
			value := strings.TrimSpace(fields[3+j])
			if value == "" {
				continue
			}
			score, err := parseNumber(value)
			if err != nil {
				return nil, ledgerError(lineNo, fmt.Sprintf("%s score %q is not a number", name, value))
			}
			tmpl := c.template(name)
			record.Components = append(record.Components, models.GradeComponent{
				Name:     name,
				Score:    score,
				MaxScore: tmpl.MaxScore,
				Weight:   tmpl.Weight,
			})
		}
		if value := strings.TrimSpace(fields[8]); value != "" {
			final, err := parseNumber(value)
			if err != nil {
				return nil, ledgerError(lineNo, fmt.Sprintf("finalGrade %q is not a number", value))
			}
			record.FinalGrade = final
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *LedgerCodec) template(name string) models.ComponentTemplate {
	if tmpl, ok := c.scheme.Template(name); ok {
		return tmpl
	}
	tmpl, _ := models.DefaultGradingScheme().Template(name)
	return tmpl
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return v, nil
}

func ledgerError(line int, reason string) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("line %d: %s", line, reason))
}
