package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradeSheet() Dataset {
	return Dataset{
		Headers: []string{"Student ID", "Student Name", "Final Grade"},
		Rows: []map[string]string{
			{"Student ID": "s1", "Student Name": "Doe, Jane", "Final Grade": "89"},
			{"Student ID": "s2", "Student Name": "Budi", "Final Grade": "70"},
		},
		Footer: "Students: 2",
	}
}

func TestCSVExporterQuotesCells(t *testing.T) {
	out, err := NewCSVExporter().Render(gradeSheet())
	require.NoError(t, err)
	assert.Equal(t, "Student ID,Student Name,Final Grade\ns1,\"Doe, Jane\",89\ns2,Budi,70\n", string(out))

	semi, err := NewCSVExporterWithDelimiter(';').Render(gradeSheet())
	require.NoError(t, err)
	assert.Contains(t, string(semi), "s1;Doe, Jane;89")

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRenders(t *testing.T) {
	out, err := NewPDFExporter().Render(gradeSheet(), "Grade Sheet bio-101")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}
