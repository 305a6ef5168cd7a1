package exchange

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/models"
)

func TestFormat(t *testing.T) {
	for _, name := range []string{"a.csv", "B.XLSX", "c.Xls"} {
		_, err := Format(name)
		assert.NoError(t, err, name)
	}
	_, err := Format("leads.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseCSVNormalisesHeader(t *testing.T) {
	data := "\xEF\xBB\xBF Name ,EMAIL,Phone,Budget\n" +
		"Jane,jane@example.com,0044123,1200.50\n" +
		",,,\n" +
		"Bob,bob@example.com,555\n"

	tbl, err := Parse("leads.csv", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "phone", "budget"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Jane", "jane@example.com", "0044123", "1200.50"}, tbl.Rows[0])
	assert.Equal(t, []string{"Bob", "bob@example.com", "555", ""}, tbl.Rows[1])
}

func TestParseCSVLatin1Fallback(t *testing.T) {
	data := []byte("name,email,phone\nJos\xe9,jose@example.com,1\n")
	tbl, err := Parse("leads.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "José", tbl.Rows[0][0])
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("leads.csv", []byte("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse("leads.xlsx", []byte("definitely not a zip"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestCandidates(t *testing.T) {
	tbl := &Table{
		Header: []string{"name", "email", "phone", "tags", "priority"},
		Rows: [][]string{
			{"Jane", "jane@example.com", "555", " vip, ,hot ,", ""},
			{"Bob", "", "556", "", "High"},
			{"Carl", "carl@example.com", "557", "", ""},
		},
	}
	cands, err := Candidates(tbl)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, 2, cands[0].RowNumber)
	assert.False(t, cands[0].MissingRequired)
	assert.Equal(t, []string{"vip", "hot"}, []string(cands[0].Lead.Tags))
	assert.Equal(t, models.LeadStatusNew, cands[0].Lead.Status)
	assert.Equal(t, models.DefaultLeadSource, cands[0].Lead.Source)
	assert.Equal(t, models.DefaultLeadPriority, cands[0].Lead.Priority)

	assert.Equal(t, 3, cands[1].RowNumber)
	assert.True(t, cands[1].MissingRequired)
	assert.Equal(t, "High", cands[1].Lead.Priority)

	assert.Equal(t, 4, cands[2].RowNumber)
	assert.NotNil(t, cands[2].Lead.Tags)
	assert.Empty(t, cands[2].Lead.Tags)
}

func TestCandidatesMissingColumns(t *testing.T) {
	_, err := Candidates(&Table{Header: []string{"name", "mail"}})
	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"email", "phone"}, mce.Columns)
}

func exportLead() *models.Lead {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	prop := 3
	return &models.Lead{
		ID: 7, Name: "Jane", Email: "jane@example.com", Phone: "555", Status: "New",
		Tags: []string{"vip", "hot"}, PropertyID: &prop, CreatedAt: created, UpdatedAt: created,
		CreatedByDetail: &models.UserBrief{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
	}
}

func TestFlatten(t *testing.T) {
	row := Flatten(exportLead())
	require.Len(t, row, len(ExportColumns))

	col := func(name string) string {
		for i, c := range ExportColumns {
			if c == name {
				return row[i]
			}
		}
		t.Fatalf("no column %s", name)
		return ""
	}
	assert.Equal(t, "vip,hot", col("tags"))
	assert.Equal(t, "Unassigned", col("assigned_to_name"))
	assert.Equal(t, "", col("assigned_to_email"))
	assert.Equal(t, "Ann Lee", col("created_by_name"))
	assert.Equal(t, "3", col("property"))
	assert.Equal(t, "2024-03-01T10:00:00Z", col("created_at"))
	assert.NotContains(t, ExportColumns, "assigned_to")
	assert.NotContains(t, ExportColumns, "created_by")
}

func TestWriteCSVStartsWithBOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*models.Lead{exportLead()}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), string(utf8BOM))), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,name,email,phone"))
	assert.Contains(t, lines[1], `"vip,hot"`)
}

func TestXLSXExportCanBeReimported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []*models.Lead{exportLead()}))

	tbl, err := Parse("leads_export.xlsx", buf.Bytes())
	require.NoError(t, err)
	cands, err := Candidates(tbl)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Jane", cands[0].Lead.Name)
	assert.Equal(t, "555", cands[0].Lead.Phone)
	assert.Equal(t, []string{"vip", "hot"}, []string(cands[0].Lead.Tags))
}
