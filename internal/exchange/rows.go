package exchange

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"estatecrm/internal/models"
)

var requiredColumns = []string{"name", "email", "phone"}

// ImportColumns are the columns an import reads; anything else is ignored.
var ImportColumns = []string{
	"name", "email", "phone", "status", "source", "interest",
	"priority", "company", "position", "budget", "timeline",
	"requirements", "notes", "tags",
}

// Candidate is one data row shaped into a lead. RowNumber is the spreadsheet
// line, counting the header as line 1.
type Candidate struct {
	RowNumber int
	Lead      *models.Lead
	// MissingRequired is set when name, email or phone is blank.
	MissingRequired bool
}

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("Missing essential columns in the file. Required columns include at least: name, email, phone. Missing: %s",
		strings.Join(e.Columns, ", "))
}

// Candidates shapes every row. Cells stay raw strings; budget and phone are never
// reinterpreted as numbers.
func Candidates(t *Table) ([]Candidate, error) {
	index := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	out := make([]Candidate, 0, len(t.Rows))
	for i, row := range t.Rows {
		get := func(col string) string {
			if idx, ok := index[col]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		lead := &models.Lead{
			Name:         get("name"),
			Email:        get("email"),
			Phone:        get("phone"),
			Status:       get("status"),
			Source:       get("source"),
			Interest:     get("interest"),
			Priority:     get("priority"),
			Company:      get("company"),
			Position:     get("position"),
			Budget:       get("budget"),
			Timeline:     get("timeline"),
			Requirements: get("requirements"),
			Notes:        get("notes"),
			Tags:         SplitTags(get("tags")),
		}
		lead.ApplyDefaults()
		out = append(out, Candidate{
			RowNumber:       i + 2,
			Lead:            lead,
			MissingRequired: lead.Name == "" || lead.Email == "" || lead.Phone == "",
		})
	}
	return out, nil
}

// SplitTags splits a comma-separated cell, trimming entries and dropping empties.
func SplitTags(cell string) pq.StringArray {
	tags := pq.StringArray{}
	for _, part := range strings.Split(cell, ",") {
		if p := strings.TrimSpace(part); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
