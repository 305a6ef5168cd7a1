package exchange

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"estatecrm/internal/models"
)

// ExportColumns is the fixed export layout. Raw assigned_to/created_by ids are
// replaced by name/email pairs.
var ExportColumns = []string{
	"id", "name", "email", "phone", "company", "position", "status", "source",
	"interest", "priority", "budget", "timeline", "requirements", "notes", "tags",
	"property", "created_at", "updated_at", "last_activity",
	"assigned_to_name", "assigned_to_email", "created_by_name", "created_by_email",
}

const unassignedLabel = "Unassigned"

// Flatten renders one lead as a row aligned with ExportColumns.
func Flatten(l *models.Lead) []string {
	assignedName, assignedEmail := unassignedLabel, ""
	if l.AssignedToDetail != nil {
		assignedName = personName(l.AssignedToDetail)
		assignedEmail = l.AssignedToDetail.Email
	}
	creatorName, creatorEmail := "", ""
	if l.CreatedByDetail != nil {
		creatorName = personName(l.CreatedByDetail)
		creatorEmail = l.CreatedByDetail.Email
	}
	property := ""
	if l.PropertyID != nil {
		property = strconv.Itoa(*l.PropertyID)
	}
	lastActivity := ""
	if l.LastActivity != nil {
		lastActivity = formatTime(*l.LastActivity)
	}

	return []string{
		strconv.Itoa(l.ID), l.Name, l.Email, l.Phone, l.Company, l.Position, l.Status, l.Source,
		l.Interest, l.Priority, l.Budget, l.Timeline, l.Requirements, l.Notes, strings.Join(l.Tags, ","),
		property, formatTime(l.CreatedAt), formatTime(l.UpdatedAt), lastActivity,
		assignedName, assignedEmail, creatorName, creatorEmail,
	}
}

func personName(u *models.UserBrief) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteCSV writes a UTF-8 CSV with a BOM so spreadsheet apps pick the right encoding.
func WriteCSV(w io.Writer, leads []*models.Lead) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(Flatten(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, leads []*models.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, ExportColumns); err != nil {
		return err
	}
	for i, l := range leads {
		if err := setRow(f, sheet, i+2, Flatten(l)); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return f.SetSheetRow(sheet, cell, &values)
}
