package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"estatecrm/internal/assignment"
	"estatecrm/internal/authz"
	"estatecrm/internal/exchange"
	"estatecrm/internal/metrics"
	"estatecrm/internal/models"
	"estatecrm/internal/pdf"
	"estatecrm/internal/repositories"
)

// BadFileError is a client error about the uploaded file as a whole.
type BadFileError struct {
	Err error
}

func (e *BadFileError) Error() string   { return e.Err.Error() }
func (e *BadFileError) Unwrap() []error { return []error{ErrValidation, e.Err} }

type SkippedRow struct {
	RowNumber int                 `json:"row_number"`
	Errors    map[string][]string `json:"errors"`
}

type ImportResult struct {
	BatchID        string       `json:"batch_id"`
	Message        string       `json:"message"`
	CreatedCount   int          `json:"created_count"`
	SkippedCount   int          `json:"skipped_count"`
	SkippedDetails []SkippedRow `json:"skipped_details"`
}

// Failed reports whether nothing was imported and something was rejected.
func (r *ImportResult) Failed() bool {
	return r.CreatedCount == 0 && r.SkippedCount > 0
}

var missingRequiredErrors = map[string][]string{
	"Required fields": {"Name, Email, and Phone are mandatory."},
}

// ExportFormat is one of csv, xlsx or pdf.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
	ExportPDF  ExportFormat = "pdf"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportXLSX, ExportPDF:
		return ExportFormat(s), nil
	}
	return "", fieldError("format", fmt.Sprintf("Unsupported export format %q, use csv, xlsx or pdf.", s))
}

func (f ExportFormat) ContentType() string {
	switch f {
	case ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportPDF:
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

func (f ExportFormat) Filename() string {
	return "leads_export." + string(f)
}

// ExchangeService moves leads in and out of files.
type ExchangeService interface {
	Import(ctx context.Context, actor authz.Actor, filename string, data []byte) (*ImportResult, error)
	Export(ctx context.Context, actor authz.Actor, f models.LeadFilter, format ExportFormat, w io.Writer) error
}

type exchangeService struct {
	leads    repositories.LeadRepository
	users    repositories.UserRepository
	notifier AssignmentNotifier
	reports  pdf.Generator
	now      func() time.Time
}

func NewExchangeService(leads repositories.LeadRepository, users repositories.UserRepository, notifier AssignmentNotifier, reports pdf.Generator) ExchangeService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &exchangeService{leads: leads, users: users, notifier: notifier, reports: reports, now: time.Now}
}

// Import creates one lead per valid row, assigned to and created by the
// importer. Rows commit one by one; a bad row is reported and skipped.
func (s *exchangeService) Import(ctx context.Context, actor authz.Actor, filename string, data []byte) (*ImportResult, error) {
	if !authz.Can(actor, authz.LeadReports) {
		return nil, ErrForbidden
	}
	batch := uuid.NewString()

	table, err := exchange.Parse(filename, data)
	if err != nil {
		log.Printf("[leads][import] batch=%s file=%q: %v", batch, filename, err)
		return nil, &BadFileError{Err: err}
	}
	candidates, err := exchange.Candidates(table)
	if err != nil {
		var mce *exchange.MissingColumnsError
		if errors.As(err, &mce) {
			return nil, &BadFileError{Err: err}
		}
		return nil, err
	}

	res := &ImportResult{BatchID: batch}
	importer := actor.UserID
	var rec assignment.Recorder
	for _, c := range candidates {
		if c.MissingRequired {
			res.SkippedDetails = append(res.SkippedDetails, SkippedRow{RowNumber: c.RowNumber, Errors: missingRequiredErrors})
			continue
		}
		if rowErr := s.importRow(ctx, &rec, c.Lead, importer); rowErr != nil {
			res.SkippedDetails = append(res.SkippedDetails, SkippedRow{RowNumber: c.RowNumber, Errors: rowErrors(rowErr)})
			continue
		}
		res.CreatedCount++
	}

	// one delivery budget for the whole batch
	s.notifier.Flush(ctx, rec.Events())

	res.SkippedCount = len(res.SkippedDetails)
	res.Message = fmt.Sprintf("%d leads imported successfully.", res.CreatedCount)
	if res.SkippedCount > 0 {
		res.Message += fmt.Sprintf(" %d rows were skipped.", res.SkippedCount)
	}
	metrics.RecordImport(res.CreatedCount, res.SkippedCount)
	log.Printf("[leads][import] batch=%s file=%q by=%d created=%d skipped=%d",
		batch, filename, importer, res.CreatedCount, res.SkippedCount)
	return res, nil
}

func (s *exchangeService) importRow(ctx context.Context, rec *assignment.Recorder, lead *models.Lead, importer int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[leads][import] row panic: %v", r)
			err = errors.New("row could not be processed")
		}
	}()

	normalizeLead(lead)
	lead.AssignedTo = &importer
	lead.CreatedBy = &importer
	if err := validateStruct(lead); err != nil {
		return err
	}
	if err := s.leads.Create(ctx, lead, rec.LeadHook()); err != nil {
		return storeError(err)
	}
	return nil
}

func rowErrors(err error) map[string][]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	log.Printf("[leads][import] row failed: %v", err)
	return map[string][]string{"non_field_errors": {"The row could not be saved."}}
}

// Export writes the actor's visible leads matching f.
func (s *exchangeService) Export(ctx context.Context, actor authz.Actor, f models.LeadFilter, format ExportFormat, w io.Writer) error {
	if !authz.Can(actor, authz.LeadReports) {
		return ErrForbidden
	}
	f.Scope = authz.LeadScope(actor)
	f.Limit, f.Offset = 0, 0
	leads, err := s.leads.List(ctx, f)
	if err != nil {
		return err
	}
	log.Printf("[leads][export] by=%d format=%s rows=%d", actor.UserID, format, len(leads))

	switch format {
	case ExportXLSX:
		return exchange.WriteXLSX(w, leads)
	case ExportPDF:
		if s.reports == nil {
			return errors.New("pdf export is not configured")
		}
		generatedBy := ""
		if u, err := s.users.GetByID(ctx, actor.UserID); err == nil {
			generatedBy = u.FullName()
		}
		return s.reports.LeadReport(w, pdf.LeadReportData{
			Title:       "Leads export",
			GeneratedAt: s.now(),
			GeneratedBy: generatedBy,
			Leads:       leads,
		})
	}
	return exchange.WriteCSV(w, leads)
}
