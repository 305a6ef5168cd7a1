package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"estatecrm/internal/models"
)

// Generator renders lead exports as PDF. Handy to fake in handler tests.
type Generator interface {
	LeadReport(w io.Writer, data LeadReportData) error
}

// DocumentGenerator draws with a TTF font when FontPath is set, otherwise with
// the built-in Helvetica (Latin-1 only).
type DocumentGenerator struct {
	FontPath string
	fontName string
}

type LeadReportData struct {
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
	Leads       []*models.Lead
}

func NewDocumentGenerator(fontPath string) *DocumentGenerator {
	g := &DocumentGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

type column struct {
	title string
	width float64
	value func(l *models.Lead) string
}

var leadColumns = []column{
	{"ID", 12, func(l *models.Lead) string { return fmt.Sprintf("%d", l.ID) }},
	{"Name", 40, func(l *models.Lead) string { return l.Name }},
	{"Email", 55, func(l *models.Lead) string { return l.Email }},
	{"Phone", 30, func(l *models.Lead) string { return l.Phone }},
	{"Status", 35, func(l *models.Lead) string { return l.Status }},
	{"Source", 25, func(l *models.Lead) string { return l.Source }},
	{"Priority", 18, func(l *models.Lead) string { return l.Priority }},
	{"Budget", 22, func(l *models.Lead) string { return l.Budget }},
	{"Assigned To", 40, func(l *models.Lead) string {
		if l.AssignedToDetail == nil {
			return "Unassigned"
		}
		return l.AssignedToDetail.FullName
	}},
}

func (g *DocumentGenerator) LeadReport(w io.Writer, data LeadReportData) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(data.Title, true)
	pdf.SetAuthor("Estate CRM", false)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	g.addFont(pdf)
	tr := g.translator(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(g.fontName, "", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, tr(data.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 9)
	sub := fmt.Sprintf("%d leads, generated %s", len(data.Leads), data.GeneratedAt.Format("Jan 02, 2006 15:04"))
	if data.GeneratedBy != "" {
		sub += " by " + data.GeneratedBy
	}
	pdf.CellFormat(0, 6, tr(sub), "", 1, "L", false, 0, "")
	g.hr(pdf)

	g.header(pdf)
	pdf.SetFont(g.fontName, "", 8)
	for i, l := range data.Leads {
		if pdf.GetY() > 190 {
			pdf.AddPage()
			g.header(pdf)
			pdf.SetFont(g.fontName, "", 8)
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		for _, c := range leadColumns {
			pdf.CellFormat(c.width, 6, tr(fit(pdf, c.value(l), c.width)), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render lead report: %w", err)
	}
	return nil
}

func (g *DocumentGenerator) header(pdf *gofpdf.Fpdf) {
	pdf.SetFont(g.fontName, "B", 9)
	pdf.SetFillColor(220, 230, 241)
	for _, c := range leadColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func (g *DocumentGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(10, y, 287, y)
	pdf.SetY(y + 3)
}

func (g *DocumentGenerator) addFont(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

// translator maps UTF-8 onto the core font's code page; TTF fonts take UTF-8 as is.
func (g *DocumentGenerator) translator(pdf *gofpdf.Fpdf) func(string) string {
	if g.FontPath != "" {
		return func(s string) string { return s }
	}
	return pdf.UnicodeTranslatorFromDescriptor("")
}

// fit cuts s so it stays inside a cell of the given width.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(s) <= width-padding {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width-padding {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
