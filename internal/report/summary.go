// Package report renders the user performance summary as a PDF.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"quizmaster/internal/service"
)

const title = "Quiz Performance Summary"

var monthHeader = []string{"Month", "Total Attempts", "Unique Quizzes", "Average Score"}

// Filename is the attachment name for a report generated at t.
func Filename(t time.Time) string {
	return "quiz_summary_" + t.Format("20060102") + ".pdf"
}

// OverallRows is the "Overall Statistics" table body.
func OverallRows(s *service.UserSummary) [][]string {
	return [][]string{
		{"Total Quizzes Attempted", strconv.Itoa(s.TotalQuizzesAttempted)},
		{"Average Score", formatPercent(s.AverageScore)},
	}
}

// MonthRows is the "Month-wise Statistics" table, header row first.
func MonthRows(s *service.UserSummary) [][]string {
	rows := [][]string{monthHeader}
	for _, m := range s.Months {
		rows = append(rows, []string{
			m.Label,
			strconv.Itoa(m.Attempts),
			strconv.Itoa(m.UniqueQuizzes),
			formatPercent(m.Percentage),
		})
	}
	return rows
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// SummaryPDF builds the report in memory from the same summary the
// on-screen page uses.
func SummaryPDF(s *service.UserSummary) ([]byte, error) {
	return render(s, true)
}

func render(s *service.UserSummary, compress bool) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(compress)
	pdf.SetTitle(title, true)
	pdf.SetCreator("quizmaster", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	sub := "Generated " + s.GeneratedAt.Format("January 2, 2006")
	if s.UserName != "" {
		sub = tr(s.UserName) + " - " + sub
	}
	pdf.CellFormat(0, 6, sub, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	section(pdf, "Overall Statistics")
	table(pdf, []float64{100, 60}, OverallRows(s), false, tr)
	pdf.Ln(8)

	section(pdf, "Month-wise Statistics")
	months := MonthRows(s)
	if len(months) == 1 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "No attempts yet.", "", 1, "L", false, 0, "")
	} else {
		table(pdf, []float64{55, 35, 35, 40}, months, true, tr)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, name string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, name, "", 1, "L", false, 0, "")
}

// table draws bordered rows; with header set, the first row is shaded and bold.
func table(pdf *fpdf.Fpdf, widths []float64, rows [][]string, header bool, tr func(string) string) {
	for i, row := range rows {
		fill := header && i == 0
		if fill {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.SetFillColor(220, 220, 220)
		} else {
			pdf.SetFont("Helvetica", "", 11)
		}
		for j, cell := range row {
			align := "L"
			if j > 0 {
				align = "C"
			}
			pdf.CellFormat(widths[j], 8, tr(cell), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}
