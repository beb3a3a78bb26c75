// Package export renders stored reports as an XLSX workbook for download.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zoonotic-report-server/internal/domain"
)

const (
	SheetName   = "Reports"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxCellText = 32000
)

// Headers is the first row of the workbook.
var Headers = []string{
	"ID",
	"Created At",
	"Source",
	"Disease",
	"Result",
	"Biomarkers",
	"Ct Value",
	"Suggestion",
	"Symptoms",
	"Candidates",
	"Prediction",
	"Confidence",
	"Raw Text",
}

// Workbook builds the workbook for reports, one row per report in the given order.
func Workbook(reports []*domain.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, bold)

	row := 2
	for _, r := range reports {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, r.ID)
		if !r.CreatedAt.IsZero() {
			write(2, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		write(3, string(r.Source))
		write(4, string(r.Disease))
		write(5, string(r.Result))
		if r.Biomarkers.Len() > 0 {
			write(6, r.Biomarkers.Joined())
		}
		write(7, r.CtValue)
		if r.Suggestion != nil {
			write(8, *r.Suggestion)
		}
		write(9, r.Symptoms)
		write(10, candidates(r.PossibleDiseases))
		write(11, r.Prediction)
		if r.Confidence != nil {
			write(12, *r.Confidence)
		}
		write(13, truncate(r.RawText, maxCellText))

		row++
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "B", "B", 20)
	_ = f.SetColWidth(SheetName, "C", "E", 16)
	_ = f.SetColWidth(SheetName, "F", "F", 30)
	_ = f.SetColWidth(SheetName, "H", "H", 60)
	_ = f.SetColWidth(SheetName, "M", "M", 80)
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	return f, nil
}

// Write streams the workbook for reports to w.
func Write(w io.Writer, reports []*domain.Report) error {
	f, err := Workbook(reports)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func candidates(list []domain.KeywordCandidate) string {
	parts := make([]string, 0, len(list))
	for _, c := range list {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Disease, c.Count))
	}
	return strings.Join(parts, "; ")
}

// truncate caps s below the per-cell character limit.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
