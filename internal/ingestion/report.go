package ingestion

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Report is the operator-facing outcome of a batch.
type Report struct {
	ImportType domain.ImportType     `json:"import_type"`
	Summary    domain.ImportSummary  `json:"summary"`
	Rows       []ReportRow           `json:"rows"`
	Log        *domain.ImportLog     `json:"log,omitempty"`
	Results    []domain.ImportResult `json:"-"`
}

// ReportRow is one line of the per-row results table.
type ReportRow struct {
	Row    int                 `json:"row"`
	Name   string              `json:"name,omitempty"`
	Key    string              `json:"key"`
	Status domain.ResultStatus `json:"status"`
	Detail string              `json:"detail"`
}

// BuildReport folds results into counts and table rows. Detail carries the
// member identifier on success and the rejection reason otherwise.
func BuildReport(importType domain.ImportType, results []domain.ImportResult) Report {
	rows := make([]ReportRow, 0, len(results))
	for _, result := range results {
		line := ReportRow{
			Row:    result.Row,
			Status: result.Status,
			Detail: result.MemberID,
		}
		if result.Status == domain.ResultError {
			line.Detail = result.Error
		}

		switch importType {
		case domain.ImportTypeMembers:
			line.Name = strings.TrimSpace(result.Data.FullName)
			line.Key = strings.TrimSpace(result.Data.Email)
		default:
			line.Key = strings.TrimSpace(result.Data.MemberID)
		}
		rows = append(rows, line)
	}

	return Report{
		ImportType: importType,
		Summary:    domain.Summarize(results),
		Rows:       rows,
		Results:    results,
	}
}

func reportHeaders(importType domain.ImportType) []string {
	if importType == domain.ImportTypeMembers {
		return []string{"Row", "Name", "Email", "Status", "Member ID / Error"}
	}
	return []string{"Row", "Member ID", "Status", "Detail"}
}

func reportCells(importType domain.ImportType, row ReportRow) []any {
	if importType == domain.ImportTypeMembers {
		return []any{row.Row, row.Name, row.Key, string(row.Status), row.Detail}
	}
	return []any{row.Row, row.Key, string(row.Status), row.Detail}
}

// WriteText renders the summary line followed by an aligned results table.
func WriteText(w io.Writer, report Report) error {
	if _, err := fmt.Fprintf(w, "Imported %d of %d rows (%d failed)\n\n",
		report.Summary.Successful, report.Summary.Total, report.Summary.Failed); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(reportHeaders(report.ImportType), "\t")); err != nil {
		return err
	}
	for _, row := range report.Rows {
		cells := reportCells(report.ImportType, row)
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprint(cell)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(parts, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteWorkbook renders the report as a workbook with a results sheet.
func WriteWorkbook(report Report) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name results sheet: %w", err)
	}

	headers := reportHeaders(report.ImportType)
	headerCells := make([]any, len(headers))
	for i, header := range headers {
		headerCells[i] = header
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write results header: %w", err)
	}

	for idx, row := range report.Rows {
		cells := reportCells(report.ImportType, row)
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write results row %d: %w", row.Row, err)
		}
	}

	return f, nil
}
