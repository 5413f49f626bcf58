package ingestion

import (
	"fmt"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Column keys in template order: required columns first.
var (
	MemberColumns = []string{
		"full_name", "email", "phone", "date_of_birth", "gender", "membership_type", "address",
		"city", "state", "postal_code", "country",
	}
	TripAllocationColumns = []string{
		"member_id",
		"room_number", "bus_seat_number", "train_seat_number", "pnr_number", "flight_ticket_number", "additional_notes",
	}
)

var templateExamples = map[domain.ImportType][][]string{
	domain.ImportTypeMembers: {
		{"Ramesh Kumar", "ramesh.kumar@example.com", "9876543210", "1985-04-12", "male", "premium", "12 MG Road", "Bengaluru", "Karnataka", "560001", "India"},
		{"Priya Sharma", "priya.sharma@example.com", "9123456780", "1990-11-23", "female", "regular", "45 Park Street", "Kolkata", "West Bengal", "700016", "India"},
	},
	domain.ImportTypeTripAllocations: {
		{"P00001", "101", "B-12", "", "", "", "Vegetarian meals"},
		{"R00001", "102", "", "S4-33", "4521789630", "", ""},
	},
}

// TemplateFileName is the download name offered for a template.
func TemplateFileName(importType domain.ImportType) string {
	if importType == domain.ImportTypeMembers {
		return "member_import_template.xlsx"
	}
	return "trip_allocation_template.xlsx"
}

// TemplateColumns lists the column keys an import variant reads.
func TemplateColumns(importType domain.ImportType) ([]string, error) {
	switch importType {
	case domain.ImportTypeMembers:
		return MemberColumns, nil
	case domain.ImportTypeTripAllocations:
		return TripAllocationColumns, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImportType, importType)
	}
}

// BuildTemplate produces a workbook with the header row and two example
// rows that ParseRows reads back unchanged.
func BuildTemplate(importType domain.ImportType) (*excelize.File, error) {
	columns, err := TemplateColumns(importType)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Members"
	if importType == domain.ImportTypeTripAllocations {
		sheet = "Trip Allocations"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name template sheet: %w", err)
	}

	records := append([][]string{columns}, templateExamples[importType]...)
	for idx, record := range records {
		cells := make([]any, len(record))
		for i, value := range record {
			cells[i] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write template row: %w", err)
		}
	}

	return f, nil
}
