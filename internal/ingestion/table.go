package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/xuri/excelize/v2"
)

var supportedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

type tableData struct {
	headers []string
	rows    [][]string
	// raw holds the unformatted cell values aligned with rows
	raw [][]string
}

// IsSupportedFile reports whether fileName has a spreadsheet extension the
// importer accepts.
func IsSupportedFile(fileName string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// ParseRows reads the first sheet of a workbook into import rows. The first
// non-empty row is the header; blank rows are skipped.
func ParseRows(fileName string, payload []byte) ([]domain.ImportRow, error) {
	if !IsSupportedFile(fileName) {
		return nil, ErrUnsupportedFormat
	}
	if len(payload) == 0 {
		return nil, ErrEmptyFile
	}

	table, err := parseExcel(payload)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ImportRow, 0, len(table.rows))
	for idx, record := range table.rows {
		var raw []string
		if idx < len(table.raw) {
			raw = table.raw[idx]
		}
		rows = append(rows, toImportRow(table.headers, record, raw))
	}
	return rows, nil
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from spreadsheet: %w", err)
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read raw values from spreadsheet: %w", err)
	}

	return normalizeTable(rows, raw), nil
}

func normalizeTable(records, raw [][]string) tableData {
	var headerRow []string
	var dataRows, rawRows [][]string

	for idx, row := range records {
		if isBlankRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
		var rawRow []string
		if idx < len(raw) {
			rawRow = raw[idx]
		}
		rawRows = append(rawRows, rawRow)
	}

	headers := sanitizeHeaders(headerRow)
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
		rawRows[i] = padRow(rawRows[i], len(headers))
	}

	return tableData{
		headers: headers,
		rows:    dataRows,
		raw:     rawRows,
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders turns labels such as "Full Name" or "postal-code" into
// the snake_case column keys used by the templates.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		headers[idx] = strings.Trim(name, "_")
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func toImportRow(headers []string, record, raw []string) domain.ImportRow {
	var row domain.ImportRow
	for idx, header := range headers {
		if idx >= len(record) {
			break
		}
		field := rowField(&row, header)
		if field == nil || *field != "" {
			continue
		}
		value := record[idx]
		if header == "date_of_birth" && idx < len(raw) {
			value = dateCell(value, raw[idx])
		}
		*field = value
	}
	return row
}

// dateCell resolves a date-formatted cell from its serial number. The
// displayed text of such cells carries two-digit years.
func dateCell(display, raw string) string {
	if raw == "" || raw == display {
		return display
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return display
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return display
	}
	return ts.Format(isoDate)
}

// rowField maps a column key to the ImportRow field it fills. Unknown
// columns are ignored.
func rowField(row *domain.ImportRow, column string) *string {
	switch column {
	case "full_name":
		return &row.FullName
	case "email":
		return &row.Email
	case "phone":
		return &row.Phone
	case "date_of_birth":
		return &row.DateOfBirth
	case "gender":
		return &row.Gender
	case "membership_type":
		return &row.MembershipType
	case "address":
		return &row.Address
	case "city":
		return &row.City
	case "state":
		return &row.State
	case "postal_code":
		return &row.PostalCode
	case "country":
		return &row.Country
	case "member_id":
		return &row.MemberID
	case "room_number":
		return &row.RoomNumber
	case "bus_seat_number":
		return &row.BusSeatNumber
	case "train_seat_number":
		return &row.TrainSeatNumber
	case "pnr_number":
		return &row.PNRNumber
	case "flight_ticket_number":
		return &row.FlightTicketNumber
	case "additional_notes":
		return &row.AdditionalNotes
	default:
		return nil
	}
}
