package domain

// ImportRow is one parsed spreadsheet record. Every field is raw cell text;
// member imports use the identity fields and trip-allocation imports use
// the member identifier and logistics fields.
type ImportRow struct {
	FullName       string `json:"full_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	Gender         string `json:"gender,omitempty"`
	MembershipType string `json:"membership_type,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	Country        string `json:"country,omitempty"`

	MemberID           string `json:"member_id,omitempty"`
	RoomNumber         string `json:"room_number,omitempty"`
	BusSeatNumber      string `json:"bus_seat_number,omitempty"`
	TrainSeatNumber    string `json:"train_seat_number,omitempty"`
	PNRNumber          string `json:"pnr_number,omitempty"`
	FlightTicketNumber string `json:"flight_ticket_number,omitempty"`
	AdditionalNotes    string `json:"additional_notes,omitempty"`
}

// ValidationOutcome is the verdict of validating one row.
type ValidationOutcome struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Valid is the outcome of a row that passed every rule.
func Valid() ValidationOutcome {
	return ValidationOutcome{Valid: true}
}

// Invalid is the outcome of a row that failed the rule described by reason.
func Invalid(reason string) ValidationOutcome {
	return ValidationOutcome{Error: reason}
}

// ResultStatus is the outcome of one imported row.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// ImportResult records what happened to one input row. Row is the
// 1-based spreadsheet row, counting the header.
type ImportResult struct {
	Row      int          `json:"row"`
	Data     ImportRow    `json:"data"`
	Status   ResultStatus `json:"status"`
	MemberID string       `json:"member_id,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Succeeded builds a success result carrying the affected member identifier.
func Succeeded(row int, data ImportRow, memberID string) ImportResult {
	return ImportResult{Row: row, Data: data, Status: ResultSuccess, MemberID: memberID}
}

// Failed builds an error result with the reason the row was rejected.
func Failed(row int, data ImportRow, reason string) ImportResult {
	return ImportResult{Row: row, Data: data, Status: ResultError, Error: reason}
}

// ImportSummary aggregates a list of results.
type ImportSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Summarize folds results into counts. Successful + Failed always equals Total.
func Summarize(results []ImportResult) ImportSummary {
	summary := ImportSummary{Total: len(results)}
	for _, result := range results {
		if result.Status == ResultSuccess {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// RowErrors extracts the failed rows in input order.
func RowErrors(results []ImportResult) []ImportRowError {
	errs := []ImportRowError{}
	for _, result := range results {
		if result.Status == ResultError {
			errs = append(errs, ImportRowError{Row: result.Row, Error: result.Error})
		}
	}
	return errs
}
