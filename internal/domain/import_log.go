package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportType enumerates the bulk import variants.
type ImportType string

const (
	ImportTypeMembers         ImportType = "members"
	ImportTypeTripAllocations ImportType = "trip_allocations"
)

// ImportStatus captures lifecycle state for an import log.
type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusPartial    ImportStatus = "partial"
)

// ImportRowError is one failed row as persisted on the import log.
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportLog is the server-side audit record of one batch.
type ImportLog struct {
	ID             uuid.UUID        `json:"id"`
	ImportType     ImportType       `json:"import_type"`
	FileName       string           `json:"file_name"`
	TripID         *uuid.UUID       `json:"trip_id,omitempty"`
	TotalRows      int              `json:"total_rows"`
	SuccessfulRows int              `json:"successful_rows"`
	FailedRows     int              `json:"failed_rows"`
	Status         ImportStatus     `json:"status"`
	ErrorDetails   []ImportRowError `json:"error_details"`
	InitiatedBy    *uuid.UUID       `json:"initiated_by,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewImportLog opens a log in the processing state.
func NewImportLog(importType ImportType, fileName string, totalRows int, tripID, initiatedBy *uuid.UUID) ImportLog {
	now := time.Now()
	return ImportLog{
		ID:           uuid.New(),
		ImportType:   importType,
		FileName:     fileName,
		TripID:       tripID,
		TotalRows:    totalRows,
		Status:       ImportStatusProcessing,
		ErrorDetails: []ImportRowError{},
		InitiatedBy:  initiatedBy,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Completed returns the log closed with the given counts. The status is
// completed when nothing failed and partial otherwise.
func (l ImportLog) Completed(summary ImportSummary, rowErrors []ImportRowError, at time.Time) ImportLog {
	l.SuccessfulRows = summary.Successful
	l.FailedRows = summary.Failed
	l.Status = ImportStatusCompleted
	if summary.Failed > 0 {
		l.Status = ImportStatusPartial
	}
	if rowErrors == nil {
		rowErrors = []ImportRowError{}
	}
	l.ErrorDetails = rowErrors
	l.CompletedAt = &at
	l.UpdatedAt = at
	return l
}

// IsFinished reports whether the log has left the processing state.
func (l ImportLog) IsFinished() bool {
	return l.Status != ImportStatusProcessing
}

// ErrorDetailsToJSON marshals the per-row errors into the JSONB layout stored in Postgres.
func (l ImportLog) ErrorDetailsToJSON() (json.RawMessage, error) {
	details := l.ErrorDetails
	if details == nil {
		details = []ImportRowError{}
	}
	return json.Marshal(details)
}

// ImportLogFilter narrows import log listings.
type ImportLogFilter struct {
	ImportType ImportType
	Status     ImportStatus
}
