package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const importLogColumns = `id, import_type, file_name, trip_id, total_rows, successful_rows, failed_rows,
	status, error_details, initiated_by, started_at, completed_at, created_at, updated_at`

type importLogRepository struct {
	pool *pgxpool.Pool
}

// NewImportLogRepository wires a repository backed by pgxpool.
func NewImportLogRepository(pool *pgxpool.Pool) ImportLogRepository {
	return &importLogRepository{pool: pool}
}

func (r *importLogRepository) Create(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error) {
	if r.pool == nil {
		return domain.ImportLog{}, fmt.Errorf("import log repository not initialized")
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	details, err := log.ErrorDetailsToJSON()
	if err != nil {
		return domain.ImportLog{}, fmt.Errorf("failed to marshal import errors: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO import_logs (id, import_type, file_name, trip_id, total_rows, successful_rows, failed_rows,
		                          status, error_details, initiated_by, started_at)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $8, $9)
		 RETURNING `+importLogColumns,
		log.ID,
		string(log.ImportType),
		log.FileName,
		log.TripID,
		log.TotalRows,
		string(log.Status),
		details,
		log.InitiatedBy,
		log.StartedAt,
	)

	created, err := scanImportLog(row)
	if err != nil {
		return domain.ImportLog{}, fmt.Errorf("failed to record import log: %w", err)
	}
	return created, nil
}

// Complete writes the final counts. Only logs still processing are updated
// so a finished log is never overwritten.
func (r *importLogRepository) Complete(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error) {
	if r.pool == nil {
		return domain.ImportLog{}, fmt.Errorf("import log repository not initialized")
	}

	details, err := log.ErrorDetailsToJSON()
	if err != nil {
		return domain.ImportLog{}, fmt.Errorf("failed to marshal import errors: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`UPDATE import_logs
		    SET successful_rows = $2,
		        failed_rows = $3,
		        status = $4,
		        error_details = $5,
		        completed_at = $6,
		        updated_at = NOW()
		  WHERE id = $1 AND status = 'processing'
		 RETURNING `+importLogColumns,
		log.ID,
		log.SuccessfulRows,
		log.FailedRows,
		string(log.Status),
		details,
		log.CompletedAt,
	)

	updated, err := scanImportLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportLog{}, ErrNotFound
		}
		return domain.ImportLog{}, fmt.Errorf("failed to complete import log: %w", err)
	}
	return updated, nil
}

func (r *importLogRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportLog, error) {
	if r.pool == nil {
		return domain.ImportLog{}, fmt.Errorf("import log repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+importLogColumns+` FROM import_logs WHERE id = $1`, id)
	log, err := scanImportLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportLog{}, ErrNotFound
		}
		return domain.ImportLog{}, fmt.Errorf("failed to get import log: %w", err)
	}
	return log, nil
}

func (r *importLogRepository) List(ctx context.Context, filter domain.ImportLogFilter, limit int, offset int) ([]domain.ImportLog, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var (
		clauses []string
		args    []any
	)
	if filter.ImportType != "" {
		args = append(args, string(filter.ImportType))
		clauses = append(clauses, fmt.Sprintf("import_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + importLogColumns + ` FROM import_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportLog{}
	for rows.Next() {
		log, scanErr := scanImportLog(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}
		logs = append(logs, log)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}

	return logs, nil
}

func scanImportLog(row pgx.Row) (domain.ImportLog, error) {
	var (
		log         domain.ImportLog
		importType  string
		status      string
		details     []byte
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&log.ID,
		&importType,
		&log.FileName,
		&log.TripID,
		&log.TotalRows,
		&log.SuccessfulRows,
		&log.FailedRows,
		&status,
		&details,
		&log.InitiatedBy,
		&log.StartedAt,
		&completedAt,
		&log.CreatedAt,
		&log.UpdatedAt,
	); err != nil {
		return domain.ImportLog{}, err
	}

	log.ImportType = domain.ImportType(importType)
	log.Status = domain.ImportStatus(status)
	log.ErrorDetails = []domain.ImportRowError{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &log.ErrorDetails); err != nil {
			return domain.ImportLog{}, fmt.Errorf("failed to decode import errors: %w", err)
		}
	}
	if completedAt.Valid {
		ts := completedAt.Time
		log.CompletedAt = &ts
	}
	return log, nil
}
