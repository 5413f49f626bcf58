package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/metrics"
	"github.com/rpattn/memberdesk/internal/progress"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not a workbook.
	ErrUnsupportedFormat = errors.New("Please upload a valid Excel file (.xlsx or .xls)")
	// ErrEmptyFile is returned when a workbook holds no data rows.
	ErrEmptyFile = errors.New("Excel file is empty")
	// ErrTripNotFound is returned when a trip-allocation import targets an unknown trip.
	ErrTripNotFound = errors.New("trip not found")
	// ErrUnknownImportType is returned for an import variant the service does not handle.
	ErrUnknownImportType = errors.New("unknown import type")
	// ErrCreateLog wraps failures to open the import log; no row has been touched.
	ErrCreateLog = errors.New("failed to create import log")
	// ErrCompleteLog is returned when rows were processed but the import log
	// could not be closed; the log stays in the processing state.
	ErrCompleteLog = errors.New("failed to complete import log")
	// ErrBatchAlreadyRun is returned when Run is called twice on one batch.
	ErrBatchAlreadyRun = errors.New("import batch already run")
)

const defaultAllocationAttempts = 3

// ProgressFunc observes a batch after every row.
type ProgressFunc func(processed, total, percent int)

// Service drives spreadsheet imports of members and trip allocations.
type Service struct {
	members repository.MemberRepository
	trips   repository.TripRepository
	logs    repository.ImportLogRepository

	allocator *IdentifierAllocator
	checker   *ExistenceChecker
	executor  *UpsertExecutor

	tracker            progress.Tracker
	logger             logrus.FieldLogger
	allocationAttempts int
	defaults           MemberDefaults
	now                func() time.Time

	running sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for batch and row diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracker publishes progress snapshots to tracker.
func WithTracker(tracker progress.Tracker) Option {
	return func(s *Service) { s.tracker = tracker }
}

// WithMemberDefaults overrides the country and photo stored on imported members.
func WithMemberDefaults(defaults MemberDefaults) Option {
	return func(s *Service) { s.defaults = defaults }
}

// WithAllocationAttempts bounds how often a member insert is retried after
// losing a member identifier race to another writer.
func WithAllocationAttempts(attempts int) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.allocationAttempts = attempts
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new import service.
func NewService(
	members repository.MemberRepository,
	trips repository.TripRepository,
	logs repository.ImportLogRepository,
	opts ...Option,
) *Service {
	s := &Service{
		members:            members,
		trips:              trips,
		logs:               logs,
		logger:             logrus.StandardLogger(),
		allocationAttempts: defaultAllocationAttempts,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.allocator = NewIdentifierAllocator(members, s.logger)
	s.checker = NewExistenceChecker(members, trips)
	s.executor = NewUpsertExecutor(members, trips, s.defaults)
	return s
}

// Request describes one uploaded spreadsheet.
type Request struct {
	Type        domain.ImportType
	FileName    string
	TripID      uuid.UUID
	InitiatedBy *uuid.UUID
	Data        io.Reader
}

// Batch is a parsed upload with its import log already opened.
type Batch struct {
	service *Service
	req     Request
	rows    []domain.ImportRow
	log     domain.ImportLog
	logger  logrus.FieldLogger
	ran     atomic.Bool
}

// Log returns the import log as created for the batch.
func (b *Batch) Log() domain.ImportLog {
	return b.log
}

// TotalRows is the number of data rows that will be processed.
func (b *Batch) TotalRows() int {
	return len(b.rows)
}

// Begin parses the upload and opens its import log. Every error returned
// here is batch-fatal and no row has been processed.
func (s *Service) Begin(ctx context.Context, req Request) (*Batch, error) {
	if req.Type != domain.ImportTypeMembers && req.Type != domain.ImportTypeTripAllocations {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImportType, req.Type)
	}
	if !IsSupportedFile(req.FileName) {
		return nil, ErrUnsupportedFormat
	}
	if req.Data == nil {
		return nil, ErrEmptyFile
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	rows, err := ParseRows(req.FileName, payload)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	var tripID *uuid.UUID
	if req.Type == domain.ImportTypeTripAllocations {
		if req.TripID == uuid.Nil {
			return nil, ErrTripNotFound
		}
		if _, err := s.trips.GetByID(ctx, req.TripID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTripNotFound
			}
			return nil, fmt.Errorf("failed to load trip: %w", err)
		}
		id := req.TripID
		tripID = &id
	}

	log := domain.NewImportLog(req.Type, req.FileName, len(rows), tripID, req.InitiatedBy)
	created, err := s.logs.Create(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateLog, err)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"import_log_id": created.ID,
		"import_type":   created.ImportType,
		"file_name":     created.FileName,
	})
	logger.WithField("total_rows", len(rows)).Info("import batch opened")

	return &Batch{
		service: s,
		req:     req,
		rows:    rows,
		log:     created,
		logger:  logger,
	}, nil
}

// Import runs a whole batch synchronously.
func (s *Service) Import(ctx context.Context, req Request, onProgress ProgressFunc) (Report, error) {
	batch, err := s.Begin(ctx, req)
	if err != nil {
		return Report{}, err
	}
	return batch.Run(ctx, onProgress)
}

// Start opens the batch and processes its rows in the background. Progress
// and results are available through the tracker under the returned log id.
func (s *Service) Start(ctx context.Context, req Request) (domain.ImportLog, error) {
	batch, err := s.Begin(ctx, req)
	if err != nil {
		return domain.ImportLog{}, err
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		if _, err := batch.Run(ctx, nil); err != nil {
			batch.logger.WithError(err).Error("background import failed")
		}
	}()
	return batch.Log(), nil
}

// Wait blocks until every batch started with Start has finished.
func (s *Service) Wait() {
	s.running.Wait()
}

// Run processes every row in input order and closes the import log. Row
// failures are recorded in the report and never stop the batch; the error
// is only set when the log itself could not be completed. Cancelling ctx
// does not stop a batch once it runs; its values are kept.
func (b *Batch) Run(ctx context.Context, onProgress ProgressFunc) (Report, error) {
	if !b.ran.CompareAndSwap(false, true) {
		return Report{}, ErrBatchAlreadyRun
	}
	ctx = context.WithoutCancel(ctx)

	s := b.service
	importType := string(b.req.Type)
	started := s.now()
	total := len(b.rows)
	metrics.BatchStarted(importType)

	results := make([]domain.ImportResult, 0, total)
	for idx, row := range b.rows {
		rowNumber := idx + 2
		result := b.processRow(ctx, rowNumber, row)
		results = append(results, result)

		metrics.RowProcessed(importType, string(result.Status))
		if result.Status == domain.ResultError {
			b.logger.WithFields(logrus.Fields{"row": rowNumber, "reason": result.Error}).Debug("import row rejected")
		}
		b.reportProgress(ctx, idx+1, total, onProgress)
	}

	summary := domain.Summarize(results)
	completed := b.log.Completed(summary, domain.RowErrors(results), s.now())

	report := BuildReport(b.req.Type, results)
	if s.tracker != nil {
		if err := s.tracker.Finish(ctx, b.log.ID, results); err != nil {
			b.logger.WithError(err).Warn("failed to publish import results")
		}
	}

	stored, err := s.logs.Complete(ctx, completed)
	metrics.BatchFinished(importType, string(completed.Status), s.now().Sub(started))
	if err != nil {
		report.Log = &completed
		b.logger.WithError(err).Error("failed to complete import log")
		return report, fmt.Errorf("%w: %v", ErrCompleteLog, err)
	}
	report.Log = &stored

	b.logger.WithFields(logrus.Fields{
		"successful_rows": summary.Successful,
		"failed_rows":     summary.Failed,
		"status":          stored.Status,
	}).Info("import batch completed")
	return report, nil
}

func (b *Batch) reportProgress(ctx context.Context, processed, total int, onProgress ProgressFunc) {
	if b.service.tracker != nil {
		if err := b.service.tracker.Update(ctx, b.log.ID, processed, total); err != nil {
			b.logger.WithError(err).Debug("failed to publish import progress")
		}
	}
	if onProgress != nil {
		onProgress(processed, total, progress.Percent(processed, total))
	}
}

func (b *Batch) processRow(ctx context.Context, rowNumber int, row domain.ImportRow) domain.ImportResult {
	if outcome := ValidateRow(b.req.Type, row); !outcome.Valid {
		return domain.Failed(rowNumber, row, outcome.Error)
	}

	switch b.req.Type {
	case domain.ImportTypeMembers:
		return b.importMember(ctx, rowNumber, row)
	default:
		return b.importAssignment(ctx, rowNumber, row)
	}
}

func (b *Batch) importMember(ctx context.Context, rowNumber int, row domain.ImportRow) domain.ImportResult {
	s := b.service

	outcome, err := s.checker.CheckMember(ctx, row)
	if err != nil {
		return domain.Failed(rowNumber, row, storeErrorMessage(err))
	}
	if !outcome.Valid {
		return domain.Failed(rowNumber, row, outcome.Error)
	}

	for attempt := 1; ; attempt++ {
		memberID := s.allocator.Allocate(ctx, row.MembershipType)
		created, err := s.executor.CreateMember(ctx, memberID, row)
		if err == nil {
			return domain.Succeeded(rowNumber, row, created.MemberID)
		}
		if repository.IsUniqueViolation(err, repository.MemberIDConstraint) && attempt < s.allocationAttempts {
			b.logger.WithFields(logrus.Fields{"row": rowNumber, "member_id": memberID, "attempt": attempt}).
				Warn("member id taken by another writer, reallocating")
			continue
		}
		return domain.Failed(rowNumber, row, storeErrorMessage(err))
	}
}

func (b *Batch) importAssignment(ctx context.Context, rowNumber int, row domain.ImportRow) domain.ImportResult {
	s := b.service

	member, outcome, err := s.checker.CheckAssignment(ctx, b.req.TripID, row)
	if err != nil {
		return domain.Failed(rowNumber, row, storeErrorMessage(err))
	}
	if !outcome.Valid {
		return domain.Failed(rowNumber, row, outcome.Error)
	}

	if _, err := s.executor.UpsertAssignment(ctx, b.req.TripID, member.ID, row); err != nil {
		return domain.Failed(rowNumber, row, storeErrorMessage(err))
	}
	return domain.Succeeded(rowNumber, row, member.MemberID)
}

// storeErrorMessage reports the database's own message when there is one.
func storeErrorMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}

// GetLog returns one import log.
func (s *Service) GetLog(ctx context.Context, id uuid.UUID) (domain.ImportLog, error) {
	return s.logs.GetByID(ctx, id)
}

// ListLogs returns import logs, newest first.
func (s *Service) ListLogs(ctx context.Context, filter domain.ImportLogFilter, limit, offset int) ([]domain.ImportLog, error) {
	return s.logs.List(ctx, filter, limit, offset)
}

// Progress returns the live snapshot of a batch. When the tracker no longer
// holds one, the snapshot is rebuilt from the stored log without results.
func (s *Service) Progress(ctx context.Context, id uuid.UUID) (progress.Snapshot, error) {
	if s.tracker != nil {
		snapshot, err := s.tracker.Get(ctx, id)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, progress.ErrNotFound) {
			return progress.Snapshot{}, err
		}
	}

	log, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return progress.Snapshot{}, err
	}
	snapshot := progress.Snapshot{
		LogID:     log.ID,
		Total:     log.TotalRows,
		UpdatedAt: log.UpdatedAt,
	}
	if log.IsFinished() {
		summary := domain.ImportSummary{
			Total:      log.TotalRows,
			Successful: log.SuccessfulRows,
			Failed:     log.FailedRows,
		}
		snapshot.Processed = log.TotalRows
		snapshot.Percent = 100
		snapshot.Done = true
		snapshot.Summary = &summary
	}
	return snapshot, nil
}
