package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubMemberRepo struct {
	mu        sync.Mutex
	members   []domain.Member
	lastIDErr error
	existsErr error
	createErr error
	// staleLastID, when set, replaces the stored answer to simulate another
	// writer that has not committed yet.
	staleLastID func(prefix, actual string) string
	lastIDCalls int
	createCalls int
}

func (r *stubMemberRepo) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return domain.Member{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return domain.Member{}, r.createErr
	}
	for _, existing := range r.members {
		if existing.MemberID == member.MemberID {
			return domain.Member{}, fmt.Errorf("failed to create member: %w", &pgconn.PgError{
				Code:           "23505",
				ConstraintName: repository.MemberIDConstraint,
				Message:        `duplicate key value violates unique constraint "members_member_id_key"`,
			})
		}
	}
	member.ID = uuid.New()
	member.CreatedAt = time.Now()
	member.UpdatedAt = member.CreatedAt
	r.members = append(r.members, member)
	return member, nil
}

func (r *stubMemberRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for _, existing := range r.members {
		if strings.EqualFold(existing.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubMemberRepo) LastMemberIDWithPrefix(ctx context.Context, prefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastIDCalls++
	if r.lastIDErr != nil {
		return "", r.lastIDErr
	}
	last := ""
	for _, existing := range r.members {
		if strings.HasPrefix(existing.MemberID, prefix) && existing.MemberID > last {
			last = existing.MemberID
		}
	}
	if r.staleLastID != nil {
		return r.staleLastID(prefix, last), nil
	}
	return last, nil
}

func (r *stubMemberRepo) GetByMemberID(ctx context.Context, memberID string) (domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return domain.Member{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.members {
		if existing.MemberID == memberID {
			return existing, nil
		}
	}
	return domain.Member{}, repository.ErrNotFound
}

func (r *stubMemberRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []domain.Member
	for _, id := range ids {
		for _, existing := range r.members {
			if existing.ID == id {
				found = append(found, existing)
			}
		}
	}
	return found, nil
}

func (r *stubMemberRepo) seed(memberID, email string) domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	member := domain.Member{ID: uuid.New(), MemberID: memberID, Email: email, FullName: "Seeded " + memberID}
	r.members = append(r.members, member)
	return member
}

func (r *stubMemberRepo) memberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.MemberID)
	}
	sort.Strings(ids)
	return ids
}

type assignmentKey struct {
	trip   uuid.UUID
	member uuid.UUID
}

type stubTripRepo struct {
	mu            sync.Mutex
	trips         map[uuid.UUID]domain.Trip
	registrations map[assignmentKey]bool
	assignments   map[assignmentKey]domain.TripAssignment
	upsertErr     error
}

func newStubTripRepo() *stubTripRepo {
	return &stubTripRepo{
		trips:         map[uuid.UUID]domain.Trip{},
		registrations: map[assignmentKey]bool{},
		assignments:   map[assignmentKey]domain.TripAssignment{},
	}
}

func (r *stubTripRepo) addTrip() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.trips[id] = domain.Trip{ID: id, Title: "Char Dham Yatra", Destination: "Uttarakhand"}
	return id
}

func (r *stubTripRepo) confirm(tripID, memberID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[assignmentKey{tripID, memberID}] = true
}

func (r *stubTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return domain.Trip{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.trips[id]
	if !ok {
		return domain.Trip{}, repository.ErrNotFound
	}
	return trip, nil
}

func (r *stubTripRepo) HasConfirmedRegistration(ctx context.Context, tripID, memberID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registrations[assignmentKey{tripID, memberID}], nil
}

func (r *stubTripRepo) UpsertAssignment(ctx context.Context, assignment domain.TripAssignment) (domain.TripAssignment, error) {
	if err := ctx.Err(); err != nil {
		return domain.TripAssignment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return domain.TripAssignment{}, r.upsertErr
	}
	key := assignmentKey{assignment.TripID, assignment.MemberID}
	if existing, ok := r.assignments[key]; ok {
		assignment.ID = existing.ID
		assignment.CreatedAt = existing.CreatedAt
	} else {
		assignment.ID = uuid.New()
		assignment.CreatedAt = time.Now()
	}
	assignment.UpdatedAt = time.Now()
	r.assignments[key] = assignment
	return assignment, nil
}

func (r *stubTripRepo) ListAssignments(ctx context.Context, tripID uuid.UUID) ([]domain.TripAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TripAssignment
	for key, assignment := range r.assignments {
		if key.trip == tripID {
			out = append(out, assignment)
		}
	}
	return out, nil
}

type stubLogRepo struct {
	mu          sync.Mutex
	logs        map[uuid.UUID]domain.ImportLog
	createErr   error
	completeErr error
	createCalls int
}

func newStubLogRepo() *stubLogRepo {
	return &stubLogRepo{logs: map[uuid.UUID]domain.ImportLog{}}
}

func (r *stubLogRepo) Create(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImportLog{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return domain.ImportLog{}, r.createErr
	}
	r.logs[log.ID] = log
	return log, nil
}

func (r *stubLogRepo) Complete(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImportLog{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return domain.ImportLog{}, r.completeErr
	}
	current, ok := r.logs[log.ID]
	if !ok || current.IsFinished() {
		return domain.ImportLog{}, repository.ErrNotFound
	}
	r.logs[log.ID] = log
	return log, nil
}

func (r *stubLogRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImportLog{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return domain.ImportLog{}, repository.ErrNotFound
	}
	return log, nil
}

func (r *stubLogRepo) List(ctx context.Context, filter domain.ImportLogFilter, limit int, offset int) ([]domain.ImportLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ImportLog{}
	for _, log := range r.logs {
		if filter.ImportType != "" && log.ImportType != filter.ImportType {
			continue
		}
		if filter.Status != "" && log.Status != filter.Status {
			continue
		}
		out = append(out, log)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.ImportLog{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubLogRepo) only(t *testing.T) domain.ImportLog {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.logs, 1)
	for _, log := range r.logs {
		return log
	}
	return domain.ImportLog{}
}

var errStoreDown = errors.New("connection refused")

// workbook renders records into an in-memory xlsx file.
func workbook(t *testing.T, records ...[]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for idx, record := range records {
		cells := make([]any, len(record))
		for i, value := range record {
			cells[i] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// datedMemberWorkbook writes one member row whose date of birth is a real
// date cell shown with Excel's default short date format.
func datedMemberWorkbook(t *testing.T, dob time.Time) []byte {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(workbook(t,
		MemberColumns,
		memberRecord("Lakshmi Iyer", "lakshmi@example.com", "female", "honorary"),
	)))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "D2", dob))
	require.NoError(t, f.SetCellStyle("Sheet1", "D2", "D2", style))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func memberRecord(name, email, gender, membership string) []string {
	return []string{name, email, "9876543210", "1990-01-15", gender, membership, "12 Temple Street", "Chennai", "Tamil Nadu", "600001", ""}
}

func allocationRecord(memberID, room, bus string) []string {
	return []string{memberID, room, bus, "", "", "", ""}
}
