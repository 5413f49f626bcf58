package repository

import (
	"context"
	"errors"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a single requested row does not exist.
var ErrNotFound = errors.New("not found")

const uniqueViolationCode = "23505"

// MemberIDConstraint is the unique constraint guarding member identifiers.
const MemberIDConstraint = "members_member_id_key"

// MemberRepository defines the interface for member operations
type MemberRepository interface {
	Create(ctx context.Context, member domain.Member) (domain.Member, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// LastMemberIDWithPrefix returns the lexicographically greatest member
	// identifier starting with prefix, or "" when none exists.
	LastMemberIDWithPrefix(ctx context.Context, prefix string) (string, error)
	GetByMemberID(ctx context.Context, memberID string) (domain.Member, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Member, error)
}

// TripRepository defines trip lookups and assignment writes
type TripRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	HasConfirmedRegistration(ctx context.Context, tripID, memberID uuid.UUID) (bool, error)
	// UpsertAssignment replaces the full assignment keyed by (trip, member).
	UpsertAssignment(ctx context.Context, assignment domain.TripAssignment) (domain.TripAssignment, error)
	ListAssignments(ctx context.Context, tripID uuid.UUID) ([]domain.TripAssignment, error)
}

// ImportLogRepository persists the audit record of each batch.
type ImportLogRepository interface {
	Create(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error)
	Complete(ctx context.Context, log domain.ImportLog) (domain.ImportLog, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportLog, error)
	List(ctx context.Context, filter domain.ImportLogFilter, limit int, offset int) ([]domain.ImportLog, error)
}

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally restricted to one constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
