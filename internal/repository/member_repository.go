package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memberColumns = `id, member_id, full_name, email, phone, to_char(date_of_birth, 'YYYY-MM-DD'),
	gender, membership_type, address, city, state, postal_code, country, status, photo_url, created_at, updated_at`

// memberRepository implements MemberRepository interface
type memberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

// Create inserts a new member. The date of birth is cast by Postgres so a
// malformed value surfaces as a store error.
func (r *memberRepository) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO members (id, member_id, full_name, email, phone, date_of_birth, gender, membership_type,
		                      address, city, state, postal_code, country, status, photo_url)
		 VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING `+memberColumns,
		member.ID,
		member.MemberID,
		member.FullName,
		member.Email,
		member.Phone,
		member.DateOfBirth,
		string(member.Gender),
		string(member.MembershipType),
		member.Address,
		nullableText(member.City),
		nullableText(member.State),
		nullableText(member.PostalCode),
		member.Country,
		string(member.Status),
		member.PhotoURL,
	)

	created, err := scanMember(row)
	if err != nil {
		return domain.Member{}, fmt.Errorf("failed to create member: %w", err)
	}
	return created, nil
}

func (r *memberRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member email: %w", err)
	}
	return exists, nil
}

func (r *memberRepository) LastMemberIDWithPrefix(ctx context.Context, prefix string) (string, error) {
	var memberID string
	err := r.pool.QueryRow(
		ctx,
		`SELECT member_id FROM members WHERE member_id LIKE $1 || '%' ORDER BY member_id DESC LIMIT 1`,
		prefix,
	).Scan(&memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up last member id: %w", err)
	}
	return memberID, nil
}

func (r *memberRepository) GetByMemberID(ctx context.Context, memberID string) (domain.Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE member_id = $1`, memberID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Member{}, ErrNotFound
		}
		return domain.Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetByIDs retrieves multiple members by their primary keys.
func (r *memberRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Member, error) {
	if len(ids) == 0 {
		return []domain.Member{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get members by IDs: %w", err)
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		member, scanErr := scanMember(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan member: %w", scanErr)
		}
		members = append(members, member)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", rowsErr)
	}
	return members, nil
}

func scanMember(row pgx.Row) (domain.Member, error) {
	var (
		member                  domain.Member
		dateOfBirth             pgtype.Text
		gender, membershipType  string
		city, state, postalCode pgtype.Text
		status                  string
	)
	if err := row.Scan(
		&member.ID,
		&member.MemberID,
		&member.FullName,
		&member.Email,
		&member.Phone,
		&dateOfBirth,
		&gender,
		&membershipType,
		&member.Address,
		&city,
		&state,
		&postalCode,
		&member.Country,
		&status,
		&member.PhotoURL,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return domain.Member{}, err
	}

	member.DateOfBirth = dateOfBirth.String
	member.Gender = domain.Gender(gender)
	member.MembershipType = domain.MembershipType(membershipType)
	member.City = city.String
	member.State = state.String
	member.PostalCode = postalCode.String
	member.Status = domain.MemberStatus(status)
	return member, nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
