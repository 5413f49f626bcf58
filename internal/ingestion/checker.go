package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/google/uuid"
)

type memberLookup interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByMemberID(ctx context.Context, memberID string) (domain.Member, error)
}

type registrationLookup interface {
	HasConfirmedRegistration(ctx context.Context, tripID, memberID uuid.UUID) (bool, error)
}

// ExistenceChecker runs the read-only natural-key checks that decide
// whether a validated row may be written.
type ExistenceChecker struct {
	members memberLookup
	trips   registrationLookup
}

// NewExistenceChecker builds a checker over the member and trip stores.
func NewExistenceChecker(members memberLookup, trips registrationLookup) *ExistenceChecker {
	return &ExistenceChecker{members: members, trips: trips}
}

// CheckMember rejects a member row whose email is already registered. The
// returned error is a store failure, not a conflict.
func (c *ExistenceChecker) CheckMember(ctx context.Context, row domain.ImportRow) (domain.ValidationOutcome, error) {
	exists, err := c.members.ExistsByEmail(ctx, normalizeEmail(row.Email))
	if err != nil {
		return domain.ValidationOutcome{}, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return domain.Invalid(MsgEmailExists), nil
	}
	return domain.Valid(), nil
}

// CheckAssignment resolves the row's member and confirms the member holds a
// confirmed registration for tripID.
func (c *ExistenceChecker) CheckAssignment(ctx context.Context, tripID uuid.UUID, row domain.ImportRow) (domain.Member, domain.ValidationOutcome, error) {
	member, err := c.members.GetByMemberID(ctx, strings.TrimSpace(row.MemberID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Member{}, domain.Invalid(MsgMemberNotFound), nil
		}
		return domain.Member{}, domain.ValidationOutcome{}, fmt.Errorf("failed to look up member: %w", err)
	}

	registered, err := c.trips.HasConfirmedRegistration(ctx, tripID, member.ID)
	if err != nil {
		return domain.Member{}, domain.ValidationOutcome{}, fmt.Errorf("failed to check registration: %w", err)
	}
	if !registered {
		return domain.Member{}, domain.Invalid(MsgMemberNotRegistered), nil
	}
	return member, domain.Valid(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
