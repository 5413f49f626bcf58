package ingestion

import (
	"context"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/sirupsen/logrus"
)

type memberIDSource interface {
	LastMemberIDWithPrefix(ctx context.Context, prefix string) (string, error)
}

// IdentifierAllocator derives the next member identifier for a membership
// category from the highest identifier already stored under its prefix.
type IdentifierAllocator struct {
	members memberIDSource
	logger  logrus.FieldLogger
}

// NewIdentifierAllocator builds an allocator reading from members.
func NewIdentifierAllocator(members memberIDSource, logger logrus.FieldLogger) *IdentifierAllocator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IdentifierAllocator{members: members, logger: logger}
}

// Allocate returns the identifier following the last one stored for the
// category's prefix. A failed lookup allocates the first slot instead of
// failing the row.
func (a *IdentifierAllocator) Allocate(ctx context.Context, membershipType string) string {
	prefix := domain.MemberIDPrefix(membershipType)

	last, err := a.members.LastMemberIDWithPrefix(ctx, prefix)
	if err != nil {
		a.logger.WithError(err).WithField("prefix", prefix).Warn("member id lookup failed, allocating first slot")
		last = ""
	}
	return domain.NextMemberID(prefix, last)
}
