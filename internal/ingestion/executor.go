package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
)

const isoDate = "2006-01-02"

// Text dates matching one of these layouts are stored as ISO dates, the rest
// is passed through. Slash and dash dates are day first.
var dateLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
}

type memberWriter interface {
	Create(ctx context.Context, member domain.Member) (domain.Member, error)
}

type assignmentWriter interface {
	UpsertAssignment(ctx context.Context, assignment domain.TripAssignment) (domain.TripAssignment, error)
}

// MemberDefaults are applied to imported members that do not carry the value.
type MemberDefaults struct {
	Country  string
	PhotoURL string
}

// UpsertExecutor performs the single write for a validated row.
type UpsertExecutor struct {
	members  memberWriter
	trips    assignmentWriter
	defaults MemberDefaults
}

// NewUpsertExecutor builds an executor. Empty defaults fall back to the
// domain defaults.
func NewUpsertExecutor(members memberWriter, trips assignmentWriter, defaults MemberDefaults) *UpsertExecutor {
	if strings.TrimSpace(defaults.Country) == "" {
		defaults.Country = domain.DefaultCountry
	}
	if strings.TrimSpace(defaults.PhotoURL) == "" {
		defaults.PhotoURL = domain.DefaultPhotoURL
	}
	return &UpsertExecutor{members: members, trips: trips, defaults: defaults}
}

// CreateMember inserts a new member under memberID.
func (e *UpsertExecutor) CreateMember(ctx context.Context, memberID string, row domain.ImportRow) (domain.Member, error) {
	return e.members.Create(ctx, e.buildMember(memberID, row))
}

// UpsertAssignment replaces the whole assignment of member on trip.
func (e *UpsertExecutor) UpsertAssignment(ctx context.Context, tripID, memberID uuid.UUID, row domain.ImportRow) (domain.TripAssignment, error) {
	return e.trips.UpsertAssignment(ctx, buildAssignment(tripID, memberID, row))
}

func (e *UpsertExecutor) buildMember(memberID string, row domain.ImportRow) domain.Member {
	country := strings.TrimSpace(row.Country)
	if country == "" {
		country = e.defaults.Country
	}

	member := domain.Member{
		FullName:       strings.TrimSpace(row.FullName),
		Email:          normalizeEmail(row.Email),
		Phone:          strings.TrimSpace(row.Phone),
		DateOfBirth:    normalizeDate(row.DateOfBirth),
		Gender:         domain.Gender(normalizeEnum(row.Gender)),
		MembershipType: domain.MembershipType(normalizeEnum(row.MembershipType)),
		Address:        strings.TrimSpace(row.Address),
		City:           strings.TrimSpace(row.City),
		State:          strings.TrimSpace(row.State),
		PostalCode:     strings.TrimSpace(row.PostalCode),
		Country:        country,
		Status:         domain.MemberStatusActive,
		PhotoURL:       e.defaults.PhotoURL,
	}
	return member.WithMemberID(memberID)
}

func buildAssignment(tripID, memberID uuid.UUID, row domain.ImportRow) domain.TripAssignment {
	return domain.TripAssignment{
		TripID:             tripID,
		MemberID:           memberID,
		RoomNumber:         optional(row.RoomNumber),
		BusSeatNumber:      optional(row.BusSeatNumber),
		TrainSeatNumber:    optional(row.TrainSeatNumber),
		PNRNumber:          optional(row.PNRNumber),
		FlightTicketNumber: optional(row.FlightTicketNumber),
		AdditionalNotes:    optional(row.AdditionalNotes),
	}
}

// optional maps blank cells to nil so the upsert clears stored values.
func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeDate(value string) string {
	trimmed := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format(isoDate)
		}
	}
	return trimmed
}
