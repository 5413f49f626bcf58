package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MembershipType is the category a member belongs to
type MembershipType string

const (
	MembershipRegular  MembershipType = "regular"
	MembershipPremium  MembershipType = "premium"
	MembershipHonorary MembershipType = "honorary"
)

// Gender values accepted on member records
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// MemberStatus tracks whether a member is currently active
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

const (
	// DefaultCountry is applied to imported members without a country column.
	DefaultCountry = "India"
	// DefaultPhotoURL is the placeholder photo stored for imported members.
	DefaultPhotoURL = "https://placehold.co/400x400?text=Member"

	memberIDDigits = 5
)

// Member represents a registered member of the trust
type Member struct {
	ID             uuid.UUID      `json:"id"`
	MemberID       string         `json:"member_id"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	DateOfBirth    string         `json:"date_of_birth"`
	Gender         Gender         `json:"gender"`
	MembershipType MembershipType `json:"membership_type"`
	Address        string         `json:"address"`
	City           string         `json:"city,omitempty"`
	State          string         `json:"state,omitempty"`
	PostalCode     string         `json:"postal_code,omitempty"`
	Country        string         `json:"country"`
	Status         MemberStatus   `json:"status"`
	PhotoURL       string         `json:"photo_url"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// WithMemberID returns a copy of the member carrying the given identifier
func (m Member) WithMemberID(memberID string) Member {
	m.MemberID = memberID
	return m
}

// MemberIDPrefix maps a membership category to its identifier prefix.
// Unknown categories fall back to the honorary prefix.
func MemberIDPrefix(membershipType string) string {
	switch MembershipType(strings.ToLower(strings.TrimSpace(membershipType))) {
	case MembershipPremium:
		return "P"
	case MembershipRegular:
		return "R"
	default:
		return "H"
	}
}

// FormatMemberID joins a prefix and a sequence number into a member identifier.
func FormatMemberID(prefix string, sequence int) string {
	return fmt.Sprintf("%s%0*d", prefix, memberIDDigits, sequence)
}

// NextMemberID derives the identifier following last for prefix. An empty
// or unparseable last identifier starts the sequence at 1.
func NextMemberID(prefix, last string) string {
	if last == "" || !strings.HasPrefix(last, prefix) {
		return FormatMemberID(prefix, 1)
	}
	sequence, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil || sequence < 0 {
		return FormatMemberID(prefix, 1)
	}
	return FormatMemberID(prefix, sequence+1)
}

// ParseGender reports whether value is an accepted gender
func ParseGender(value string) (Gender, bool) {
	switch g := Gender(value); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, true
	}
	return "", false
}

// ParseMembershipType reports whether value is an accepted membership category
func ParseMembershipType(value string) (MembershipType, bool) {
	switch t := MembershipType(value); t {
	case MembershipRegular, MembershipPremium, MembershipHonorary:
		return t, true
	}
	return "", false
}
