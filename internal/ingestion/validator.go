package ingestion

import (
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"
)

// Row rejection messages shown to operators. They are part of the import
// contract and must not change wording.
const (
	MsgFullNameRequired    = "Full name is required"
	MsgEmailInvalid        = "Valid email is required"
	MsgPhoneRequired       = "Phone number is required"
	MsgDateOfBirthRequired = "Date of birth is required"
	MsgGenderInvalid       = "Gender must be male, female, or other"
	MsgMembershipInvalid   = "Membership type must be regular, premium, or honorary"
	MsgAddressRequired     = "Address is required"
	MsgMemberIDRequired    = "Member ID is required"
	MsgAllocationRequired  = "At least one allocation field (room, bus seat, train seat, PNR, flight ticket) is required"
	MsgEmailExists         = "Email already exists"
	MsgMemberNotFound      = "Member not found"
	MsgMemberNotRegistered = "Member not registered for this trip"
)

type rowRule struct {
	failed  func(domain.ImportRow) bool
	message string
}

// Rules run in order and the first failure wins.
var memberRules = []rowRule{
	{func(r domain.ImportRow) bool { return blank(r.FullName) }, MsgFullNameRequired},
	{func(r domain.ImportRow) bool { return blank(r.Email) || !strings.Contains(r.Email, "@") }, MsgEmailInvalid},
	{func(r domain.ImportRow) bool { return blank(r.Phone) }, MsgPhoneRequired},
	{func(r domain.ImportRow) bool { return blank(r.DateOfBirth) }, MsgDateOfBirthRequired},
	{func(r domain.ImportRow) bool { return !validGender(r.Gender) }, MsgGenderInvalid},
	{func(r domain.ImportRow) bool { return !validMembershipType(r.MembershipType) }, MsgMembershipInvalid},
	{func(r domain.ImportRow) bool { return blank(r.Address) }, MsgAddressRequired},
}

var tripAllocationRules = []rowRule{
	{func(r domain.ImportRow) bool { return blank(r.MemberID) }, MsgMemberIDRequired},
	{func(r domain.ImportRow) bool { return !hasAllocation(r) }, MsgAllocationRequired},
}

// ValidateRow checks one row against the rules of its import variant. It
// never touches the store.
func ValidateRow(importType domain.ImportType, row domain.ImportRow) domain.ValidationOutcome {
	switch importType {
	case domain.ImportTypeMembers:
		return applyRules(memberRules, row)
	case domain.ImportTypeTripAllocations:
		return applyRules(tripAllocationRules, row)
	default:
		return domain.Invalid("unsupported import type " + string(importType))
	}
}

func applyRules(rules []rowRule, row domain.ImportRow) domain.ValidationOutcome {
	for _, rule := range rules {
		if rule.failed(row) {
			return domain.Invalid(rule.message)
		}
	}
	return domain.Valid()
}

func hasAllocation(row domain.ImportRow) bool {
	for _, value := range []string{
		row.RoomNumber,
		row.BusSeatNumber,
		row.TrainSeatNumber,
		row.PNRNumber,
		row.FlightTicketNumber,
	} {
		if !blank(value) {
			return true
		}
	}
	return false
}

func validGender(value string) bool {
	_, ok := domain.ParseGender(normalizeEnum(value))
	return ok
}

func validMembershipType(value string) bool {
	_, ok := domain.ParseMembershipType(normalizeEnum(value))
	return ok
}

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func normalizeEnum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
