package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatusConfirmed marks a trip registration that holds a seat
const RegistrationStatusConfirmed = "confirmed"

// Trip is an organised journey members register for
type Trip struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// TripAssignment holds the logistics allocated to one member on one trip.
// Every optional field is written on upsert, so nil clears a stored value.
type TripAssignment struct {
	ID                 uuid.UUID `json:"id"`
	TripID             uuid.UUID `json:"trip_id"`
	MemberID           uuid.UUID `json:"member_id"`
	RoomNumber         *string   `json:"room_number"`
	BusSeatNumber      *string   `json:"bus_seat_number"`
	TrainSeatNumber    *string   `json:"train_seat_number"`
	PNRNumber          *string   `json:"pnr_number"`
	FlightTicketNumber *string   `json:"flight_ticket_number"`
	AdditionalNotes    *string   `json:"additional_notes"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TripAssignmentView pairs an assignment with the member it belongs to
type TripAssignmentView struct {
	TripAssignment
	Member *Member `json:"member,omitempty"`
}
