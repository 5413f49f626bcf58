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

const assignmentColumns = `id, trip_id, member_id, room_number, bus_seat_number, train_seat_number,
	pnr_number, flight_ticket_number, additional_notes, created_at, updated_at`

type tripRepository struct {
	pool *pgxpool.Pool
}

// NewTripRepository wires a trip repository backed by pgxpool.
func NewTripRepository(pool *pgxpool.Pool) TripRepository {
	return &tripRepository{pool: pool}
}

func (r *tripRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	var (
		trip               domain.Trip
		startDate, endDate pgtype.Date
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, title, destination, start_date, end_date FROM trips WHERE id = $1`,
		id,
	).Scan(&trip.ID, &trip.Title, &trip.Destination, &startDate, &endDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, ErrNotFound
		}
		return domain.Trip{}, fmt.Errorf("failed to get trip: %w", err)
	}
	if startDate.Valid {
		trip.StartDate = startDate.Time
	}
	if endDate.Valid {
		trip.EndDate = endDate.Time
	}
	return trip, nil
}

func (r *tripRepository) HasConfirmedRegistration(ctx context.Context, tripID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM trip_registrations
		   WHERE trip_id = $1 AND member_id = $2 AND status = $3
		 )`,
		tripID,
		memberID,
		domain.RegistrationStatusConfirmed,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trip registration: %w", err)
	}
	return exists, nil
}

// UpsertAssignment writes every logistics column, so absent values clear
// whatever was stored before.
func (r *tripRepository) UpsertAssignment(ctx context.Context, assignment domain.TripAssignment) (domain.TripAssignment, error) {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO trip_assignments (id, trip_id, member_id, room_number, bus_seat_number, train_seat_number,
		                               pnr_number, flight_ticket_number, additional_notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (trip_id, member_id) DO UPDATE
		   SET room_number = EXCLUDED.room_number,
		       bus_seat_number = EXCLUDED.bus_seat_number,
		       train_seat_number = EXCLUDED.train_seat_number,
		       pnr_number = EXCLUDED.pnr_number,
		       flight_ticket_number = EXCLUDED.flight_ticket_number,
		       additional_notes = EXCLUDED.additional_notes,
		       updated_at = NOW()
		 RETURNING `+assignmentColumns,
		assignment.ID,
		assignment.TripID,
		assignment.MemberID,
		assignment.RoomNumber,
		assignment.BusSeatNumber,
		assignment.TrainSeatNumber,
		assignment.PNRNumber,
		assignment.FlightTicketNumber,
		assignment.AdditionalNotes,
	)

	stored, err := scanAssignment(row)
	if err != nil {
		return domain.TripAssignment{}, fmt.Errorf("failed to upsert trip assignment: %w", err)
	}
	return stored, nil
}

func (r *tripRepository) ListAssignments(ctx context.Context, tripID uuid.UUID) ([]domain.TripAssignment, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+assignmentColumns+` FROM trip_assignments WHERE trip_id = $1 ORDER BY created_at`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip assignments: %w", err)
	}
	defer rows.Close()

	assignments := []domain.TripAssignment{}
	for rows.Next() {
		assignment, scanErr := scanAssignment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan trip assignment: %w", scanErr)
		}
		assignments = append(assignments, assignment)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate trip assignments: %w", rowsErr)
	}
	return assignments, nil
}

func scanAssignment(row pgx.Row) (domain.TripAssignment, error) {
	var assignment domain.TripAssignment
	err := row.Scan(
		&assignment.ID,
		&assignment.TripID,
		&assignment.MemberID,
		&assignment.RoomNumber,
		&assignment.BusSeatNumber,
		&assignment.TrainSeatNumber,
		&assignment.PNRNumber,
		&assignment.FlightTicketNumber,
		&assignment.AdditionalNotes,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	return assignment, err
}
