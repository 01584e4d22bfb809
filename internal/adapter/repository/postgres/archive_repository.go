package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

// ArchiveRepository is write-once: rows are inserted and only ever touched
// again to clear the user reference.
type ArchiveRepository struct {
	db DBTX
}

func NewArchiveRepository(db DBTX) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

const archiveColumns = `
	a.id, a.route_id, r.pickup_location, r.drop_location, a.vehicle_type, a.travel_date,
	a.number_of_passengers, a.user_id, a.unit_price, a.reason, a.note, a.created_at, a.archived_at
`

func scanArchived(row rowScanner) (*domain.ArchivedBooking, error) {
	var (
		a           domain.ArchivedBooking
		vehicleType string
		reason      string
		userID      sql.NullInt64
	)

	err := row.Scan(
		&a.ID,
		&a.RouteID,
		&a.Route.Pickup,
		&a.Route.Drop,
		&vehicleType,
		&a.TravelDate,
		&a.PassengerCount,
		&userID,
		&a.UnitPrice,
		&reason,
		&a.Note,
		&a.CreatedAt,
		&a.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Category = domain.Category(vehicleType)
	a.Reason = domain.ArchiveReason(reason)
	a.TravelDate = domain.CivilDate(a.TravelDate)
	if userID.Valid {
		id := userID.Int64
		a.UserID = &id
	}

	return &a, nil
}

func (r *ArchiveRepository) Insert(ctx context.Context, a domain.ArchivedBooking) error {
	query := `
	INSERT INTO archived_bookings (id, route_id, vehicle_type, travel_date, number_of_passengers, user_id, unit_price, reason, note, created_at, archived_at)
	VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11)
	`

	var userID sql.NullInt64
	if a.UserID != nil {
		userID = sql.NullInt64{Int64: *a.UserID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.RouteID,
		string(a.Category),
		dateArg(a.TravelDate),
		a.PassengerCount,
		userID,
		a.UnitPrice,
		string(a.Reason),
		a.Note,
		a.CreatedAt,
		a.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert archived booking: %w", err)
	}

	return nil
}

func (r *ArchiveRepository) Get(ctx context.Context, bookingID uuid.UUID) (*domain.ArchivedBooking, error) {
	query := `SELECT ` + archiveColumns + `
	FROM archived_bookings a
	JOIN routes r ON r.id = a.route_id
	WHERE a.id = $1
	`

	a, err := scanArchived(r.db.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.CodeBookingNotFound, bookingID.String(), nil)
		}
		return nil, err
	}

	return a, nil
}

func (r *ArchiveRepository) DetachUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE archived_bookings SET user_id = NULL WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *ArchiveRepository) ListByUser(ctx context.Context, userID int64) ([]domain.ArchivedBooking, error) {
	query := `SELECT ` + archiveColumns + `
	FROM archived_bookings a
	JOIN routes r ON r.id = a.route_id
	WHERE a.user_id = $1
	ORDER BY a.archived_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []domain.ArchivedBooking
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *a)
	}

	return out, rows.Err()
}
