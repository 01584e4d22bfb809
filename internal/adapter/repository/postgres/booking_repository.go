package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	b.id, b.route_id, r.pickup_location, r.drop_location, b.vehicle_type, b.travel_date,
	b.number_of_passengers, b.user_id, b.status, b.unit_price, b.restore_at, b.created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b           domain.Booking
		vehicleType string
		status      string
	)

	err := row.Scan(
		&b.ID,
		&b.RouteID,
		&b.Route.Pickup,
		&b.Route.Drop,
		&vehicleType,
		&b.TravelDate,
		&b.PassengerCount,
		&b.UserID,
		&status,
		&b.UnitPrice,
		&b.RestoreAt,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Category = domain.Category(vehicleType)
	b.Status = domain.BookingStatus(status)
	b.TravelDate = domain.CivilDate(b.TravelDate)

	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
	INSERT INTO bookings (id, route_id, vehicle_type, travel_date, number_of_passengers, user_id, status, unit_price, restore_at, created_at)
	VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.RouteID,
		string(booking.Category),
		dateArg(booking.TravelDate),
		booking.PassengerCount,
		booking.UserID,
		string(booking.Status),
		booking.UnitPrice,
		booking.RestoreAt,
		booking.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	FROM bookings b
	JOIN routes r ON r.id = b.route_id
	WHERE b.id = $1
	FOR UPDATE OF b
	`

	b, err := scanBooking(r.db.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.CodeBookingNotFound, bookingID.String(), nil)
		}
		return nil, err
	}

	return b, nil
}

func (r *BookingRepository) Delete(ctx context.Context, bookingID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}

	return expectOneRow(result, "booking "+bookingID.String())
}

func (r *BookingRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
	SELECT id FROM bookings
	WHERE status = 'confirmed' AND restore_at <= $1
	ORDER BY restore_at
	LIMIT $2
	`

	return r.queryIDs(ctx, query, now, limit)
}

func (r *BookingRepository) ListElapsed(ctx context.Context, today time.Time, limit int) ([]uuid.UUID, error) {
	query := `
	SELECT id FROM bookings
	WHERE status = 'confirmed' AND travel_date < $1::date
	ORDER BY travel_date
	LIMIT $2
	`

	return r.queryIDs(ctx, query, dateArg(today), limit)
}

func (r *BookingRepository) ListConfirmedByUser(ctx context.Context, userID int64) ([]uuid.UUID, error) {
	query := `
	SELECT id FROM bookings
	WHERE user_id = $1 AND status = 'confirmed'
	ORDER BY created_at
	`

	return r.queryIDs(ctx, query, userID)
}

func (r *BookingRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *BookingRepository) ListPending(ctx context.Context, now time.Time) ([]domain.PendingRestoration, error) {
	query := `
	SELECT id, restore_at FROM bookings
	WHERE status = 'confirmed' AND restore_at > $1
	ORDER BY restore_at
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var pending []domain.PendingRestoration
	for rows.Next() {
		var p domain.PendingRestoration
		if err := rows.Scan(&p.BookingID, &p.RestoreAt); err != nil {
			return nil, err
		}

		pending = append(pending, p)
	}

	return pending, rows.Err()
}

func (r *BookingRepository) Search(ctx context.Context, userID int64, filter domain.BookingFilter) ([]domain.Booking, error) {
	conds := []string{"b.user_id = $1"}
	args := []any{userID}

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Pickup != "" {
		add("r.pickup_location = $%d", filter.Pickup)
	}
	if filter.Drop != "" {
		add("r.drop_location = $%d", filter.Drop)
	}
	if filter.TravelDate != nil {
		add("b.travel_date = $%d::date", dateArg(*filter.TravelDate))
	}
	if filter.Category != "" {
		add("b.vehicle_type = $%d", string(filter.Category))
	}

	query := `SELECT ` + bookingColumns + `
	FROM bookings b
	JOIN routes r ON r.id = b.route_id
	WHERE ` + strings.Join(conds, " AND ") + `
	ORDER BY b.travel_date, b.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}
