package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

// LedgerRepository is a plain counter store. Callers check the ceiling
// before Increment while holding the row lock taken by Lock.
type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func dateArg(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func (r *LedgerRepository) GetCommitted(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error) {
	query := `
	SELECT committed, restore_at, version
	FROM availability_ledger
	WHERE route_id = $1 AND vehicle_type = $2 AND travel_date = $3::date
	`

	return r.scanEntry(ctx, key, query)
}

func (r *LedgerRepository) Lock(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error) {
	insert := `
	INSERT INTO availability_ledger (route_id, vehicle_type, travel_date, committed, version)
	VALUES ($1, $2, $3::date, 0, 0)
	ON CONFLICT (route_id, vehicle_type, travel_date) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, insert, key.RouteID, string(key.Category), dateArg(key.TravelDate)); err != nil {
		return domain.AvailabilityEntry{}, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	query := `
	SELECT committed, restore_at, version
	FROM availability_ledger
	WHERE route_id = $1 AND vehicle_type = $2 AND travel_date = $3::date
	FOR UPDATE
	`

	return r.scanEntry(ctx, key, query)
}

func (r *LedgerRepository) scanEntry(ctx context.Context, key domain.LedgerKey, query string) (domain.AvailabilityEntry, error) {
	entry := domain.AvailabilityEntry{Key: key}
	var restoreAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, key.RouteID, string(key.Category), dateArg(key.TravelDate)).Scan(
		&entry.Committed,
		&restoreAt,
		&entry.Version,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, nil
		}
		return domain.AvailabilityEntry{}, err
	}

	if restoreAt.Valid {
		entry.RestoreAt = &restoreAt.Time
	}

	return entry, nil
}

func (r *LedgerRepository) Increment(ctx context.Context, key domain.LedgerKey, restoreAt time.Time) error {
	query := `
	UPDATE availability_ledger
	SET committed = committed + 1,
		restore_at = GREATEST(COALESCE(restore_at, $4), $4),
		version = version + 1
	WHERE route_id = $1 AND vehicle_type = $2 AND travel_date = $3::date
	`

	result, err := r.db.ExecContext(ctx, query, key.RouteID, string(key.Category), dateArg(key.TravelDate), restoreAt)
	if err != nil {
		return err
	}

	return expectOneRow(result, "ledger entry "+key.String())
}

func (r *LedgerRepository) Decrement(ctx context.Context, key domain.LedgerKey) error {
	query := `
	UPDATE availability_ledger
	SET committed = GREATEST(committed - 1, 0),
		restore_at = CASE WHEN committed <= 1 THEN NULL ELSE restore_at END,
		version = version + 1
	WHERE route_id = $1 AND vehicle_type = $2 AND travel_date = $3::date
	`

	// A missing row means nothing is committed; flooring at zero makes that a no-op.
	_, err := r.db.ExecContext(ctx, query, key.RouteID, string(key.Category), dateArg(key.TravelDate))
	return err
}

func (r *LedgerRepository) ListForRouteDate(ctx context.Context, routeID uuid.UUID, date time.Time) ([]domain.AvailabilityEntry, error) {
	query := `
	SELECT vehicle_type, committed, restore_at, version
	FROM availability_ledger
	WHERE route_id = $1 AND travel_date = $2::date
	`

	rows, err := r.db.QueryContext(ctx, query, routeID, dateArg(date))
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []domain.AvailabilityEntry
	for rows.Next() {
		var (
			vehicleType string
			restoreAt   sql.NullTime
		)
		entry := domain.AvailabilityEntry{Key: domain.LedgerKey{RouteID: routeID, TravelDate: date}}

		if err := rows.Scan(&vehicleType, &entry.Committed, &restoreAt, &entry.Version); err != nil {
			return nil, err
		}

		entry.Key.Category = domain.Category(vehicleType)
		if restoreAt.Valid {
			entry.RestoreAt = &restoreAt.Time
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *LedgerRepository) MaxCommitted(ctx context.Context, routeID uuid.UUID, category domain.Category, from time.Time) (int, error) {
	query := `
	SELECT COALESCE(MAX(committed), 0)
	FROM availability_ledger
	WHERE route_id = $1 AND vehicle_type = $2 AND travel_date >= $3::date
	`

	var highest int
	if err := r.db.QueryRowContext(ctx, query, routeID, string(category), dateArg(from)).Scan(&highest); err != nil {
		return 0, err
	}

	return highest, nil
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s not found", what)
	}

	return nil
}
