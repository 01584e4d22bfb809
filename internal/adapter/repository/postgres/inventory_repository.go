package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

type InventoryRepository struct {
	db DBTX
}

func NewInventoryRepository(db DBTX) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) GetCeiling(ctx context.Context, route domain.Route, category domain.Category) (domain.Ceiling, error) {
	query := `
	SELECT r.id, c.ceiling, c.price
	FROM routes r
	JOIN inventory_ceilings c ON c.route_id = r.id
	WHERE r.pickup_location = $1 AND r.drop_location = $2 AND c.vehicle_type = $3
	FOR SHARE OF c
	`

	c := domain.Ceiling{Route: route, Category: category}
	err := r.db.QueryRowContext(ctx, query, route.Pickup, route.Drop, string(category)).Scan(
		&c.RouteID,
		&c.Count,
		&c.Price,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Ceiling{}, domain.NewError(domain.CodeRouteNotFound,
				fmt.Sprintf("no %s inventory for %s", category, route), nil)
		}
		return domain.Ceiling{}, err
	}

	return c, nil
}

func (r *InventoryRepository) ListCeilings(ctx context.Context, route domain.Route) ([]domain.Ceiling, error) {
	query := `
	SELECT r.id, c.vehicle_type, c.ceiling, c.price
	FROM routes r
	JOIN inventory_ceilings c ON c.route_id = r.id
	WHERE r.pickup_location = $1 AND r.drop_location = $2
	ORDER BY c.vehicle_type
	`

	rows, err := r.db.QueryContext(ctx, query, route.Pickup, route.Drop)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ceilings []domain.Ceiling
	for rows.Next() {
		c := domain.Ceiling{Route: route}
		var vehicleType string
		if err := rows.Scan(&c.RouteID, &vehicleType, &c.Count, &c.Price); err != nil {
			return nil, err
		}

		c.Category = domain.Category(vehicleType)
		ceilings = append(ceilings, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ceilings) == 0 {
		return nil, domain.NewError(domain.CodeRouteNotFound, route.String(), nil)
	}

	return ceilings, nil
}

func (r *InventoryRepository) UpsertCeiling(ctx context.Context, route domain.Route, category domain.Category, count int, price float64) (domain.Ceiling, error) {
	routeID, err := r.ensureRouteRow(ctx, route)
	if err != nil {
		return domain.Ceiling{}, err
	}

	query := `
	INSERT INTO inventory_ceilings (route_id, vehicle_type, ceiling, price, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (route_id, vehicle_type)
	DO UPDATE SET ceiling = EXCLUDED.ceiling, price = EXCLUDED.price, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, routeID, string(category), count, price); err != nil {
		return domain.Ceiling{}, fmt.Errorf("failed to upsert ceiling: %w", err)
	}

	return domain.Ceiling{RouteID: routeID, Route: route, Category: category, Count: count, Price: price}, nil
}

func (r *InventoryRepository) EnsureRoute(ctx context.Context, route domain.Route, defaults domain.FleetDefaults) (uuid.UUID, error) {
	routeID, err := r.ensureRouteRow(ctx, route)
	if err != nil {
		return uuid.Nil, err
	}

	query := `
	INSERT INTO inventory_ceilings (route_id, vehicle_type, ceiling, price, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (route_id, vehicle_type) DO NOTHING
	`

	for _, c := range defaults.Ceilings(routeID, route) {
		if _, err := r.db.ExecContext(ctx, query, routeID, string(c.Category), c.Count, c.Price); err != nil {
			return uuid.Nil, fmt.Errorf("failed to seed %s ceiling: %w", c.Category, err)
		}
	}

	return routeID, nil
}

func (r *InventoryRepository) ensureRouteRow(ctx context.Context, route domain.Route) (uuid.UUID, error) {
	insert := `
	INSERT INTO routes (id, pickup_location, drop_location, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (pickup_location, drop_location) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), route.Pickup, route.Drop); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert route: %w", err)
	}

	var routeID uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM routes WHERE pickup_location = $1 AND drop_location = $2`,
		route.Pickup, route.Drop,
	).Scan(&routeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load route id: %w", err)
	}

	return routeID, nil
}
