package domain

import (
	"strings"

	"github.com/google/uuid"
)

type Route struct {
	Pickup string
	Drop   string
}

func NewRoute(pickup, drop string) (Route, error) {
	r := Route{Pickup: strings.TrimSpace(pickup), Drop: strings.TrimSpace(drop)}
	if r.Pickup == "" || r.Drop == "" {
		return Route{}, NewError(CodeInvalidRoute, "pickup and drop locations are required", nil)
	}
	if strings.EqualFold(r.Pickup, r.Drop) {
		return Route{}, NewError(CodeInvalidRoute, "pickup and drop locations must differ", nil)
	}
	return r, nil
}

func (r Route) String() string {
	return r.Pickup + "->" + r.Drop
}

// Ceiling is the fleet size and unit price of one category on one route.
type Ceiling struct {
	RouteID  uuid.UUID
	Route    Route
	Category Category
	Count    int
	Price    float64
}

// FleetDefaults seeds a route that is booked before any admin set it up.
type FleetDefaults struct {
	Count  int
	Prices map[Category]float64
}

func (d FleetDefaults) Ceilings(routeID uuid.UUID, route Route) []Ceiling {
	out := make([]Ceiling, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, Ceiling{
			RouteID:  routeID,
			Route:    route,
			Category: c,
			Count:    d.Count,
			Price:    d.Prices[c],
		})
	}
	return out
}
