package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

type LedgerKey struct {
	RouteID    uuid.UUID
	Category   Category
	TravelDate time.Time
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.RouteID, k.Category, k.TravelDate.Format(DateLayout))
}

// AvailabilityEntry counts the units of a category committed for a travel
// date. RestoreAt is the latest pending restoration deadline, if any.
type AvailabilityEntry struct {
	Key       LedgerKey
	Committed int
	RestoreAt *time.Time
	Version   int
}

type Availability struct {
	Category       Category `json:"category"`
	AvailableCount int      `json:"availableCount"`
	TotalCount     int      `json:"totalCount"`
	Price          float64  `json:"price"`
	Message        string   `json:"message"`
}

func NewAvailability(c Ceiling, committed int) Availability {
	available := c.Count - committed
	if available < 0 {
		available = 0
	}

	msg := "Available"
	switch {
	case available == 0:
		msg = "Sold out"
	case available <= 2:
		msg = fmt.Sprintf("Only %d left", available)
	}

	return Availability{
		Category:       c.Category,
		AvailableCount: available,
		TotalCount:     c.Count,
		Price:          c.Price,
		Message:        msg,
	}
}

// CivilDate drops the clock part of t, keeping t's calendar day.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseTravelDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewError(CodeInvalidDate, "travel date must be YYYY-MM-DD", err)
	}
	return t, nil
}

// EndOfTravelDay is 23:59:59 of the travel date in loc.
func EndOfTravelDay(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 0, loc)
}
