package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type ArchiveReason string

const (
	ArchiveCancelled ArchiveReason = "cancelled"
	ArchiveCompleted ArchiveReason = "completed"
)

type Booking struct {
	ID             uuid.UUID
	RouteID        uuid.UUID
	Route          Route
	Category       Category
	TravelDate     time.Time
	PassengerCount int
	UserID         int64
	Status         BookingStatus
	UnitPrice      float64
	RestoreAt      time.Time
	CreatedAt      time.Time
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}

func (b *Booking) LedgerKey() LedgerKey {
	return LedgerKey{RouteID: b.RouteID, Category: b.Category, TravelDate: b.TravelDate}
}

// ArchivedBooking is the terminal record of a booking. UserID is nil once the
// owning user has been deleted.
type ArchivedBooking struct {
	ID             uuid.UUID
	RouteID        uuid.UUID
	Route          Route
	Category       Category
	TravelDate     time.Time
	PassengerCount int
	UserID         *int64
	UnitPrice      float64
	Reason         ArchiveReason
	Note           string
	CreatedAt      time.Time
	ArchivedAt     time.Time
}

func Archive(b *Booking, reason ArchiveReason, note string, at time.Time) ArchivedBooking {
	userID := b.UserID
	return ArchivedBooking{
		ID:             b.ID,
		RouteID:        b.RouteID,
		Route:          b.Route,
		Category:       b.Category,
		TravelDate:     b.TravelDate,
		PassengerCount: b.PassengerCount,
		UserID:         &userID,
		UnitPrice:      b.UnitPrice,
		Reason:         reason,
		Note:           note,
		CreatedAt:      b.CreatedAt,
		ArchivedAt:     at,
	}
}

// BookingFilter narrows a user's booking search. Zero fields are ignored.
type BookingFilter struct {
	Pickup     string
	Drop       string
	TravelDate *time.Time
	Category   Category
}

type PendingRestoration struct {
	BookingID uuid.UUID
	RestoreAt time.Time
}
