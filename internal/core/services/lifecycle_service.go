package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

const noteUserDeleted = "user deleted"

type DeleteUserResult struct {
	UserID   int64
	Archived []domain.ArchivedBooking
	Detached int64
}

// LifecycleService owns cancellation, archival and booking lookups.
type LifecycleService struct {
	engine
}

func NewLifecycleService(d Deps) *LifecycleService {
	return &LifecycleService{engine: newEngine(d)}
}

// Cancel archives a confirmed booking and gives its unit back. Bookings whose
// travel date has already passed are left for the expiry sweep.
func (s *LifecycleService) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*domain.ArchivedBooking, error) {
	var (
		archived domain.ArchivedBooking
		booking  *domain.Booking
	)

	err := s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			if !errors.Is(err, domain.ErrBookingNotFound) {
				return err
			}
			if _, aerr := repos.Archive.Get(ctx, bookingID); aerr == nil {
				return domain.NewError(domain.CodeAlreadyResolved, "booking is already archived", nil)
			} else if !errors.Is(aerr, domain.ErrBookingNotFound) {
				return aerr
			}
			return err
		}

		if !b.IsConfirmed() {
			return domain.NewError(domain.CodeAlreadyResolved, fmt.Sprintf("booking is %s", b.Status), nil)
		}

		if b.TravelDate.Before(s.today()) {
			return domain.NewError(domain.CodeTravelDateElapsed, "past bookings cannot be cancelled", nil)
		}

		archived, err = s.archive(ctx, repos, b, domain.ArchiveCancelled, strings.TrimSpace(reason))
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.unschedule(ctx, bookingID)
	s.afterLedgerWrite(ctx, booking.LedgerKey(), EventBookingCancelled, bookingPayload(booking))

	s.Logger.Info("booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("ledger_key", booking.LedgerKey().String()),
		zap.String("reason", archived.Note),
	)

	return &archived, nil
}

// DeleteUser force-resolves the user's confirmed bookings, keeps the archive
// rows with the user reference cleared, then removes the user.
func (s *LifecycleService) DeleteUser(ctx context.Context, userID int64) (*DeleteUserResult, error) {
	result := &DeleteUserResult{UserID: userID}
	var resolved []*domain.Booking

	err := s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		result.Archived = nil
		resolved = nil

		// Holding the user row blocks reservations that would reference it.
		if err := repos.Users.Lock(ctx, userID); err != nil {
			return err
		}

		ids, err := repos.Bookings.ListConfirmedByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list user bookings: %w", err)
		}

		today := s.today()
		for _, id := range ids {
			b, err := repos.Bookings.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}

			reason := domain.ArchiveCancelled
			if b.TravelDate.Before(today) {
				reason = domain.ArchiveCompleted
			}

			archived, err := s.archive(ctx, repos, b, reason, noteUserDeleted)
			if err != nil {
				return err
			}
			result.Archived = append(result.Archived, archived)
			resolved = append(resolved, b)
		}

		detached, err := repos.Archive.DetachUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to detach archived bookings: %w", err)
		}
		result.Detached = detached

		return repos.Users.Delete(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	for i, b := range resolved {
		result.Archived[i].UserID = nil

		event := EventBookingCancelled
		if b.Status == domain.BookingCompleted {
			event = EventBookingCompleted
		}
		s.unschedule(ctx, b.ID)
		s.afterLedgerWrite(ctx, b.LedgerKey(), event, bookingPayload(b))
	}

	s.Logger.Info("user deleted",
		zap.Int64("user_id", userID),
		zap.Int("bookings_resolved", len(resolved)),
		zap.Int64("archive_rows_detached", result.Detached),
	)

	return result, nil
}

func (s *LifecycleService) archive(ctx context.Context, repos ports.Repositories, b *domain.Booking, reason domain.ArchiveReason, note string) (domain.ArchivedBooking, error) {
	if err := repos.Ledger.Decrement(ctx, b.LedgerKey()); err != nil {
		return domain.ArchivedBooking{}, fmt.Errorf("failed to decrement ledger %s: %w", b.LedgerKey(), err)
	}

	if reason == domain.ArchiveCancelled {
		b.Status = domain.BookingCancelled
	} else {
		b.Status = domain.BookingCompleted
	}

	archived := domain.Archive(b, reason, note, s.now())
	if err := repos.Archive.Insert(ctx, archived); err != nil {
		return domain.ArchivedBooking{}, fmt.Errorf("failed to archive booking: %w", err)
	}

	if err := repos.Bookings.Delete(ctx, b.ID); err != nil {
		return domain.ArchivedBooking{}, fmt.Errorf("failed to delete booking: %w", err)
	}

	return archived, nil
}

func (s *LifecycleService) ListBookings(ctx context.Context, contact string, filter domain.BookingFilter) ([]domain.Booking, error) {
	userID, err := s.Store.Repos().Users.FindByContact(ctx, strings.TrimSpace(contact))
	if err != nil {
		return nil, err
	}

	if filter.Category != "" && !filter.Category.Valid() {
		return nil, domain.NewError(domain.CodeInvalidCategory, string(filter.Category), nil)
	}

	return s.Store.Repos().Bookings.Search(ctx, userID, filter)
}

func (s *LifecycleService) ListArchived(ctx context.Context, contact string) ([]domain.ArchivedBooking, error) {
	userID, err := s.Store.Repos().Users.FindByContact(ctx, strings.TrimSpace(contact))
	if err != nil {
		return nil, err
	}

	return s.Store.Repos().Archive.ListByUser(ctx, userID)
}
