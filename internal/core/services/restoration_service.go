package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerReconcile Trigger = "reconcile"
	TriggerSweep     Trigger = "sweep"
)

type SweepReport struct {
	Scanned     int
	Restored    int
	Failed      int
	Rescheduled int
}

// RestorationService returns reserved units to the pool. Every entry point is
// idempotent: a booking that is no longer confirmed is left alone.
type RestorationService struct {
	engine
}

func NewRestorationService(d Deps) *RestorationService {
	return &RestorationService{engine: newEngine(d)}
}

// RestoreBooking completes a confirmed booking, decrements its ledger entry
// and archives it. It reports false when there was nothing to restore.
func (s *RestorationService) RestoreBooking(ctx context.Context, bookingID uuid.UUID, trigger Trigger) (bool, error) {
	var restored *domain.Booking

	err := s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			if domain.CodeOf(err) == domain.CodeBookingNotFound {
				return nil
			}
			return err
		}

		if !b.IsConfirmed() {
			return nil
		}

		if err := repos.Ledger.Decrement(ctx, b.LedgerKey()); err != nil {
			return fmt.Errorf("failed to decrement ledger %s: %w", b.LedgerKey(), err)
		}

		b.Status = domain.BookingCompleted
		if err := repos.Archive.Insert(ctx, domain.Archive(b, domain.ArchiveCompleted, string(trigger), s.now())); err != nil {
			return fmt.Errorf("failed to archive booking: %w", err)
		}

		if err := repos.Bookings.Delete(ctx, b.ID); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}

		restored = b
		return nil
	})
	if err != nil {
		return false, err
	}

	if restored == nil {
		s.Logger.Debug("restoration skipped, booking already resolved",
			zap.String("booking_id", bookingID.String()), zap.String("trigger", string(trigger)))
		return false, nil
	}

	s.afterLedgerWrite(ctx, restored.LedgerKey(), EventBookingCompleted, bookingPayload(restored))

	s.Logger.Info("availability restored",
		zap.String("booking_id", bookingID.String()),
		zap.String("ledger_key", restored.LedgerKey().String()),
		zap.String("trigger", string(trigger)),
	)

	return true, nil
}

// Reconcile runs once at start-up. Restorations whose deadline passed while
// the process was down are applied now; the rest are re-enqueued.
func (s *RestorationService) Reconcile(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	repos := s.Store.Repos()

	for {
		due, err := repos.Bookings.ListDue(ctx, s.now(), s.Policy.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list due bookings: %w", err)
		}
		if len(due) == 0 {
			break
		}

		before := report.Restored
		s.restoreAll(ctx, due, TriggerReconcile, &report)

		// A batch with no progress would be listed again forever.
		if len(due) < s.Policy.BatchSize || report.Restored == before {
			break
		}
	}

	if s.Scheduler == nil {
		return report, nil
	}

	pending, err := repos.Bookings.ListPending(ctx, s.now())
	if err != nil {
		return report, fmt.Errorf("failed to list pending bookings: %w", err)
	}

	for _, p := range pending {
		if err := s.Scheduler.Schedule(ctx, p.BookingID, p.RestoreAt); err != nil {
			s.Logger.Warn("failed to re-enqueue restoration",
				zap.String("booking_id", p.BookingID.String()), zap.Error(err))
			continue
		}
		report.Rescheduled++
	}

	s.Logger.Info("startup reconciliation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("restored", report.Restored),
		zap.Int("failed", report.Failed),
		zap.Int("rescheduled", report.Rescheduled),
	)

	return report, nil
}

// SweepExpired restores bookings whose travel date has passed, plus any whose
// deadline passed without the scheduled task firing.
func (s *RestorationService) SweepExpired(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	repos := s.Store.Repos()

	for {
		elapsed, err := repos.Bookings.ListElapsed(ctx, s.today(), s.Policy.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list elapsed bookings: %w", err)
		}

		due, err := repos.Bookings.ListDue(ctx, s.now(), s.Policy.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list due bookings: %w", err)
		}

		batch := mergeIDs(elapsed, due)
		if len(batch) == 0 {
			break
		}

		before := report.Restored
		s.restoreAll(ctx, batch, TriggerSweep, &report)

		full := len(elapsed) == s.Policy.BatchSize || len(due) == s.Policy.BatchSize
		if !full || report.Restored == before {
			break
		}
	}

	if report.Scanned > 0 {
		s.Logger.Info("expiry sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("restored", report.Restored),
			zap.Int("failed", report.Failed),
		)
	}

	return report, nil
}

func (s *RestorationService) restoreAll(ctx context.Context, ids []uuid.UUID, trigger Trigger, report *SweepReport) {
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}

		report.Scanned++
		ok, err := s.RestoreBooking(ctx, id, trigger)
		if err != nil {
			report.Failed++
			s.Logger.Error("failed to restore booking",
				zap.String("booking_id", id.String()),
				zap.String("trigger", string(trigger)),
				zap.Error(err),
			)
			continue
		}
		if ok {
			report.Restored++
		}
	}
}

func mergeIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, list := range [][]uuid.UUID{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
