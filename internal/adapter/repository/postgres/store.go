package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repos() ports.Repositories {
	return newRepositories(s.db)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func newRepositories(db DBTX) ports.Repositories {
	return ports.Repositories{
		Inventory: NewInventoryRepository(db),
		Ledger:    NewLedgerRepository(db),
		Bookings:  NewBookingRepository(db),
		Archive:   NewArchiveRepository(db),
		Users:     NewUserRepository(db),
	}
}

// classify turns connection, serialization and deadlock failures into
// domain.ErrTransientStore so callers know a retry is safe.
const userFKConstraint = "bookings_user_id_fkey"

func classify(err error) error {
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return domain.NewError(domain.CodeTransientStore, "database connection lost", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001", pqErr.Code == "40P01":
			return domain.NewError(domain.CodeTransientStore, "transaction conflict", err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57", pqErr.Code == "53300":
			return domain.NewError(domain.CodeTransientStore, "database unavailable", err)
		case pqErr.Code == "23503" && pqErr.Constraint == userFKConstraint:
			// The user was deleted between lookup and insert.
			return domain.NewError(domain.CodeUserNotFound, "user no longer exists", err)
		}
	}

	return err
}
