package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
)

// memStore is an in-memory ports.Store. Transactions run one at a time on a
// copy of the state that replaces the original only on commit. That global
// serialisation is stronger than the row locks the postgres store relies on,
// so concurrency tests against memStore cover the service's check-then-write
// logic only. The lock clauses themselves (FOR UPDATE on the ledger row, FOR
// SHARE on the ceiling row) are pinned by the postgres package tests.
type memStore struct {
	mu    sync.Mutex
	state *memState
	txs   int

	// fail, when set, is consulted before every repository call.
	fail func(op string) error
}

type ceilingKey struct {
	RouteID  uuid.UUID
	Category domain.Category
}

type memUser struct {
	ID     int64
	Mobile string
	Email  string
}

type memState struct {
	users    map[int64]memUser
	routes   map[domain.Route]uuid.UUID
	ceilings map[ceilingKey]domain.Ceiling
	ledger   map[string]domain.AvailabilityEntry
	bookings map[uuid.UUID]domain.Booking
	archive  map[uuid.UUID]domain.ArchivedBooking
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:    map[int64]memUser{},
		routes:   map[domain.Route]uuid.UUID{},
		ceilings: map[ceilingKey]domain.Ceiling{},
		ledger:   map[string]domain.AvailabilityEntry{},
		bookings: map[uuid.UUID]domain.Booking{},
		archive:  map[uuid.UUID]domain.ArchivedBooking{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		users:    make(map[int64]memUser, len(s.users)),
		routes:   make(map[domain.Route]uuid.UUID, len(s.routes)),
		ceilings: make(map[ceilingKey]domain.Ceiling, len(s.ceilings)),
		ledger:   make(map[string]domain.AvailabilityEntry, len(s.ledger)),
		bookings: make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		archive:  make(map[uuid.UUID]domain.ArchivedBooking, len(s.archive)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.ceilings {
		c.ceilings[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.archive {
		c.archive[k] = v
	}
	return c
}

func (m *memStore) addUser(id int64, mobile string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[id] = memUser{ID: id, Mobile: mobile, Email: fmt.Sprintf("user%d@example.com", id)}
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) committed(key domain.LedgerKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ledger[key.String()].Committed
}

func (m *memStore) Repos() ports.Repositories {
	return m.repos(nil)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs++
	draft := m.state.clone()
	if err := fn(ctx, m.repos(draft)); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *memStore) repos(tx *memState) ports.Repositories {
	r := &memRepos{store: m, tx: tx}
	return ports.Repositories{
		Inventory: memInventory{r},
		Ledger:    memLedger{r},
		Bookings:  memBookings{r},
		Archive:   memArchive{r},
		Users:     memUsers{r},
	}
}

type memRepos struct {
	store *memStore
	tx    *memState
}

// with runs fn on the transaction draft, or on the committed state under
// the store lock for reads outside a transaction.
func (r *memRepos) with(op string, fn func(st *memState) error) error {
	if r.tx == nil {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	if r.store.fail != nil {
		if err := r.store.fail(op); err != nil {
			return err
		}
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	return fn(r.store.state)
}

type memInventory struct{ *memRepos }

func (r memInventory) GetCeiling(ctx context.Context, route domain.Route, category domain.Category) (domain.Ceiling, error) {
	var out domain.Ceiling
	err := r.with("Inventory.GetCeiling", func(st *memState) error {
		id, ok := st.routes[route]
		if !ok {
			return domain.NewError(domain.CodeRouteNotFound, route.String(), nil)
		}
		c, ok := st.ceilings[ceilingKey{id, category}]
		if !ok {
			return domain.NewError(domain.CodeRouteNotFound, route.String(), nil)
		}
		out = c
		return nil
	})
	return out, err
}

func (r memInventory) ListCeilings(ctx context.Context, route domain.Route) ([]domain.Ceiling, error) {
	var out []domain.Ceiling
	err := r.with("Inventory.ListCeilings", func(st *memState) error {
		id, ok := st.routes[route]
		if !ok {
			return domain.NewError(domain.CodeRouteNotFound, route.String(), nil)
		}
		for _, c := range domain.Categories {
			if ceiling, ok := st.ceilings[ceilingKey{id, c}]; ok {
				out = append(out, ceiling)
			}
		}
		if len(out) == 0 {
			return domain.NewError(domain.CodeRouteNotFound, route.String(), nil)
		}
		return nil
	})
	return out, err
}

func routeID(st *memState, route domain.Route) uuid.UUID {
	id, ok := st.routes[route]
	if !ok {
		id = uuid.New()
		st.routes[route] = id
	}
	return id
}

func (r memInventory) UpsertCeiling(ctx context.Context, route domain.Route, category domain.Category, count int, price float64) (domain.Ceiling, error) {
	var out domain.Ceiling
	err := r.with("Inventory.UpsertCeiling", func(st *memState) error {
		id := routeID(st, route)
		out = domain.Ceiling{RouteID: id, Route: route, Category: category, Count: count, Price: price}
		st.ceilings[ceilingKey{id, category}] = out
		return nil
	})
	return out, err
}

func (r memInventory) EnsureRoute(ctx context.Context, route domain.Route, defaults domain.FleetDefaults) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.with("Inventory.EnsureRoute", func(st *memState) error {
		id = routeID(st, route)
		for _, c := range defaults.Ceilings(id, route) {
			k := ceilingKey{id, c.Category}
			if _, ok := st.ceilings[k]; !ok {
				st.ceilings[k] = c
			}
		}
		return nil
	})
	return id, err
}

type memLedger struct{ *memRepos }

func (r memLedger) GetCommitted(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error) {
	var out domain.AvailabilityEntry
	err := r.with("Ledger.GetCommitted", func(st *memState) error {
		e, ok := st.ledger[key.String()]
		if !ok {
			e = domain.AvailabilityEntry{Key: key}
		}
		out = e
		return nil
	})
	return out, err
}

func (r memLedger) Lock(ctx context.Context, key domain.LedgerKey) (domain.AvailabilityEntry, error) {
	var out domain.AvailabilityEntry
	err := r.with("Ledger.Lock", func(st *memState) error {
		e, ok := st.ledger[key.String()]
		if !ok {
			e = domain.AvailabilityEntry{Key: key}
			st.ledger[key.String()] = e
		}
		out = e
		return nil
	})
	return out, err
}

func (r memLedger) Increment(ctx context.Context, key domain.LedgerKey, restoreAt time.Time) error {
	return r.with("Ledger.Increment", func(st *memState) error {
		e, ok := st.ledger[key.String()]
		if !ok {
			return fmt.Errorf("ledger entry %s not found", key)
		}
		e.Committed++
		e.Version++
		if e.RestoreAt == nil || restoreAt.After(*e.RestoreAt) {
			at := restoreAt
			e.RestoreAt = &at
		}
		st.ledger[key.String()] = e
		return nil
	})
}

func (r memLedger) Decrement(ctx context.Context, key domain.LedgerKey) error {
	return r.with("Ledger.Decrement", func(st *memState) error {
		e, ok := st.ledger[key.String()]
		if !ok {
			return nil
		}
		if e.Committed <= 1 {
			e.RestoreAt = nil
		}
		if e.Committed > 0 {
			e.Committed--
		}
		e.Version++
		st.ledger[key.String()] = e
		return nil
	})
}

func (r memLedger) ListForRouteDate(ctx context.Context, routeID uuid.UUID, date time.Time) ([]domain.AvailabilityEntry, error) {
	var out []domain.AvailabilityEntry
	err := r.with("Ledger.ListForRouteDate", func(st *memState) error {
		for _, e := range st.ledger {
			if e.Key.RouteID == routeID && e.Key.TravelDate.Equal(date) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (r memLedger) MaxCommitted(ctx context.Context, routeID uuid.UUID, category domain.Category, from time.Time) (int, error) {
	var highest int
	err := r.with("Ledger.MaxCommitted", func(st *memState) error {
		for _, e := range st.ledger {
			if e.Key.RouteID == routeID && e.Key.Category == category && !e.Key.TravelDate.Before(from) && e.Committed > highest {
				highest = e.Committed
			}
		}
		return nil
	})
	return highest, err
}

type memBookings struct{ *memRepos }

func (r memBookings) Create(ctx context.Context, b *domain.Booking) error {
	return r.with("Bookings.Create", func(st *memState) error {
		if _, ok := st.users[b.UserID]; !ok {
			return fmt.Errorf("user %d violates foreign key", b.UserID)
		}
		st.bookings[b.ID] = *b
		return nil
	})
}

func (r memBookings) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.with("Bookings.GetForUpdate", func(st *memState) error {
		b, ok := st.bookings[id]
		if !ok {
			return domain.NewError(domain.CodeBookingNotFound, id.String(), nil)
		}
		out = &b
		return nil
	})
	return out, err
}

func (r memBookings) Delete(ctx context.Context, id uuid.UUID) error {
	return r.with("Bookings.Delete", func(st *memState) error {
		if _, ok := st.bookings[id]; !ok {
			return fmt.Errorf("booking %s not found", id)
		}
		delete(st.bookings, id)
		return nil
	})
}

func (r memBookings) selectIDs(op string, limit int, match func(b domain.Booking) bool) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.with(op, func(st *memState) error {
		var picked []domain.Booking
		for _, b := range st.bookings {
			if match(b) {
				picked = append(picked, b)
			}
		}
		sort.Slice(picked, func(i, j int) bool { return picked[i].CreatedAt.Before(picked[j].CreatedAt) })
		for _, b := range picked {
			if limit > 0 && len(ids) == limit {
				break
			}
			ids = append(ids, b.ID)
		}
		return nil
	})
	return ids, err
}

func (r memBookings) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.selectIDs("Bookings.ListDue", limit, func(b domain.Booking) bool {
		return b.IsConfirmed() && !b.RestoreAt.After(now)
	})
}

func (r memBookings) ListElapsed(ctx context.Context, today time.Time, limit int) ([]uuid.UUID, error) {
	return r.selectIDs("Bookings.ListElapsed", limit, func(b domain.Booking) bool {
		return b.IsConfirmed() && b.TravelDate.Before(today)
	})
}

func (r memBookings) ListConfirmedByUser(ctx context.Context, userID int64) ([]uuid.UUID, error) {
	return r.selectIDs("Bookings.ListConfirmedByUser", 0, func(b domain.Booking) bool {
		return b.IsConfirmed() && b.UserID == userID
	})
}

func (r memBookings) ListPending(ctx context.Context, now time.Time) ([]domain.PendingRestoration, error) {
	var out []domain.PendingRestoration
	err := r.with("Bookings.ListPending", func(st *memState) error {
		for _, b := range st.bookings {
			if b.IsConfirmed() && b.RestoreAt.After(now) {
				out = append(out, domain.PendingRestoration{BookingID: b.ID, RestoreAt: b.RestoreAt})
			}
		}
		return nil
	})
	return out, err
}

func (r memBookings) Search(ctx context.Context, userID int64, f domain.BookingFilter) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.with("Bookings.Search", func(st *memState) error {
		for _, b := range st.bookings {
			if b.UserID != userID ||
				(f.Pickup != "" && b.Route.Pickup != f.Pickup) ||
				(f.Drop != "" && b.Route.Drop != f.Drop) ||
				(f.TravelDate != nil && !b.TravelDate.Equal(*f.TravelDate)) ||
				(f.Category != "" && b.Category != f.Category) {
				continue
			}
			out = append(out, b)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

type memArchive struct{ *memRepos }

func (r memArchive) Insert(ctx context.Context, a domain.ArchivedBooking) error {
	return r.with("Archive.Insert", func(st *memState) error {
		if _, ok := st.archive[a.ID]; ok {
			return fmt.Errorf("archived booking %s already exists", a.ID)
		}
		st.archive[a.ID] = a
		return nil
	})
}

func (r memArchive) Get(ctx context.Context, id uuid.UUID) (*domain.ArchivedBooking, error) {
	var out *domain.ArchivedBooking
	err := r.with("Archive.Get", func(st *memState) error {
		a, ok := st.archive[id]
		if !ok {
			return domain.NewError(domain.CodeBookingNotFound, id.String(), nil)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memArchive) DetachUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.with("Archive.DetachUser", func(st *memState) error {
		for id, a := range st.archive {
			if a.UserID != nil && *a.UserID == userID {
				a.UserID = nil
				st.archive[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memArchive) ListByUser(ctx context.Context, userID int64) ([]domain.ArchivedBooking, error) {
	var out []domain.ArchivedBooking
	err := r.with("Archive.ListByUser", func(st *memState) error {
		for _, a := range st.archive {
			if a.UserID != nil && *a.UserID == userID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

type memUsers struct{ *memRepos }

func (r memUsers) FindByContact(ctx context.Context, contact string) (int64, error) {
	var id int64
	err := r.with("Users.FindByContact", func(st *memState) error {
		for _, u := range st.users {
			if u.Mobile == contact || u.Email == contact {
				id = u.ID
				return nil
			}
		}
		return domain.NewError(domain.CodeUserNotFound, contact, nil)
	})
	return id, err
}

func (r memUsers) Lock(ctx context.Context, userID int64) error {
	return r.with("Users.Lock", func(st *memState) error {
		if _, ok := st.users[userID]; !ok {
			return domain.NewError(domain.CodeUserNotFound, fmt.Sprint(userID), nil)
		}
		return nil
	})
}

func (r memUsers) Delete(ctx context.Context, userID int64) error {
	return r.with("Users.Delete", func(st *memState) error {
		if _, ok := st.users[userID]; !ok {
			return domain.NewError(domain.CodeUserNotFound, fmt.Sprint(userID), nil)
		}
		for _, b := range st.bookings {
			if b.UserID == userID {
				return fmt.Errorf("user %d still referenced by booking %s", userID, b.ID)
			}
		}
		delete(st.users, userID)
		return nil
	})
}
