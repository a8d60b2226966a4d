package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"estate_portal/internal/domain"
)

// MemStore is an in-memory RecordStore for unit tests. It is safe for
// concurrent use; each method is atomic under one mutex. WithTx can be
// primed to fail with ErrTxConflict a number of times to exercise the
// booking service's bounded retry.
type MemStore struct {
	mu           sync.Mutex
	listings     map[int64]domain.Listing
	visits       map[int64]domain.VisitRequest
	reservations map[int64]domain.Reservation
	nextID       int64

	TxConflicts int // decremented on each WithTx that fails
}

func NewMemStore() *MemStore {
	return &MemStore{
		listings:     map[int64]domain.Listing{},
		visits:       map[int64]domain.VisitRequest{},
		reservations: map[int64]domain.Reservation{},
	}
}

func (m *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if m.TxConflicts > 0 {
		m.TxConflicts--
		m.mu.Unlock()
		return domain.ErrTxConflict
	}
	m.mu.Unlock()
	return fn(ctx)
}

func (m *MemStore) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

// ---- listings ----

func (m *MemStore) AddListing(l domain.Listing) domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == 0 {
		l.ID = m.nextIDLocked()
	}
	m.listings[l.ID] = l
	return l
}

func (m *MemStore) FindListing(ctx context.Context, id int64) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.NotFound("listing")
	}
	return l, nil
}

func (m *MemStore) ListingExists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	return ok && l.Active, nil
}

func (m *MemStore) CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.Code == code && l.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) matches(l domain.Listing, f domain.CatalogFilter) bool {
	if !l.Active {
		return false
	}
	if f.City != nil && !strings.Contains(strings.ToLower(l.City), strings.ToLower(strings.TrimSpace(*f.City))) {
		return false
	}
	if f.Type != nil && l.Type != *f.Type {
		return false
	}
	if f.PriceMin != nil && l.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && l.Price > *f.PriceMax {
		return false
	}
	if f.BedroomsMin != nil && l.Bedrooms < *f.BedroomsMin {
		return false
	}
	return true
}

func (m *MemStore) CountListings(ctx context.Context, f domain.CatalogFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.listings {
		if m.matches(l, f) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListListings(ctx context.Context, f domain.CatalogFilter, offset, limit int) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Listing
	for _, l := range m.listings {
		if m.matches(l, f) {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].City != all[j].City {
			return all[i].City < all[j].City
		}
		if all[i].Price != all[j].Price {
			return all[i].Price < all[j].Price
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]domain.Listing, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func (m *MemStore) InsertListing(ctx context.Context, l domain.Listing) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextIDLocked()
	m.listings[l.ID] = l
	return l.ID, nil
}

func (m *MemStore) UpdateListing(ctx context.Context, l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.ID]; !ok {
		return domain.NotFound("listing")
	}
	m.listings[l.ID] = l
	return nil
}

func (m *MemStore) SetListingActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.NotFound("listing")
	}
	l.Active = active
	m.listings[id] = l
	return nil
}

// ---- visits ----

func (m *MemStore) FindVisit(ctx context.Context, id int64) (domain.VisitRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return domain.VisitRequest{}, domain.NotFound("visit")
	}
	return v, nil
}

func (m *MemStore) ListVisits(ctx context.Context, listingID int64) ([]domain.VisitRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VisitRequest
	for _, v := range m.visits {
		if v.ListingID == listingID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemStore) InsertVisit(ctx context.Context, v domain.VisitRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.nextIDLocked()
	m.visits[v.ID] = v
	return v.ID, nil
}

func (m *MemStore) UpdateVisitState(ctx context.Context, id int64, state domain.VisitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return domain.NotFound("visit")
	}
	v.State = state
	m.visits[id] = v
	return nil
}

func (m *MemStore) VisitsOn(ctx context.Context, day time.Time) ([]domain.VisitRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	y, mo, d := day.Date()
	var out []domain.VisitRequest
	for _, v := range m.visits {
		vy, vm, vd := v.Start.Date()
		if vy == y && vm == mo && vd == d {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ---- reservations ----

func (m *MemStore) FindReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.NotFound("reservation")
	}
	return r, nil
}

func (m *MemStore) ListActiveReservations(ctx context.Context, listingID int64, now time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if r.ListingID == listingID && r.Active(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (m *MemStore) ListAllActiveReservations(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if r.Active(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (m *MemStore) InsertReservation(ctx context.Context, r domain.Reservation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextIDLocked()
	m.reservations[r.ID] = r
	return r.ID, nil
}

func (m *MemStore) DeleteReservation(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return domain.NotFound("reservation")
	}
	delete(m.reservations, id)
	return nil
}

// VisitCount reports how many visits exist for a listing, any state.
func (m *MemStore) VisitCount(listingID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.visits {
		if v.ListingID == listingID {
			n++
		}
	}
	return n
}
