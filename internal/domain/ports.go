package domain

import (
	"context"
	"time"
)

// RecordStore is the transactional persistence contract for the portal.
// Multi-step read-decide-write sequences run inside WithTx so they commit
// as one atomic unit.
type RecordStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Listings
	FindListing(ctx context.Context, id int64) (Listing, error)
	// ListingExists reports whether the listing exists AND is active;
	// booking never targets deactivated listings.
	ListingExists(ctx context.Context, id int64) (bool, error)
	CountListings(ctx context.Context, f CatalogFilter) (int, error)
	ListListings(ctx context.Context, f CatalogFilter, offset, limit int) ([]Listing, error)
	InsertListing(ctx context.Context, l Listing) (int64, error)
	UpdateListing(ctx context.Context, l Listing) error
	SetListingActive(ctx context.Context, id int64, active bool) error
	CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error)

	// Visits
	FindVisit(ctx context.Context, id int64) (VisitRequest, error)
	ListVisits(ctx context.Context, listingID int64) ([]VisitRequest, error)
	InsertVisit(ctx context.Context, v VisitRequest) (int64, error)
	UpdateVisitState(ctx context.Context, id int64, state VisitState) error
	VisitsOn(ctx context.Context, day time.Time) ([]VisitRequest, error)

	// Reservations
	FindReservation(ctx context.Context, id int64) (Reservation, error)
	ListActiveReservations(ctx context.Context, listingID int64, now time.Time) ([]Reservation, error)
	ListAllActiveReservations(ctx context.Context, now time.Time) ([]Reservation, error)
	InsertReservation(ctx context.Context, r Reservation) (int64, error)
	DeleteReservation(ctx context.Context, id int64) error
}

// Cache is a TTL key-value port; entries silently vanish once their TTL elapses.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
