package domain

import "time"

// VisitState is the lifecycle of an inspection request.
// Requested is the only non-terminal state; there is no expiry on it.
type VisitState string

const (
	VisitRequested VisitState = "requested"
	VisitConfirmed VisitState = "confirmed"
	VisitCancelled VisitState = "cancelled"
)

func (s VisitState) Terminal() bool {
	return s == VisitConfirmed || s == VisitCancelled
}

type VisitRequest struct {
	ID          int64
	ListingID   int64
	RequesterID string
	Start       time.Time
	End         time.Time
	State       VisitState
	Notes       *string
}

// Reservation is a short-lived exclusive hold on a listing.
// There is no stored "expired" state; activity is derived from the clock.
type Reservation struct {
	ID          int64
	ListingID   int64
	RequesterID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Active reports whether the hold is still live at the given instant.
func (r Reservation) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
