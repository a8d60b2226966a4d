package booking

import (
	"time"

	"estate_portal/internal/domain"
)

// Visits may only run inside this daily window.
const (
	businessOpen  = 8 * time.Hour
	businessClose = 19 * time.Hour
)

// EvaluateVisit is the pure arbitration step for a candidate visit window.
// It performs the stateless window checks first, then the open-interval
// overlap test against the listing's existing visits. Cancelled visits do
// not occupy their slot; a record re-evaluated against its own stored copy
// excludes itself by id.
//
// No I/O happens here: callers load the existing visits (under the
// per-listing critical section) and hand them in.
func EvaluateVisit(candidate domain.VisitRequest, existing []domain.VisitRequest) error {
	if err := checkWindow(candidate.Start, candidate.End); err != nil {
		return err
	}
	for _, v := range existing {
		if v.ID == candidate.ID && candidate.ID != 0 {
			continue
		}
		if v.ListingID != candidate.ListingID || v.State == domain.VisitCancelled {
			continue
		}
		// half-open intervals: touching endpoints are not an overlap
		if candidate.Start.Before(v.End) && v.Start.Before(candidate.End) {
			return domain.Conflict("window", "overlaps an existing visit for this listing")
		}
	}
	return nil
}

// EvaluateReservation accepts iff the listing has no live hold.
func EvaluateReservation(active []domain.Reservation) error {
	if len(active) > 0 {
		return domain.Conflict("listing_id", "already reserved")
	}
	return nil
}

func checkWindow(start, end time.Time) error {
	if !start.Before(end) {
		return domain.Validation("start", "start must be before end")
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return domain.Validation("end", "visit must start and end on the same day")
	}
	if sinceMidnight(start) < businessOpen || sinceMidnight(end) > businessClose {
		return domain.Validation("start", "visits run between 08:00 and 19:00 only")
	}
	return nil
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
