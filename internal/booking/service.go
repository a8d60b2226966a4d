package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"estate_portal/internal/adapters/observability"
	"estate_portal/internal/clock"
	"estate_portal/internal/domain"
)

const defaultHoldTTL = 48 * time.Hour

// txRetries bounds how often a serialization conflict is retried before it
// surfaces as a store error.
const txRetries = 3

// Service owns every write to visits and reservations. The read-decide-write
// sequences for RequestVisit and PlaceReservation run under a per-listing
// lock and inside a store transaction; writes against different listings do
// not block each other.
type Service struct {
	store   domain.RecordStore
	clock   clock.Clock
	holdTTL time.Duration
	locks   *listingLocks
}

type Option func(*Service)

// WithHoldTTL overrides the default 48h reservation hold.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func NewService(store domain.RecordStore, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   clk,
		holdTTL: defaultHoldTTL,
		locks:   newListingLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RequestVisitInput struct {
	ListingID   int64
	RequesterID string
	Start       time.Time
	End         time.Time
	Notes       *string
}

func (s *Service) RequestVisit(ctx context.Context, in RequestVisitInput) (domain.VisitRequest, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return domain.VisitRequest{}, domain.Validation("requester_id", "required")
	}

	candidate := domain.VisitRequest{
		ListingID:   in.ListingID,
		RequesterID: in.RequesterID,
		Start:       in.Start,
		End:         in.End,
		State:       domain.VisitRequested,
		Notes:       in.Notes,
	}

	s.locks.lock(in.ListingID)
	defer s.locks.unlock(in.ListingID)

	err := s.withRetry(ctx, func(txCtx context.Context) error {
		ok, err := s.store.ListingExists(txCtx, in.ListingID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("listing")
		}

		existing, err := s.store.ListVisits(txCtx, in.ListingID)
		if err != nil {
			return err
		}
		if err := EvaluateVisit(candidate, existing); err != nil {
			return err
		}

		id, err := s.store.InsertVisit(txCtx, candidate)
		if err != nil {
			return err
		}
		candidate.ID = id
		return nil
	})
	observability.ObserveBooking("request_visit", outcome(err))
	if err != nil {
		return domain.VisitRequest{}, err
	}
	return candidate, nil
}

// ConfirmVisit marks a visit Confirmed. The overlap invariant was enforced
// when the request was accepted, so no conflict re-check happens here.
func (s *Service) ConfirmVisit(ctx context.Context, id int64) error {
	err := s.transition(ctx, id, domain.VisitConfirmed)
	observability.ObserveBooking("confirm_visit", outcome(err))
	return err
}

// CancelVisit marks a visit Cancelled unconditionally.
func (s *Service) CancelVisit(ctx context.Context, id int64) error {
	err := s.transition(ctx, id, domain.VisitCancelled)
	observability.ObserveBooking("cancel_visit", outcome(err))
	return err
}

func (s *Service) transition(ctx context.Context, id int64, state domain.VisitState) error {
	if _, err := s.store.FindVisit(ctx, id); err != nil {
		return err
	}
	return s.store.UpdateVisitState(ctx, id, state)
}

func (s *Service) PlaceReservation(ctx context.Context, listingID int64, requesterID string) (domain.Reservation, error) {
	if strings.TrimSpace(requesterID) == "" {
		return domain.Reservation{}, domain.Validation("requester_id", "required")
	}

	now := s.clock.Now()
	res := domain.Reservation{
		ListingID:   listingID,
		RequesterID: requesterID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.holdTTL),
	}

	s.locks.lock(listingID)
	defer s.locks.unlock(listingID)

	err := s.withRetry(ctx, func(txCtx context.Context) error {
		ok, err := s.store.ListingExists(txCtx, listingID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("listing")
		}

		active, err := s.store.ListActiveReservations(txCtx, listingID, now)
		if err != nil {
			return err
		}
		if err := EvaluateReservation(active); err != nil {
			return err
		}

		id, err := s.store.InsertReservation(txCtx, res)
		if err != nil {
			return err
		}
		res.ID = id
		return nil
	})
	observability.ObserveBooking("place_reservation", outcome(err))
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// ReleaseReservation removes the hold. Releasing an already-expired
// reservation succeeds; releasing a missing one reports NotFound, which is
// also what a repeated release sees.
func (s *Service) ReleaseReservation(ctx context.Context, id int64) error {
	err := s.store.DeleteReservation(ctx, id)
	observability.ObserveBooking("release_reservation", outcome(err))
	return err
}

// AgendaOn lists the visits starting on the given calendar day, earliest first.
func (s *Service) AgendaOn(ctx context.Context, day time.Time) ([]domain.VisitRequest, error) {
	return s.store.VisitsOn(ctx, day)
}

// ActiveReservations lists every live hold across listings, soonest expiry first.
func (s *Service) ActiveReservations(ctx context.Context) ([]domain.Reservation, error) {
	return s.store.ListAllActiveReservations(ctx, s.clock.Now())
}

func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
	}
	return domain.StoreFailure(err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
