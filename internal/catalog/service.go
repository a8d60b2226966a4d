package catalog

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"estate_portal/internal/clock"
	"estate_portal/internal/domain"
)

// PageSize is the fixed catalog page length.
const PageSize = 6

// Service answers catalog reads through a TTL cache and owns the broker-side
// listing writes. The cache is never invalidated on write: a listing edit or
// deactivation stays visible in cached pages until the entry's TTL elapses.
// That bounded staleness is the documented contract.
type Service struct {
	store domain.RecordStore
	cache domain.Cache
	clock clock.Clock
	ttl   time.Duration
}

func NewService(store domain.RecordStore, cache domain.Cache, clk clock.Clock, ttl time.Duration) *Service {
	return &Service{store: store, cache: cache, clock: clk, ttl: ttl}
}

func (s *Service) Query(ctx context.Context, f domain.CatalogFilter, page int) (domain.CatalogPage, error) {
	if err := f.Validate(); err != nil {
		return domain.CatalogPage{}, err
	}
	if page < 1 {
		page = 1
	}

	key := cacheKey(f, page)
	var out domain.CatalogPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	total, err := s.store.CountListings(ctx, f)
	if err != nil {
		return domain.CatalogPage{}, err
	}
	totalPages := int(math.Ceil(float64(total) / float64(PageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	items, err := s.store.ListListings(ctx, f, (page-1)*PageSize, PageSize)
	if err != nil {
		return domain.CatalogPage{}, err
	}

	out = domain.CatalogPage{Items: items, Page: page, TotalPages: totalPages, TotalCount: total}

	// copy before caching so callers can't mutate the cached page
	_ = s.cache.Set(ctx, key, copyPage(out), int(s.ttl.Seconds()))
	return out, nil
}

// Detail returns an active listing together with whether it can currently be
// reserved (no live hold at this instant). Reads the store directly; detail
// pages are not cached.
func (s *Service) Detail(ctx context.Context, id int64) (domain.Listing, bool, error) {
	l, err := s.store.FindListing(ctx, id)
	if err != nil {
		return domain.Listing{}, false, err
	}
	if !l.Active {
		return domain.Listing{}, false, domain.NotFound("listing")
	}
	active, err := s.store.ListActiveReservations(ctx, id, s.clock.Now())
	if err != nil {
		return domain.Listing{}, false, err
	}
	return l, len(active) == 0, nil
}

func (s *Service) CreateListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if err := validateListing(l); err != nil {
		return domain.Listing{}, err
	}
	taken, err := s.store.CodeInUse(ctx, l.Code, 0)
	if err != nil {
		return domain.Listing{}, err
	}
	if taken {
		return domain.Listing{}, domain.Conflict("code", "code already exists")
	}
	id, err := s.store.InsertListing(ctx, l)
	if err != nil {
		return domain.Listing{}, err
	}
	l.ID = id
	return l, nil
}

func (s *Service) UpdateListing(ctx context.Context, l domain.Listing) error {
	if err := validateListing(l); err != nil {
		return err
	}
	if _, err := s.store.FindListing(ctx, l.ID); err != nil {
		return err
	}
	taken, err := s.store.CodeInUse(ctx, l.Code, l.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Conflict("code", "code already exists")
	}
	return s.store.UpdateListing(ctx, l)
}

// SetActive flips a listing in or out of the catalog. Cached pages keep
// serving the old flag until their TTL runs out.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if _, err := s.store.FindListing(ctx, id); err != nil {
		return err
	}
	return s.store.SetListingActive(ctx, id, active)
}

func validateListing(l domain.Listing) error {
	switch {
	case strings.TrimSpace(l.Code) == "":
		return domain.Validation("code", "required")
	case len(l.Code) > 50:
		return domain.Validation("code", "at most 50 characters")
	case strings.TrimSpace(l.Title) == "":
		return domain.Validation("title", "required")
	case strings.TrimSpace(l.City) == "":
		return domain.Validation("city", "required")
	case !l.Type.Valid():
		return domain.Validation("type", "unknown listing type")
	case l.Price <= 0:
		return domain.Validation("price", "must be positive")
	case l.Bedrooms < 0 || l.Bedrooms > 50:
		return domain.Validation("bedrooms", "must be between 0 and 50")
	case l.Bathrooms < 0 || l.Bathrooms > 50:
		return domain.Validation("bathrooms", "must be between 0 and 50")
	case l.AreaM2 < 1:
		return domain.Validation("area_m2", "must be positive")
	}
	return nil
}

// cacheKey derives the canonical signature of a filter + page. Unset fields
// collapse to "-" so logically equal filters share an entry.
func cacheKey(f domain.CatalogFilter, page int) string {
	city, typ, pmin, pmax, beds := "-", "-", "-", "-", "-"
	if f.City != nil {
		city = strings.ToLower(strings.TrimSpace(*f.City))
	}
	if f.Type != nil {
		typ = string(*f.Type)
	}
	if f.PriceMin != nil {
		pmin = strconv.FormatFloat(*f.PriceMin, 'f', -1, 64)
	}
	if f.PriceMax != nil {
		pmax = strconv.FormatFloat(*f.PriceMax, 'f', -1, 64)
	}
	if f.BedroomsMin != nil {
		beds = strconv.Itoa(*f.BedroomsMin)
	}
	return fmt.Sprintf("catalog:%s:%s:%s:%s:%s:%d", city, typ, pmin, pmax, beds, page)
}

func copyPage(in domain.CatalogPage) domain.CatalogPage {
	out := in
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Listing, n)
		copy(out.Items, in.Items)
	}
	return out
}
