package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"estate_portal/internal/booking"
	"estate_portal/internal/catalog"
	"estate_portal/internal/domain"
)

type Handlers struct {
	Catalog *catalog.Service
	Booking *booking.Service
	RateRPS int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/catalog", h.queryCatalog)
	s.mux.Get("/v1/listings/{id}", h.listingDetail)
	s.mux.Get("/v1/agenda", h.agenda)
	s.mux.Get("/v1/reservations/active", h.activeReservations)

	// listing management (identity/authorization is the embedding service's concern)
	s.mux.Post("/v1/listings", h.createListing)
	s.mux.Put("/v1/listings/{id}", h.updateListing)
	s.mux.Post("/v1/listings/{id}/active", h.setListingActive)

	// booking writes sit behind the per-client limiter
	rps := h.RateRPS
	if rps <= 0 {
		rps = 10
	}
	s.mux.Group(func(g chi.Router) {
		g.Use(RateLimit(rps))
		g.Post("/v1/listings/{id}/visits", h.requestVisit)
		g.Post("/v1/visits/{id}/confirm", h.confirmVisit)
		g.Post("/v1/visits/{id}/cancel", h.cancelVisit)
		g.Post("/v1/listings/{id}/reservations", h.placeReservation)
		g.Delete("/v1/reservations/{id}", h.releaseReservation)
	})
}

// ---- wire DTOs ----

type listingDTO struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	City      string  `json:"city"`
	Address   string  `json:"address"`
	Image     *string `json:"image,omitempty"`
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	AreaM2    int     `json:"area_m2"`
	Price     float64 `json:"price"`
	Active    bool    `json:"active"`
}

type catalogDTO struct {
	Items      []listingDTO `json:"items"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	TotalCount int          `json:"total_count"`
}

type visitDTO struct {
	ID          int64     `json:"id"`
	ListingID   int64     `json:"listing_id"`
	RequesterID string    `json:"requester_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	State       string    `json:"state"`
	Notes       *string   `json:"notes,omitempty"`
}

type reservationDTO struct {
	ID          int64     `json:"id"`
	ListingID   int64     `json:"listing_id"`
	RequesterID string    `json:"requester_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toListingDTO(l domain.Listing) listingDTO {
	return listingDTO{
		ID: l.ID, Code: l.Code, Title: l.Title, Type: string(l.Type),
		City: l.City, Address: l.Address, Image: l.Image,
		Bedrooms: l.Bedrooms, Bathrooms: l.Bathrooms, AreaM2: l.AreaM2,
		Price: l.Price, Active: l.Active,
	}
}

func toVisitDTO(v domain.VisitRequest) visitDTO {
	return visitDTO{
		ID: v.ID, ListingID: v.ListingID, RequesterID: v.RequesterID,
		Start: v.Start, End: v.End, State: string(v.State), Notes: v.Notes,
	}
}

func toReservationDTO(r domain.Reservation) reservationDTO {
	return reservationDTO{
		ID: r.ID, ListingID: r.ListingID, RequesterID: r.RequesterID,
		CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt,
	}
}

// ---- catalog reads ----

func (h *Handlers) queryCatalog(w http.ResponseWriter, r *http.Request) {
	f, page, err := parseFilter(r)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out, err := h.Catalog.Query(r.Context(), f, page)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	resp := catalogDTO{Items: make([]listingDTO, 0, len(out.Items)), Page: out.Page, TotalPages: out.TotalPages, TotalCount: out.TotalCount}
	for _, l := range out.Items {
		resp.Items = append(resp.Items, toListingDTO(l))
	}
	writeWithETag(w, r, resp)
}

func (h *Handlers) listingDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, canReserve, err := h.Catalog.Detail(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	resp := struct {
		listingDTO
		CanReserve bool `json:"can_reserve"`
	}{toListingDTO(l), canReserve}
	writeWithETag(w, r, resp)
}

func (h *Handlers) agenda(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if ds := r.URL.Query().Get("date"); ds != "" {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	visits, err := h.Booking.AgendaOn(r.Context(), day)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]visitDTO, 0, len(visits))
	for _, v := range visits {
		out = append(out, toVisitDTO(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) activeReservations(w http.ResponseWriter, r *http.Request) {
	res, err := h.Booking.ActiveReservations(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]reservationDTO, 0, len(res))
	for _, rr := range res {
		out = append(out, toReservationDTO(rr))
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- listing management ----

type listingWriteReq struct {
	Code      string  `json:"code"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	City      string  `json:"city"`
	Address   string  `json:"address"`
	Image     *string `json:"image"`
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	AreaM2    int     `json:"area_m2"`
	Price     float64 `json:"price"`
	Active    bool    `json:"active"`
}

func (req listingWriteReq) toDomain(id int64) domain.Listing {
	return domain.Listing{
		ID: id, Code: req.Code, Title: req.Title, Type: domain.ListingType(req.Type),
		City: req.City, Address: req.Address, Image: req.Image,
		Bedrooms: req.Bedrooms, Bathrooms: req.Bathrooms, AreaM2: req.AreaM2,
		Price: req.Price, Active: req.Active,
	}
}

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingWriteReq
	if !decode(w, r, &req) {
		return
	}
	l, err := h.Catalog.CreateListing(r.Context(), req.toDomain(0))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingDTO(l))
}

func (h *Handlers) updateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req listingWriteReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.Catalog.UpdateListing(r.Context(), req.toDomain(id)); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setListingActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Catalog.SetActive(r.Context(), id, req.Active); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- booking writes ----

func (h *Handlers) requestVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
		Notes *string   `json:"notes"`
	}
	if !decode(w, r, &req) {
		return
	}
	v, err := h.Booking.RequestVisit(r.Context(), booking.RequestVisitInput{
		ListingID:   id,
		RequesterID: requesterID(r),
		Start:       req.Start,
		End:         req.End,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVisitDTO(v))
}

func (h *Handlers) confirmVisit(w http.ResponseWriter, r *http.Request) {
	h.visitTransition(w, r, h.Booking.ConfirmVisit)
}

func (h *Handlers) cancelVisit(w http.ResponseWriter, r *http.Request) {
	h.visitTransition(w, r, h.Booking.CancelVisit)
}

func (h *Handlers) visitTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) error) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) placeReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Booking.PlaceReservation(r.Context(), id, requesterID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

func (h *Handlers) releaseReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Booking.ReleaseReservation(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// requesterID comes from the identity collaborator in front of this service;
// the core treats it as opaque.
func requesterID(r *http.Request) string {
	return r.Header.Get("X-Requester-ID")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "malformed JSON request body")
		return false
	}
	return true
}

func parseFilter(r *http.Request) (domain.CatalogFilter, int, error) {
	q := r.URL.Query()
	var f domain.CatalogFilter
	if v := strings.TrimSpace(q.Get("city")); v != "" {
		f.City = &v
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t := domain.ListingType(v)
		f.Type = &t
	}
	if v := q.Get("price_min"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, 0, domain.Validation("price_min", "must be a number")
		}
		f.PriceMin = &p
	}
	if v := q.Get("price_max"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, 0, domain.Validation("price_max", "must be a number")
		}
		f.PriceMax = &p
	}
	if v := q.Get("bedrooms_min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, 0, domain.Validation("bedrooms_min", "must be an integer")
		}
		f.BedroomsMin = &n
	}
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, 0, domain.Validation("page", "must be an integer")
		}
		page = n
	}
	return f, page, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeDomainErr maps the error taxonomy onto problem+json responses.
func writeDomainErr(w http.ResponseWriter, err error) {
	var de *domain.Error
	field := ""
	if errors.As(err, &de) {
		field = de.Field
	}
	status, title := http.StatusInternalServerError, "Internal Error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, domain.ErrConflict):
		status, title = http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, domain.ErrStore):
		status, title = http.StatusServiceUnavailable, "Store Unavailable"
	}
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled error")
		detail = "unexpected failure"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Field: field}); encErr != nil {
		log.Error().Err(encErr).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}
