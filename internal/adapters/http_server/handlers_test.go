package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "estate_portal/internal/adapters/http_server"
	"estate_portal/internal/adapters/memcache"
	"estate_portal/internal/booking"
	"estate_portal/internal/catalog"
	"estate_portal/internal/clock"
	"estate_portal/internal/domain"
	"estate_portal/internal/testutil"
)

var t0 = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, rps int) (*httptest.Server, *testutil.MemStore, *clock.Manual) {
	t.Helper()
	store := testutil.NewMemStore()
	clk := clock.NewManual(t0)
	cat := catalog.NewService(store, memcache.New(clk), clk, 60*time.Second)
	bk := booking.NewService(store, clk)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Catalog: cat, Booking: bk, RateRPS: rps})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, store, clk
}

func seedListing(store *testutil.MemStore) domain.Listing {
	return store.AddListing(domain.Listing{
		Code: "DEP-001", Title: "Departamento céntrico", Type: domain.TypeApartment,
		City: "Santiago", Address: "Av. Alameda 123", Bedrooms: 2, Bathrooms: 1,
		AreaM2: 55, Price: 120000000, Active: true,
	})
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requester-ID", "u-1")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return res
}

func TestCatalogEndpoint(t *testing.T) {
	ts, store, _ := newTestServer(t, 1000)
	seedListing(store)

	res, err := http.Get(ts.URL + "/v1/catalog?city=Santiago")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	var page struct {
		Items      []struct{ Code string } `json:"items"`
		TotalCount int                     `json:"total_count"`
		TotalPages int                     `json:"total_pages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].Code != "DEP-001" {
		t.Fatalf("page: %+v", page)
	}

	// conditional re-read short-circuits
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/catalog?city=Santiago", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("status %d, want 304", res2.StatusCode)
	}
}

func TestCatalogEndpoint_BadFilter(t *testing.T) {
	ts, _, _ := newTestServer(t, 1000)

	res, err := http.Get(ts.URL + "/v1/catalog?price_min=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestListingDetailEndpoint(t *testing.T) {
	ts, store, _ := newTestServer(t, 1000)
	l := seedListing(store)

	res, err := http.Get(fmt.Sprintf("%s/v1/listings/%d", ts.URL, l.ID))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Code       string `json:"code"`
		CanReserve bool   `json:"can_reserve"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "DEP-001" || !body.CanReserve {
		t.Fatalf("body: %+v", body)
	}

	res404, _ := http.Get(ts.URL + "/v1/listings/999")
	res404.Body.Close()
	if res404.StatusCode != http.StatusNotFound {
		t.Fatalf("missing listing status %d", res404.StatusCode)
	}
}

func TestVisitFlow(t *testing.T) {
	ts, store, _ := newTestServer(t, 1000)
	l := seedListing(store)
	base := fmt.Sprintf("%s/v1/listings/%d/visits", ts.URL, l.ID)

	res := doJSON(t, http.MethodPost, base, map[string]any{
		"start": "2025-06-12T10:00:00Z", "end": "2025-06-12T11:00:00Z", "notes": "bring keys",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", res.StatusCode)
	}
	var created struct {
		ID    int64  `json:"id"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.State != "requested" {
		t.Fatalf("state %q", created.State)
	}

	// overlapping request conflicts
	res2 := doJSON(t, http.MethodPost, base, map[string]any{
		"start": "2025-06-12T10:30:00Z", "end": "2025-06-12T11:30:00Z",
	})
	res2.Body.Close()
	if res2.StatusCode != http.StatusConflict {
		t.Fatalf("overlap status %d", res2.StatusCode)
	}

	// outside business hours
	res3 := doJSON(t, http.MethodPost, base, map[string]any{
		"start": "2025-06-12T07:59:00Z", "end": "2025-06-12T09:00:00Z",
	})
	res3.Body.Close()
	if res3.StatusCode != http.StatusBadRequest {
		t.Fatalf("early start status %d", res3.StatusCode)
	}

	// confirm, then cancel
	resC := doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/visits/%d/confirm", ts.URL, created.ID), nil)
	resC.Body.Close()
	if resC.StatusCode != http.StatusNoContent {
		t.Fatalf("confirm status %d", resC.StatusCode)
	}
	resX := doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/visits/%d/cancel", ts.URL, created.ID), nil)
	resX.Body.Close()
	if resX.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status %d", resX.StatusCode)
	}

	resM := doJSON(t, http.MethodPost, ts.URL+"/v1/visits/999/confirm", nil)
	resM.Body.Close()
	if resM.StatusCode != http.StatusNotFound {
		t.Fatalf("confirm missing status %d", resM.StatusCode)
	}
}

func TestReservationFlow(t *testing.T) {
	ts, store, _ := newTestServer(t, 1000)
	l := seedListing(store)
	base := fmt.Sprintf("%s/v1/listings/%d/reservations", ts.URL, l.ID)

	res := doJSON(t, http.MethodPost, base, nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("place status %d", res.StatusCode)
	}
	var created struct {
		ID        int64     `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := t0.Add(48 * time.Hour); !created.ExpiresAt.Equal(want) {
		t.Fatalf("expires %v, want %v", created.ExpiresAt, want)
	}

	res2 := doJSON(t, http.MethodPost, base, nil)
	res2.Body.Close()
	if res2.StatusCode != http.StatusConflict {
		t.Fatalf("second hold status %d", res2.StatusCode)
	}

	rel := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/v1/reservations/%d", ts.URL, created.ID), nil)
	rel.Body.Close()
	if rel.StatusCode != http.StatusNoContent {
		t.Fatalf("release status %d", rel.StatusCode)
	}
	rel2 := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/v1/reservations/%d", ts.URL, created.ID), nil)
	rel2.Body.Close()
	if rel2.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat release status %d", rel2.StatusCode)
	}
}

func TestListingManagement(t *testing.T) {
	ts, _, _ := newTestServer(t, 1000)

	body := map[string]any{
		"code": "CAS-002", "title": "Casa con patio", "type": "house",
		"city": "Valparaíso", "address": "Calle Cerro 456",
		"bedrooms": 3, "bathrooms": 2, "area_m2": 120, "price": 220000000, "active": true,
	}
	res := doJSON(t, http.MethodPost, ts.URL+"/v1/listings", body)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", res.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	dup := doJSON(t, http.MethodPost, ts.URL+"/v1/listings", body)
	dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate code status %d", dup.StatusCode)
	}

	off := doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/listings/%d/active", ts.URL, created.ID), map[string]any{"active": false})
	off.Body.Close()
	if off.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate status %d", off.StatusCode)
	}
}

func TestBookingRateLimit(t *testing.T) {
	ts, store, _ := newTestServer(t, 1)
	l := seedListing(store)
	url := fmt.Sprintf("%s/v1/listings/%d/reservations", ts.URL, l.ID)

	first := doJSON(t, http.MethodPost, url, nil)
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first status %d", first.StatusCode)
	}
	second := doJSON(t, http.MethodPost, url, nil)
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status %d, want 429", second.StatusCode)
	}

	// reads are not limited
	res, _ := http.Get(ts.URL + "/v1/catalog")
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("catalog status %d", res.StatusCode)
	}
}
