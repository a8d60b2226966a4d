//go:build integration || !unit

package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	server "estate_portal/internal/adapters/http_server"
	redisad "estate_portal/internal/adapters/redis"
	"estate_portal/internal/booking"
	"estate_portal/internal/catalog"
	"estate_portal/internal/clock"
	mysqlstore "estate_portal/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requester-ID", "e2e-user")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return res
}

// ---------- the test ----------

// Full stack: real MySQL in a container, real redis protocol via miniredis,
// the chi router, and both services wired the same way cmd/api does it.
func TestHTTP_EndToEnd_ReservationFlow(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=portal",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "portal")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	mr := miniredis.RunT(t)
	cache := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	store := mysqlstore.New(db)
	clk := clock.NewSystem()
	cat := catalog.NewService(store, cache, clk, 60*time.Second)
	bk := booking.NewService(store, clk)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Catalog: cat, Booking: bk, RateRPS: 1000})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// create a listing through the API
	res := post(t, ts.URL+"/v1/listings", map[string]any{
		"code": "DEP-001", "title": "Departamento céntrico", "type": "apartment",
		"city": "Santiago", "address": "Av. Alameda 123",
		"bedrooms": 2, "bathrooms": 1, "area_m2": 55, "price": 120000000, "active": true,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create listing status %d", res.StatusCode)
	}
	var listing struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	res.Body.Close()

	// catalog sees it (and warms the cache)
	catRes, err := http.Get(ts.URL + "/v1/catalog?city=Santiago")
	if err != nil {
		t.Fatalf("catalog GET: %v", err)
	}
	var page struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.NewDecoder(catRes.Body).Decode(&page); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	catRes.Body.Close()
	if page.TotalCount != 1 {
		t.Fatalf("catalog total = %d, want 1", page.TotalCount)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("catalog page was not cached")
	}

	// place a hold; detail flips can_reserve
	holdRes := post(t, fmt.Sprintf("%s/v1/listings/%d/reservations", ts.URL, listing.ID), nil)
	if holdRes.StatusCode != http.StatusCreated {
		t.Fatalf("reservation status %d", holdRes.StatusCode)
	}
	var hold struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(holdRes.Body).Decode(&hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}
	holdRes.Body.Close()

	detRes, err := http.Get(fmt.Sprintf("%s/v1/listings/%d", ts.URL, listing.ID))
	if err != nil {
		t.Fatalf("detail GET: %v", err)
	}
	var det struct {
		CanReserve bool `json:"can_reserve"`
	}
	if err := json.NewDecoder(detRes.Body).Decode(&det); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	detRes.Body.Close()
	if det.CanReserve {
		t.Fatal("can_reserve should be false while a hold is live")
	}

	// competing hold conflicts
	dupRes := post(t, fmt.Sprintf("%s/v1/listings/%d/reservations", ts.URL, listing.ID), nil)
	dupRes.Body.Close()
	if dupRes.StatusCode != http.StatusConflict {
		t.Fatalf("second hold status %d, want 409", dupRes.StatusCode)
	}

	// release frees the listing again
	relReq, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/v1/reservations/%d", ts.URL, hold.ID), nil)
	relReq.Header.Set("X-Requester-ID", "e2e-user")
	relRes, err := http.DefaultClient.Do(relReq)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	relRes.Body.Close()
	if relRes.StatusCode != http.StatusNoContent {
		t.Fatalf("release status %d", relRes.StatusCode)
	}

	det2Res, err := http.Get(fmt.Sprintf("%s/v1/listings/%d", ts.URL, listing.ID))
	if err != nil {
		t.Fatalf("detail GET: %v", err)
	}
	var det2 struct {
		CanReserve bool `json:"can_reserve"`
	}
	if err := json.NewDecoder(det2Res.Body).Decode(&det2); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	det2Res.Body.Close()
	if !det2.CanReserve {
		t.Fatal("can_reserve should be true after release")
	}
}
