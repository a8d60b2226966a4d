package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "estate_portal/internal/adapters/http_server"
	"estate_portal/internal/adapters/memcache"
	"estate_portal/internal/adapters/observability"
	redisad "estate_portal/internal/adapters/redis"
	"estate_portal/internal/booking"
	"estate_portal/internal/catalog"
	"estate_portal/internal/clock"
	"estate_portal/internal/domain"
	"estate_portal/internal/shared"
	mysqlstore "estate_portal/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	clk := clock.NewSystem()
	store := mysqlstore.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("catalog cache on redis")
	} else {
		cache = memcache.New(clk)
		log.Info().Msg("catalog cache in process memory")
	}

	cat := catalog.NewService(store, cache, clk, cfg.CacheTTL)
	bk := booking.NewService(store, clk, booking.WithHoldTTL(cfg.HoldTTL))

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Catalog: cat, Booking: bk, RateRPS: cfg.RateRPS})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
