package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"estate_portal/internal/adapters/observability"
	"estate_portal/internal/domain"
	"estate_portal/internal/shared"
	mysqlstore "estate_portal/internal/storage/mysql"
)

func ptr[T any](v T) *T { return &v }

// demo catalog loaded into a fresh database; skips listings whose code exists
var seedListings = []domain.Listing{
	{Code: "DEP-001", Title: "Departamento céntrico", Type: domain.TypeApartment, City: "Santiago",
		Address: "Av. Alameda 123", Image: ptr("/img/depto1.jpg"), Bedrooms: 2, Bathrooms: 1,
		AreaM2: 55, Price: 120_000_000, Active: true},
	{Code: "CAS-002", Title: "Casa con patio", Type: domain.TypeHouse, City: "Valparaíso",
		Address: "Calle Cerro 456", Image: ptr("/img/casa1.jpg"), Bedrooms: 3, Bathrooms: 2,
		AreaM2: 120, Price: 220_000_000, Active: true},
	{Code: "OFI-003", Title: "Oficina en centro financiero", Type: domain.TypeOffice, City: "Santiago",
		Address: "Isidora Goyenechea 789", Image: ptr("/img/ofi1.jpg"), Bedrooms: 0, Bathrooms: 1,
		AreaM2: 80, Price: 350_000_000, Active: true},
	{Code: "LOC-004", Title: "Local comercial alto flujo", Type: domain.TypeRetail, City: "Concepción",
		Address: "Barros Arana 1010", Image: ptr("/img/local1.jpg"), Bedrooms: 0, Bathrooms: 1,
		AreaM2: 65, Price: 180_000_000, Active: true},
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	log.Info().Int("workers", cfg.SeedWorkers).Int("listings", len(seedListings)).Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	store := mysqlstore.New(db)
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for _, l := range seedListings {
		l := l

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(l domain.Listing) {
			defer wg.Done()
			defer sem.Release(1)

			taken, err := store.CodeInUse(ctx, l.Code, 0)
			if err != nil {
				log.Warn().Str("code", l.Code).Err(err).Msg("code check failed")
				return
			}
			if taken {
				log.Info().Str("code", l.Code).Msg("already seeded, skipping")
				return
			}
			id, err := store.InsertListing(ctx, l)
			if err != nil {
				log.Warn().Str("code", l.Code).Err(err).Msg("seed failed")
				return
			}
			log.Info().Str("code", l.Code).Int64("id", id).Msg("seed ok")
		}(l)
	}

	wg.Wait()
	log.Info().Msg("seeding completed")
}
