package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/ecotrack/internal/api"
	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/outbox"
	"example.com/ecotrack/internal/persistence/memory"
	"example.com/ecotrack/internal/persistence/postgres"
	"example.com/ecotrack/internal/persistence/sqlite"
	"example.com/ecotrack/internal/random"
	"example.com/ecotrack/internal/realtime"
	"example.com/ecotrack/internal/telemetry"
	httptransport "example.com/ecotrack/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "ecotrack-api", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to initialise tracing: %v", err)
	}

	store, pool, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	// The outbox only exists in Postgres.
	var dispatcher *outbox.Dispatcher
	if pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	}

	src, err := random.NewSeededSource()
	if err != nil {
		log.Fatalf("failed to seed tip source: %v", err)
	}

	hub := realtime.NewHub(cfg.CORSOrigin)
	service := domain.NewService(store, domain.NewSuggester(src),
		domain.WithPublisher(api.NewBroadcaster(hub)),
		domain.WithRecentLimit(cfg.RecentLimit),
	)

	mux := http.NewServeMux()
	api.NewHandler(service, hub).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := telemetry.WrapHandler(api.Instrument(httptransport.CORS(cfg.CORSOrigin, mux), nil), "ecotrack-api")
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("ecotrack api listening on %s (store=%s)", cfg.HTTPAddress, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown failed: %v", err)
	}
}

// openStore returns the configured ledger store. pool is non-nil only for the
// postgres driver.
func openStore(ctx context.Context, cfg config.Config) (domain.LedgerStore, *pgxpool.Pool, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewRepository(pool), pool, pool.Close, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() { _ = store.Close() }, nil
	default:
		return memory.NewStore(), nil, func() {}, nil
	}
}
