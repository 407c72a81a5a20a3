// Command dlqmanager replays dead-lettered tracker events into the outbox.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/outbox"
	httptransport "example.com/ecotrack/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("dlqmanager: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	logger := log.New(log.Writer(), "[dlq] ", log.LstdFlags)
	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := httptransport.ServeMetrics(ctx, cfg.MetricsAddress, logger); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()

	logger.Printf("polling every %s, quarantine after %d retries", cfg.DLQPollInterval, cfg.DLQMaxRetries)
	poll(ctx, cfg.DLQPollInterval, func() {
		requeued, err := manager.RunOnce(ctx, cfg.DLQBatchSize)
		switch {
		case err != nil:
			logger.Printf("run: %v", err)
		case requeued > 0:
			logger.Printf("requeued %d entries", requeued)
		}
	})

	<-metricsDone
	return nil
}

// poll calls fn every interval until ctx is done.
func poll(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
