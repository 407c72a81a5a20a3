// Command consumer reads tracker events from Kafka into the event log and the
// impact metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/consumer"
	httptransport "example.com/ecotrack/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("consumer: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.ConsumerTopics) == 0 {
		return errors.New("CONSUMER_TOPICS is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	logger := log.New(log.Writer(), "[consumer] ", log.LstdFlags)
	handler := consumer.Fanout{
		consumer.NewEventLogHandler(pool),
		consumer.NewImpactHandler(nil),
	}

	go func() {
		if err := httptransport.ServeMetrics(ctx, cfg.MetricsAddress, logger); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := newReader(cfg, topic)
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			logger.Printf("reading %s as %s", topic, cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("%s stopped: %v", topic, err)
			}
		}()
	}

	<-ctx.Done()
	logger.Println("shutting down")
	wg.Wait()
	return nil
}

func newReader(cfg config.Config, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           topic,
		MinBytes:        1,
		MaxBytes:        1 << 20,
		MaxWait:         time.Second,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
}
