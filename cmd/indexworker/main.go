// Command indexworker consumes index jobs from Kafka. Each job names an input
// file and an output file; the worker builds the index and writes the report
// exactly as the indexgen command would.
//
// Usage:
//
//	indexworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/job"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index worker",
		"topic", cfg.Kafka.Topics.IndexJobs,
		"group", cfg.Kafka.ConsumerGroup,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	opts := []job.Option{
		job.WithMetrics(m),
		job.WithPublisher(producer),
		job.WithTraceLog(cfg.Tracing.Enabled),
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, runs will not be recorded", "error", err)
		} else {
			defer db.Close()
			ledger := store.New(db)
			if err := ledger.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare run ledger", "error", err)
				os.Exit(apperrors.ExitFailure)
			}
			opts = append(opts, job.WithRecorder(ledger))
		}
	}

	runner, err := job.NewRunner(cfg.Indexer, opts...)
	if err != nil {
		slog.Error("invalid indexer configuration", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexJobs, consumer.HandleJob(runner, m))
	indexConsumer := consumer.New(kafkaConsumer)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("index worker stopped")
}
