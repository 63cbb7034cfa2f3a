// Command indexd serves the indexer over HTTP.
//
// Redis, PostgreSQL and Kafka are optional: without Redis reports are not
// cached, without PostgreSQL runs are not recorded and without Kafka no
// completion events are published.
//
// Usage:
//
//	indexd [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/cache"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/job"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/server"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/redis"
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
	slog.Info("starting index service", "port", cfg.Server.Port, "workers", cfg.Indexer.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	opts := []job.Option{job.WithMetrics(m), job.WithTraceLog(cfg.Tracing.Enabled)}

	var reportCache *cache.ReportCache
	var redisPing func(context.Context) error
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, report caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			reportCache = cache.New(redisClient, cfg.Redis, m)
			redisPing = redisClient.Ping
			slog.Info("report cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	checker.Register("redis", health.PingCheck(redisPing, health.StatusDegraded))

	var runs server.RunLister
	var dbPing func(context.Context) error
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
			runs = ledger
			dbPing = db.Ping
			opts = append(opts, job.WithRecorder(ledger))
			slog.Info("run ledger enabled", "database", cfg.Postgres.Database)
		}
	}
	checker.Register("postgres", health.PingCheck(dbPing, health.StatusDegraded))

	var kafkaPing func(context.Context) error
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, job.WithPublisher(producer))
		kafkaPing = func(ctx context.Context) error { return kafka.Ping(ctx, cfg.Kafka.Brokers) }
		slog.Info("completion events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}
	checker.Register("kafka", health.PingCheck(kafkaPing, health.StatusDegraded))

	runner, err := job.NewRunner(cfg.Indexer, opts...)
	if err != nil {
		slog.Error("invalid indexer configuration", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}

	h := server.New(runner, reportCache, runs, cfg.Indexer.MaxDocumentBytes)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, checker, m, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("index service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(apperrors.ExitFailure)
	}

	slog.Info("index service stopped")
}
