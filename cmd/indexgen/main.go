// Command indexgen builds a letter-partitioned inverted index of a text file
// and writes the sorted report.
//
// Usage:
//
//	indexgen [-config file] [-strip-punct] [-on-unindexable skip|error] <workers> <infile> <outfile>
//
// Exit status is 0 on success, 2 on a configuration error and 1 on any other
// failure. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/job"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("indexgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	stripPunct := fs.Bool("strip-punct", false, "strip leading and trailing ASCII punctuation from words")
	onUnindexable := fs.String("on-unindexable", "", `policy for words not starting with a-z: "skip" or "error"`)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: indexgen [flags] <workers> <infile> <outfile>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return apperrors.ExitOK
		}
		return apperrors.ExitConfigError
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return apperrors.ExitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "indexgen: %v\n", err)
		return apperrors.ExitCode(err)
	}
	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("cli")

	workers, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		log.Error("invalid worker count", "value", fs.Arg(0))
		fmt.Fprintf(stderr, "indexgen: %s: worker count must be an integer\n", apperrors.ErrInvalidConfig)
		return apperrors.ExitConfigError
	}
	cfg.Indexer.Workers = workers
	if *stripPunct {
		cfg.Indexer.StripPunctuation = true
	}
	if *onUnindexable != "" {
		cfg.Indexer.Unindexable = *onUnindexable
	}
	if err := cfg.Indexer.Validate(); err != nil {
		fmt.Fprintf(stderr, "indexgen: %v\n", err)
		return apperrors.ExitCode(err)
	}

	opts := []job.Option{job.WithTraceLog(cfg.Tracing.Enabled)}
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			log.Warn("postgres unavailable, run will not be recorded", "error", err)
		} else {
			defer db.Close()
			runs := store.New(db)
			if err := runs.EnsureSchema(ctx); err != nil {
				log.Warn("run ledger unavailable", "error", err)
			} else {
				opts = append(opts, job.WithRecorder(runs))
			}
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, job.WithPublisher(producer))
	}

	runner, err := job.NewRunner(cfg.Indexer, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "indexgen: %v\n", err)
		return apperrors.ExitCode(err)
	}

	res, err := runner.Run(ctx, job.Job{
		ID:         tracing.NewTraceID(),
		Source:     job.SourceCLI,
		InputPath:  fs.Arg(1),
		OutputPath: fs.Arg(2),
	})
	if err != nil {
		fmt.Fprintf(stderr, "indexgen: %v\n", err)
		return apperrors.ExitCode(err)
	}
	log.Debug("report written",
		slog.String("output", fs.Arg(2)),
		slog.Int64("bytes", res.Bytes),
		slog.Int("words", res.Stats.Words),
	)
	return apperrors.ExitOK
}
