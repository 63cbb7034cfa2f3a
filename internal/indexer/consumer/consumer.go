// Package consumer reads index jobs from Kafka and runs each one through the
// job runner. Jobs that can never succeed are committed and dropped. A job
// that failed on a resource is run again by the Kafka consumer, with backoff,
// before the next message is fetched.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/job"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
)

// JobRunner runs one index job.
type JobRunner interface {
	Run(ctx context.Context, j job.Job) (*job.Result, error)
}

// IndexConsumer wraps a Kafka consumer to drive index jobs.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleJob returns a Kafka MessageHandler that decodes an IndexJob and runs
// it. m may be nil.
func HandleJob(runner JobRunner, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	observe := func(status string) {
		if m != nil {
			m.JobsConsumedTotal.WithLabelValues(status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[events.IndexJob](value)
		if err != nil {
			logger.Error("dropping undecodable index job",
				"error", err,
				"key", string(key),
			)
			observe("rejected")
			return nil
		}
		if err := ev.Validate(); err != nil {
			logger.Error("dropping invalid index job",
				"job_id", ev.JobID,
				"error", err,
			)
			observe("rejected")
			return nil
		}

		logger.Debug("processing index job",
			"job_id", ev.JobID,
			"input", ev.InputPath,
			"output", ev.OutputPath,
			"workers", ev.Workers,
		)
		_, err = runner.Run(ctx, job.Job{
			ID:         ev.JobID,
			Source:     job.SourceKafka,
			InputPath:  ev.InputPath,
			OutputPath: ev.OutputPath,
			Workers:    ev.Workers,
		})
		switch {
		case err == nil:
			observe("ok")
			return nil
		case apperrors.IsPermanent(err):
			observe("rejected")
			return nil
		default:
			// Every attempt is already recorded in the run ledger.
			observe("failed")
			return err
		}
	}
}
