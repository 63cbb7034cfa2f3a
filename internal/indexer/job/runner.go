// Package job runs one complete index job: read a document, build and sort
// the partitioned index, write the report, then record and announce the
// outcome. The CLI, the Kafka worker and the HTTP service share it.
package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/report"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/tracing"
)

// Sources recorded in the run ledger.
const (
	SourceCLI   = "cli"
	SourceKafka = "kafka"
	SourceHTTP  = "http"
)

var bookkeepingRetry = resilience.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
}

// Job describes one run. Workers of zero selects the configured default.
type Job struct {
	ID         string
	Source     string
	InputPath  string
	OutputPath string
	Workers    int
}

// Result is the outcome of a successful run.
type Result struct {
	*indexer.Result
	JobID    string
	Workers  int
	Duration time.Duration
}

// Recorder persists finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, run *store.Run) error
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Runner executes jobs against a base indexer configuration.
type Runner struct {
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	recorder  Recorder
	publisher Publisher
	traceLog  bool
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics reports run metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRecorder saves every run, successful or not.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithPublisher publishes an IndexComplete event after every run.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithTraceLog logs the span tree of every run.
func WithTraceLog(enabled bool) Option {
	return func(r *Runner) { r.traceLog = enabled }
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg config.IndexerConfig, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		logger: slog.Default().With("component", "job-runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run indexes the file at j.InputPath and atomically writes the report to
// j.OutputPath. On failure no output file is left behind.
func (r *Runner) Run(ctx context.Context, j Job) (*Result, error) {
	return r.execute(ctx, j, func() (io.ReadCloser, error) {
		f, err := os.Open(j.InputPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInputUnreadable, err)
		}
		return f, nil
	}, func(idx *index.Index) (int64, error) {
		return report.WriteFile(j.OutputPath, idx)
	})
}

// RunDocument indexes doc and writes the report to w. j.InputPath and
// j.OutputPath are ignored.
func (r *Runner) RunDocument(ctx context.Context, j Job, doc io.Reader, w io.Writer) (*Result, error) {
	return r.execute(ctx, j, func() (io.ReadCloser, error) {
		return io.NopCloser(doc), nil
	}, func(idx *index.Index) (int64, error) {
		return report.Write(w, idx)
	})
}

// EngineConfig returns the indexer configuration used for a run with the
// given worker override.
func (r *Runner) EngineConfig(workers int) config.IndexerConfig {
	cfg := r.cfg
	if workers != 0 {
		cfg.Workers = workers
	}
	return cfg
}

func (r *Runner) execute(
	ctx context.Context,
	j Job,
	open func() (io.ReadCloser, error),
	emit indexer.EmitFunc,
) (*Result, error) {
	start := time.Now()
	ctx = logger.WithRequestID(ctx, j.ID)
	ctx, root := tracing.StartSpan(ctx, "build", tracing.NewTraceID())
	root.SetAttr("job_id", j.ID)
	root.SetAttr("source", j.Source)

	cfg := r.EngineConfig(j.Workers)
	res, err := r.build(ctx, cfg, open, emit)
	root.End()

	var out *Result
	if err == nil {
		out = &Result{Result: res, JobID: j.ID, Workers: cfg.Workers, Duration: time.Since(start)}
	}
	r.finish(ctx, j, cfg, out, err, time.Since(start))
	if r.traceLog {
		root.Log(r.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	return out, nil
}

func (r *Runner) build(
	ctx context.Context,
	cfg config.IndexerConfig,
	open func() (io.ReadCloser, error),
	emit indexer.EmitFunc,
) (*indexer.Result, error) {
	engine, err := indexer.NewEngine(cfg, r.metrics)
	if err != nil {
		return nil, err
	}
	in, err := open()
	if err != nil {
		return nil, err
	}
	defer in.Close()

	res, err := engine.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := engine.Emit(ctx, res, emit); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) finish(ctx context.Context, j Job, cfg config.IndexerConfig, res *Result, runErr error, elapsed time.Duration) {
	status := indexer.RunStatus(runErr)
	if r.metrics != nil {
		r.metrics.IndexRunsTotal.WithLabelValues(status).Inc()
	}

	log := logger.FromContext(ctx).With("component", "job-runner")
	if runErr != nil {
		log.Error("index job failed",
			"job_id", j.ID,
			"source", j.Source,
			"status", status,
			"error", runErr,
		)
	} else {
		log.Info("index job completed",
			"job_id", j.ID,
			"source", j.Source,
			"workers", cfg.Workers,
			"words", res.Stats.Words,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	run := &store.Run{
		JobID:      j.ID,
		Source:     j.Source,
		Workers:    cfg.Workers,
		DurationMS: elapsed.Milliseconds(),
		Status:     status,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	} else {
		run.Lines = res.Lines
		run.Words = res.Stats.Words
		run.Occurrences = res.Stats.Occurrences
		run.Skipped = res.Skipped
	}

	// Bookkeeping must outlive a cancelled request.
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if r.recorder != nil {
		err := resilience.Retry(bgCtx, "save-run", bookkeepingRetry, func() error {
			return r.recorder.SaveRun(bgCtx, run)
		})
		if err != nil {
			log.Warn("failed to record index run", "job_id", j.ID, "error", err)
		}
	}
	if r.publisher != nil {
		event := events.IndexComplete{
			JobID:       j.ID,
			Source:      j.Source,
			Status:      status,
			Error:       run.Error,
			OutputPath:  j.OutputPath,
			Workers:     run.Workers,
			Lines:       run.Lines,
			Words:       run.Words,
			Occurrences: run.Occurrences,
			Skipped:     run.Skipped,
			DurationMS:  run.DurationMS,
			CompletedAt: time.Now().UTC(),
		}
		err := resilience.Retry(bgCtx, "publish-completion", bookkeepingRetry, func() error {
			return r.publisher.Publish(bgCtx, kafka.Event{Key: j.ID, Value: event})
		})
		if err != nil {
			log.Warn("failed to publish completion event", "job_id", j.ID, "error", err)
		}
	}
}
