package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/report"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/tracing"
)

// Engine builds letter-partitioned indexes. It holds only immutable
// configuration, so one Engine may serve concurrent builds; each Build owns
// its own Index.
type Engine struct {
	cfg        config.IndexerConfig
	assignment partition.Assignment
	tokenOpts  tokenizer.Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Result describes one build.
type Result struct {
	Index        *index.Index
	Lines        int
	Inserted     int
	Skipped      int
	Stats        index.Stats
	ReadDuration time.Duration
	SortDuration time.Duration
	EmitDuration time.Duration
	Bytes        int64
}

// EmitFunc writes the report of a sorted index somewhere and returns the
// number of bytes written.
type EmitFunc func(idx *index.Index) (int64, error)

// NewEngine validates cfg and computes the partition assignment once, before
// any document is read. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := partition.New(cfg.Workers)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		assignment: a,
		tokenOpts:  tokenizer.Options{StripPunctuation: cfg.StripPunctuation},
		metrics:    m,
		logger:     slog.Default().With("component", "indexer"),
	}
	e.logger.Debug("partition assignment ready",
		"workers", a.Workers(),
		"assignment", a.String(),
	)
	return e, nil
}

// Build reads r line by line, inserts every word into a fresh index and
// sorts all partitions in parallel. Reading and insertion are sequential so
// line numbers stay globally ordered.
func (e *Engine) Build(ctx context.Context, r io.Reader) (*Result, error) {
	idx := index.New(e.assignment)
	res := &Result{Index: idx}

	readCtx, readSpan := tracing.StartChildSpan(ctx, "read")
	lines, err := tokenizer.ReadLines(readCtx, r, e.tokenOpts, func(lineNr int, words []string) error {
		for _, w := range words {
			if err := idx.Insert(w, lineNr); err != nil {
				if errors.Is(err, apperrors.ErrUnindexableWord) && e.cfg.Unindexable == config.UnindexableSkip {
					res.Skipped++
					e.logger.Debug("skipping unindexable word", "line", lineNr, "word", w)
					continue
				}
				return err
			}
			res.Inserted++
		}
		return nil
	})
	res.Lines = lines
	readSpan.SetAttr("lines", lines)
	readSpan.SetAttr("skipped", res.Skipped)
	res.ReadDuration = readSpan.End()
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	sortCtx, sortSpan := tracing.StartChildSpan(ctx, "sort")
	sortSpan.SetAttr("workers", idx.Workers())
	err = idx.Sort(sortCtx)
	res.SortDuration = sortSpan.End()
	if err != nil {
		return nil, fmt.Errorf("sorting partitions: %w", err)
	}

	res.Stats = idx.Stats()
	e.observeBuild(res)
	e.logger.Info("index built",
		"lines", res.Lines,
		"words", res.Stats.Words,
		"occurrences", res.Stats.Occurrences,
		"skipped", res.Skipped,
		"read_ms", res.ReadDuration.Milliseconds(),
		"sort_ms", res.SortDuration.Milliseconds(),
	)
	return res, nil
}

// Emit hands the sorted index of res to emit and records the emit stage.
func (e *Engine) Emit(ctx context.Context, res *Result, emit EmitFunc) error {
	_, span := tracing.StartChildSpan(ctx, "emit")
	n, err := emit(res.Index)
	res.Bytes = n
	span.SetAttr("bytes", n)
	res.EmitDuration = span.End()
	if err != nil {
		return fmt.Errorf("emitting report: %w", err)
	}
	if e.metrics != nil {
		e.metrics.StageDuration.WithLabelValues("emit").Observe(res.EmitDuration.Seconds())
	}
	return nil
}

// Run builds the index for r and writes the report to w.
func (e *Engine) Run(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	res, err := e.Build(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := e.Emit(ctx, res, func(idx *index.Index) (int64, error) {
		return report.Write(w, idx)
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) observeBuild(res *Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.StageDuration.WithLabelValues("read").Observe(res.ReadDuration.Seconds())
	e.metrics.StageDuration.WithLabelValues("sort").Observe(res.SortDuration.Seconds())
	e.metrics.LinesReadTotal.Add(float64(res.Lines))
	e.metrics.WordsIndexedTotal.Add(float64(res.Inserted))
	e.metrics.UnindexableTotal.Add(float64(res.Skipped))
	for _, p := range res.Stats.Partitions {
		e.metrics.PartitionWords.WithLabelValues(strconv.Itoa(p.Partition)).Set(float64(p.Words))
	}
}

// RunStatus classifies the outcome of a run for metrics and the run ledger.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidConfig):
		return "config_error"
	case errors.Is(err, apperrors.ErrInputUnreadable):
		return "input_error"
	case errors.Is(err, apperrors.ErrOutputUnwritable):
		return "output_error"
	case errors.Is(err, apperrors.ErrUnindexableWord), errors.Is(err, apperrors.ErrInvalidInput):
		return "data_error"
	default:
		return "failed"
	}
}
