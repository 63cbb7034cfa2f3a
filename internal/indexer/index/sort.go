package index

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// sortList is swapped out in tests to simulate a failing worker.
var sortList = (*wordList).sortWords

// Sort orders every partition by word, one goroutine per partition. The
// partitions are disjoint, so the workers share nothing and take no locks.
// Sort returns after all workers have finished. A worker that panics fails
// the whole sort with ErrTaskFailed and the index stays unsorted.
//
// ctx is checked once before the workers start; running workers are not
// interrupted. Sorting an already sorted index is a no-op.
func (idx *Index) Sort(ctx context.Context) error {
	if idx.sorted {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := slog.Default().With("component", "index-sort")

	var g errgroup.Group
	for i, l := range idx.lists {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = apperrors.Newf(apperrors.ErrTaskFailed, http.StatusInternalServerError,
						"sorting partition %d: %v", i, r)
				}
			}()
			start := time.Now()
			sortList(l)
			idx.sortTimes[i] = time.Since(start)
			logger.Debug("partition sorted",
				"partition", i,
				"words", len(l.entries),
				"duration", idx.sortTimes[i],
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("partition sort failed", "error", err)
		return err
	}
	idx.sorted = true
	return nil
}
