package classifier

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// ClassifyBatch evaluates a collection of signals in parallel. Records are
// independent, with no coordination or ordering between them, so the
// worker count only affects throughput, never results. The whole batch is
// pinned to one reference snapshot: a concurrent artifact reload applies to
// subsequent batches, not this one.
//
// Output order matches input order, one result per input record.
func (e *Engine) ClassifyBatch(ctx context.Context, signals []*domain.ProcedureSignal) []*domain.ClassificationResult {
	return e.ClassifyBatchWorkers(ctx, signals, runtime.NumCPU())
}

// ClassifyBatchWorkers is ClassifyBatch with explicit parallelism.
func (e *Engine) ClassifyBatchWorkers(ctx context.Context, signals []*domain.ProcedureSignal, workers int) []*domain.ClassificationResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(signals) {
		workers = len(signals)
	}

	snap := e.refs.Current()
	results := make([]*domain.ClassificationResult, len(signals))

	if len(signals) == 0 {
		return results
	}

	indices := make(chan int, len(signals))
	for i := range signals {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = e.classifyWith(snap, signals[i])
			}
		}()
	}
	wg.Wait()

	e.log.WithFields(logrus.Fields{
		"records":          len(signals),
		"workers":          workers,
		"artifact_version": snap.Version(),
	}).Info("Batch classification completed")

	return results
}
