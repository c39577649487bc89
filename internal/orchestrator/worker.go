package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/edwarddgao/historium/internal/catalog"
	"github.com/edwarddgao/historium/internal/metrics"
	"github.com/edwarddgao/historium/internal/queue/memory"
)

// worker drains the source queue until it receives a sentinel or the context
// is canceled. Items interrupted mid-flight by cancellation are abandoned and
// not counted toward any outcome.
func (o *Orchestrator) worker(ctx context.Context, adapter catalog.Adapter, q *memory.Queue, stats *Stats, workerID int) {
	source := adapter.Name()
	log := o.logger.With(zap.String("source", source), zap.Int("worker", workerID))
	metrics.WorkerStarted()
	defer metrics.WorkerStopped()

	for {
		if ctx.Err() != nil {
			log.Debug("worker stopping on cancellation")
			return
		}

		item, err := q.Dequeue(ctx, o.cfg.DequeueWait)
		if err != nil {
			if errors.Is(err, memory.ErrTimeout) {
				continue
			}
			log.Debug("worker stopping", zap.Error(err))
			return
		}
		if item.Sentinel {
			log.Debug("worker received sentinel")
			return
		}

		outcome, perr := o.processItem(ctx, adapter, item.ID)

		if ctx.Err() != nil && perr != nil {
			// Abandoned mid-item during shutdown; leave the counters alone.
			return
		}

		processed := stats.Processed.Add(1)
		switch outcome {
		case catalog.OutcomeSuccess:
			stats.Succeeded.Add(1)
		case catalog.OutcomeSkipped:
			stats.Skipped.Add(1)
			log.Debug("item skipped", zap.String("id", item.ID))
		default:
			stats.Failed.Add(1)
			log.Error("item failed", zap.String("id", item.ID), zap.Error(perr))
		}
		metrics.IncItem(source, outcome.String())

		if o.cfg.ProgressEvery > 0 && processed%int64(o.cfg.ProgressEvery) == 0 {
			snap := stats.Snapshot()
			log.Info("progress",
				zap.Int64("processed", snap.Processed),
				zap.Int64("queued", snap.Queued),
				zap.Float64("percent", snap.Percent()))
		}
	}
}
