package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edwarddgao/historium/internal/catalog"
	"github.com/edwarddgao/historium/internal/metrics"
	"github.com/edwarddgao/historium/internal/queue/memory"
)

// runSource drives a single source end to end: discovery, enqueue, and a
// worker pool that drains the queue. The worker count is sized from the
// global limit divided by the number of sources active at start time.
func (o *Orchestrator) runSource(ctx context.Context, adapter catalog.Adapter, stats *Stats) error {
	source := adapter.Name()
	log := o.logger.With(zap.String("source", source))
	start := time.Now()

	active := o.active.Add(1)
	defer o.active.Add(-1)

	workers := o.cfg.MaxConcurrent / int(active)
	if workers < 1 {
		workers = 1
	}

	if err := adapter.Open(ctx); err != nil {
		return &catalog.DiscoveryError{Source: source, Err: fmt.Errorf("open: %w", err)}
	}
	defer adapter.Close()

	o.limiter.Configure(source, adapter.CallsPerSecond(), time.Second)

	ids, err := adapter.ListIdentifiers(ctx)
	if err != nil {
		return &catalog.DiscoveryError{Source: source, Err: err}
	}
	stats.Discovered.Store(int64(len(ids)))
	metrics.AddDiscovered(source, len(ids))

	if o.cfg.MaxItemsPerSource > 0 && len(ids) > o.cfg.MaxItemsPerSource {
		ids = ids[:o.cfg.MaxItemsPerSource]
	}
	stats.Queued.Store(int64(len(ids)))

	log.Info("starting source crawl",
		zap.Int64("discovered", stats.Discovered.Load()),
		zap.Int("queued", len(ids)),
		zap.Int("workers", workers))

	q := memory.NewQueue(len(ids) + workers)
	for _, id := range ids {
		if err := q.Enqueue(ctx, memory.Item{ID: id}); err != nil {
			break
		}
	}
	for i := 0; i < workers; i++ {
		if err := q.Enqueue(ctx, memory.SentinelItem()); err != nil {
			break
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			o.worker(ctx, adapter, q, stats, workerID)
		}(i)
	}
	wg.Wait()
	q.Close()

	snap := stats.Snapshot()
	log.Info("source crawl finished",
		zap.Int64("processed", snap.Processed),
		zap.Int64("queued", snap.Queued),
		zap.Int64("succeeded", snap.Succeeded),
		zap.Int64("failed", snap.Failed),
		zap.Int64("skipped", snap.Skipped),
		zap.Float64("percent", snap.Percent()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
