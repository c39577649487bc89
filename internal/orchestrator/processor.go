package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edwarddgao/historium/internal/catalog"
	"github.com/edwarddgao/historium/internal/metrics"
)

// ingestEvent is the payload published after a record lands in the sink.
type ingestEvent struct {
	Source     string    `json:"source"`
	OriginalID string    `json:"original_id"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// processItem runs the full pipeline for one identifier: fetch, transform,
// persist. Each attempt holds a global concurrency slot for its duration;
// the slot is released before any backoff sleep so a waiting item elsewhere
// can make progress.
func (o *Orchestrator) processItem(ctx context.Context, adapter catalog.Adapter, id string) (catalog.Outcome, error) {
	source := adapter.Name()
	start := time.Now()

	var lastErr error
	for attempt := 0; ; attempt++ {
		outcome, err := o.attemptItem(ctx, adapter, id)
		if err == nil {
			metrics.ObserveItemDuration(source, time.Since(start))
			return outcome, nil
		}
		lastErr = err

		if !o.retry.shouldRetry(err, attempt) {
			break
		}
		metrics.IncRetry(source)
		delay := o.retry.backoff(attempt)
		o.logger.Warn("retrying item",
			zap.String("source", source),
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return catalog.OutcomeFailure, ctx.Err()
		}
	}
	metrics.ObserveItemDuration(source, time.Since(start))
	return catalog.OutcomeFailure, fmt.Errorf("process %s/%s: %w", source, id, lastErr)
}

// attemptItem performs a single attempt under the global semaphore.
func (o *Orchestrator) attemptItem(ctx context.Context, adapter catalog.Adapter, id string) (catalog.Outcome, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return catalog.OutcomeFailure, fmt.Errorf("acquire slot: %w", err)
	}
	metrics.SlotAcquired()
	defer func() {
		o.sem.Release(1)
		metrics.SlotReleased()
	}()

	source := adapter.Name()
	if err := o.limiter.Acquire(ctx, source); err != nil {
		return catalog.OutcomeFailure, err
	}

	raw, err := adapter.FetchRaw(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.OutcomeSkipped, nil
		}
		return catalog.OutcomeFailure, fmt.Errorf("fetch %s: %w", id, err)
	}

	o.archiveRaw(ctx, source, id, raw)

	record, err := adapter.Transform(raw)
	if err != nil {
		return catalog.OutcomeFailure, fmt.Errorf("transform %s: %w", id, err)
	}
	if record == nil {
		return catalog.OutcomeSkipped, nil
	}

	now := o.clock.Now()
	record.LastUpdated = now
	if record.Metadata.FetchedAt.IsZero() {
		record.Metadata.FetchedAt = now
	}
	if err := o.sink.Upsert(ctx, record); err != nil {
		return catalog.OutcomeFailure, err
	}

	o.publishIngest(ctx, source, id)
	return catalog.OutcomeSuccess, nil
}

// archiveRaw writes the raw payload to the archive when one is configured.
// Archive failures never fail the item.
func (o *Orchestrator) archiveRaw(ctx context.Context, source, id string, raw []byte) {
	if o.archive == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/%s.json", o.cfg.ArchivePrefix, source, id)
	if _, err := o.archive.Put(ctx, path, "application/json", raw); err != nil {
		o.logger.Warn("archiving raw payload failed",
			zap.String("source", source),
			zap.String("id", id),
			zap.Error(err))
	}
}

// publishIngest emits an ingest event when a publisher is configured.
// Publish failures never fail the item.
func (o *Orchestrator) publishIngest(ctx context.Context, source, id string) {
	if o.publisher == nil {
		return
	}
	event := ingestEvent{
		Source:     source,
		OriginalID: id,
		RunID:      o.runID,
		Timestamp:  o.clock.Now(),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventTopic, event); err != nil {
		o.logger.Warn("publishing ingest event failed",
			zap.String("source", source),
			zap.String("id", id),
			zap.Error(err))
	}
}
