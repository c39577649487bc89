// Package orchestrator coordinates crawl runs across catalog sources. A run
// discovers identifiers per source, fans them out to worker pools bounded by
// a global concurrency limit, and records a terminal outcome for every item.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/edwarddgao/historium/internal/catalog"
	"github.com/edwarddgao/historium/internal/clock/system"
	"github.com/edwarddgao/historium/internal/id/uuid"
	"github.com/edwarddgao/historium/internal/ratelimit"
)

// Config holds tunables for a crawl run.
type Config struct {
	MaxConcurrent     int
	MaxItemsPerSource int
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	DequeueWait       time.Duration
	ProgressEvery     int
	ProgressInterval  time.Duration
	EventTopic        string
	ArchivePrefix     string
}

// Deps bundles the collaborators an Orchestrator needs. Archive and
// Publisher are optional; the rest are required.
type Deps struct {
	Sink      catalog.Sink
	Archive   catalog.Archive
	Publisher catalog.Publisher
	Clock     catalog.Clock
	Logger    *zap.Logger
}

// Orchestrator runs crawls. It is safe to observe via Snapshot while a run
// is in progress; Run itself is single-use per instance.
type Orchestrator struct {
	cfg       Config
	sink      catalog.Sink
	archive   catalog.Archive
	publisher catalog.Publisher
	clock     catalog.Clock
	logger    *zap.Logger

	runID   string
	sem     *semaphore.Weighted
	limiter *ratelimit.Limiter
	retry   *retryPolicy
	active  atomic.Int64

	mu    sync.Mutex
	stats map[string]*Stats
}

// New builds an Orchestrator, applying defaults for unset config fields.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 50
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	if cfg.DequeueWait <= 0 {
		cfg.DequeueWait = time.Second
	}
	if cfg.ProgressEvery < 0 {
		cfg.ProgressEvery = 0
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "raw"
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.Clock{}
	}

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		deps.Logger.Warn("generating run id failed", zap.Error(err))
		runID = "run-unknown"
	}

	return &Orchestrator{
		cfg:       cfg,
		sink:      deps.Sink,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		logger:    deps.Logger,
		runID:     runID,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter:   ratelimit.New(),
		retry:     newRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax),
		stats:     make(map[string]*Stats),
	}
}

// RunID identifies this orchestrator's crawl run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run crawls every adapter concurrently and blocks until all sources finish
// or ctx is canceled. Cancellation is a clean outcome: workers stop after
// their current item and Run returns the partial stats with a nil error.
// Discovery failures in one source do not stop the others; their errors are
// joined into the returned error.
func (o *Orchestrator) Run(ctx context.Context, adapters []catalog.Adapter) (map[string]StatsSnapshot, error) {
	log := o.logger.With(zap.String("run_id", o.runID))
	log.Info("starting crawl run",
		zap.Int("sources", len(adapters)),
		zap.Int("max_concurrent", o.cfg.MaxConcurrent))

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested, waiting for in-flight items")
		case <-done:
		}
	}()

	if o.cfg.ProgressInterval > 0 {
		ticker := time.NewTicker(o.cfg.ProgressInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ticker.C:
					o.logProgress(log)
				case <-done:
					return
				}
			}
		}()
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, adapter := range adapters {
		stats := &Stats{}
		o.mu.Lock()
		o.stats[adapter.Name()] = stats
		o.mu.Unlock()

		wg.Add(1)
		go func(a catalog.Adapter, s *Stats) {
			defer wg.Done()
			if err := o.runSource(ctx, a, s); err != nil {
				log.Error("source failed", zap.String("source", a.Name()), zap.Error(err))
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(adapter, stats)
	}
	wg.Wait()
	close(done)

	snapshot := o.Snapshot()
	log.Info("crawl run finished", zap.Int("sources", len(snapshot)))

	if ctx.Err() != nil {
		return snapshot, nil
	}
	return snapshot, errors.Join(errs...)
}

// Snapshot returns the current per-source stats. Safe to call concurrently
// with a running crawl.
func (o *Orchestrator) Snapshot() map[string]StatsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]StatsSnapshot, len(o.stats))
	for name, s := range o.stats {
		out[name] = s.Snapshot()
	}
	return out
}

func (o *Orchestrator) logProgress(log *zap.Logger) {
	for name, snap := range o.Snapshot() {
		log.Info("crawl progress",
			zap.String("source", name),
			zap.Int64("processed", snap.Processed),
			zap.Int64("queued", snap.Queued),
			zap.Float64("percent", snap.Percent()))
	}
}
