package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edwarddgao/historium/internal/adapter/louvre"
	"github.com/edwarddgao/historium/internal/adapter/met"
	"github.com/edwarddgao/historium/internal/api"
	archivegcs "github.com/edwarddgao/historium/internal/archive/gcs"
	archivemem "github.com/edwarddgao/historium/internal/archive/memory"
	"github.com/edwarddgao/historium/internal/catalog"
	"github.com/edwarddgao/historium/internal/config"
	"github.com/edwarddgao/historium/internal/metrics"
	"github.com/edwarddgao/historium/internal/orchestrator"
	pubsubpub "github.com/edwarddgao/historium/internal/publisher/pubsub"
	sinkmem "github.com/edwarddgao/historium/internal/sink/memory"
	"github.com/edwarddgao/historium/internal/sink/postgres"
)

func newCrawlCmd() *cobra.Command {
	var (
		sources       []string
		dsn           string
		maxConcurrent int
		maxItems      int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured museum collections",
		Long: `Discovers every artwork identifier for each selected source, then
fetches, normalizes, and stores the records. SIGINT or SIGTERM stops the
crawl cleanly: workers finish their current artwork and exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if dsn != "" {
				cfg.DB.DSN = dsn
			}
			if maxConcurrent > 0 {
				cfg.Crawl.MaxConcurrent = maxConcurrent
			}
			if maxItems > 0 {
				cfg.Crawl.MaxItemsPerSource = maxItems
			}
			return runCrawl(cmd.Context(), cfg, logger, sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "sources to crawl (default: all configured)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides db.dsn)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "global concurrency limit (overrides crawl.max_concurrent)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "cap on items per source, 0 means no cap (overrides crawl.max_items_per_source)")
	return cmd
}

func runCrawl(parent context.Context, cfg config.Config, logger *zap.Logger, names []string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	adapters, err := buildAdapters(cfg, names)
	if err != nil {
		return err
	}

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var publisher catalog.Publisher
	if cfg.PubSub.TopicName != "" {
		p, err := pubsubpub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		defer func() { _ = p.Close() }()
		publisher = p
	}

	engine := orchestrator.New(orchestrator.Config{
		MaxConcurrent:     cfg.Crawl.MaxConcurrent,
		MaxItemsPerSource: cfg.Crawl.MaxItemsPerSource,
		MaxRetries:        cfg.Crawl.MaxRetries,
		BackoffBase:       cfg.Crawl.BackoffBase(),
		BackoffMax:        cfg.Crawl.BackoffMax(),
		DequeueWait:       cfg.Crawl.DequeueWait(),
		ProgressEvery:     cfg.Crawl.ProgressEvery,
		ProgressInterval:  cfg.Crawl.ProgressInterval(),
		EventTopic:        cfg.PubSub.TopicName,
		ArchivePrefix:     cfg.Archive.Prefix,
	}, orchestrator.Deps{
		Sink:      sink,
		Archive:   archive,
		Publisher: publisher,
		Logger:    logger,
	})

	if cfg.Server.Port > 0 {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(engine, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	snaps, err := engine.Run(ctx, adapters)
	logSummary(logger, snaps)
	if err != nil {
		return fmt.Errorf("crawl run: %w", err)
	}
	return nil
}

// buildAdapters resolves source names against the configuration. An empty
// selection means every configured source, in name order.
func buildAdapters(cfg config.Config, names []string) ([]catalog.Adapter, error) {
	if len(names) == 0 {
		for name := range cfg.Sources {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	adapters := make([]catalog.Adapter, 0, len(names))
	for _, name := range names {
		src, ok := cfg.Sources[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		switch name {
		case "met":
			adapters = append(adapters, met.New(met.Config{
				BaseURL:        src.BaseURL,
				CallsPerSecond: src.CallsPerSecond,
				Timeout:        src.Timeout(),
			}))
		case "louvre":
			adapters = append(adapters, louvre.New(louvre.Config{
				BaseURL:        src.BaseURL,
				SitemapURL:     src.SitemapURL,
				CallsPerSecond: src.CallsPerSecond,
				Timeout:        src.Timeout(),
			}))
		default:
			return nil, fmt.Errorf("no adapter implemented for source %q", name)
		}
	}
	if len(adapters) == 0 {
		return nil, errors.New("no sources selected")
	}
	return adapters, nil
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (catalog.Sink, error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn is empty, using the in-memory sink")
		return sinkmem.New(), nil
	}
	store, err := postgres.NewStore(ctx, postgres.StoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres sink: %w", err)
	}
	return store, nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (catalog.Archive, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return store, nil
	case "memory":
		return archivemem.New(), nil
	default:
		logger.Debug("raw payload archiving disabled")
		return nil, nil
	}
}

func logSummary(logger *zap.Logger, snaps map[string]orchestrator.StatsSnapshot) {
	for name, snap := range snaps {
		logger.Info("source summary",
			zap.String("source", name),
			zap.Int64("discovered", snap.Discovered),
			zap.Int64("queued", snap.Queued),
			zap.Int64("processed", snap.Processed),
			zap.Int64("succeeded", snap.Succeeded),
			zap.Int64("failed", snap.Failed),
			zap.Int64("skipped", snap.Skipped))
	}
}
