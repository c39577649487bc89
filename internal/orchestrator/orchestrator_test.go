package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	archivemem "github.com/edwarddgao/historium/internal/archive/memory"
	"github.com/edwarddgao/historium/internal/catalog"
	pubmem "github.com/edwarddgao/historium/internal/publisher/memory"
	sinkmem "github.com/edwarddgao/historium/internal/sink/memory"
)

// fakeAdapter is a scriptable catalog.Adapter for driving the engine in
// tests. fetch and transform default to a well-formed record per id.
type fakeAdapter struct {
	name      string
	cps       float64
	ids       []string
	listErr   error
	openErr   error
	fetch     func(ctx context.Context, id string) ([]byte, error)
	transform func(raw []byte) (*catalog.Record, error)

	opens   atomic.Int64
	closes  atomic.Int64
	fetches atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) CallsPerSecond() float64 { return f.cps }

func (f *fakeAdapter) Open(context.Context) error {
	f.opens.Add(1)
	return f.openErr
}

func (f *fakeAdapter) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeAdapter) ListIdentifiers(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeAdapter) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	f.fetches.Add(1)
	if f.fetch != nil {
		return f.fetch(ctx, id)
	}
	return []byte(fmt.Sprintf(`{"objectID":%q}`, id)), nil
}

func (f *fakeAdapter) Transform(raw []byte) (*catalog.Record, error) {
	if f.transform != nil {
		return f.transform(raw)
	}
	var payload struct {
		ObjectID string `json:"objectID"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &catalog.Record{
		Source: catalog.SourceRef{ID: "fake", Name: "Fake Museum", OriginalID: payload.ObjectID},
		Title:  catalog.TitleInfo{Primary: "Object " + payload.ObjectID},
	}, nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

func newTestOrchestrator(cfg Config, sink catalog.Sink) *Orchestrator {
	return New(cfg, Deps{Sink: sink})
}

func TestRunProcessesEveryQueuedItem(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{name: "fake", ids: ids(20)}

	o := newTestOrchestrator(Config{MaxConcurrent: 4, DequeueWait: 20 * time.Millisecond}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	snap := snaps["fake"]
	require.Equal(t, int64(20), snap.Discovered)
	require.Equal(t, int64(20), snap.Queued)
	require.Equal(t, int64(20), snap.Processed)
	require.Equal(t, int64(20), snap.Succeeded)
	require.Zero(t, snap.Failed)
	require.Zero(t, snap.Skipped)
	require.Equal(t, 20, sink.Len())
	require.Equal(t, int64(1), adapter.opens.Load())
	require.Equal(t, int64(1), adapter.closes.Load())
}

func TestRunCountsSkipsSeparately(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{
		name: "fake",
		ids:  ids(5),
		fetch: func(_ context.Context, id string) ([]byte, error) {
			if id == "3" {
				return nil, catalog.ErrNotFound
			}
			return []byte(fmt.Sprintf(`{"objectID":%q}`, id)), nil
		},
	}

	o := newTestOrchestrator(Config{MaxConcurrent: 2, DequeueWait: 20 * time.Millisecond}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	snap := snaps["fake"]
	require.Equal(t, int64(5), snap.Processed)
	require.Equal(t, int64(4), snap.Succeeded)
	require.Equal(t, int64(1), snap.Skipped)
	require.Zero(t, snap.Failed)
	require.Equal(t, 4, sink.Len())
	_, ok := sink.Get("fake", "3")
	require.False(t, ok, "skipped item must not be persisted")
}

func TestRunSkipsOnNilTransformResult(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{
		name: "fake",
		ids:  []string{"1", "2"},
		transform: func(raw []byte) (*catalog.Record, error) {
			return nil, nil
		},
	}

	o := newTestOrchestrator(Config{MaxConcurrent: 2, DequeueWait: 20 * time.Millisecond}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	snap := snaps["fake"]
	require.Equal(t, int64(2), snap.Skipped)
	require.Zero(t, snap.Succeeded)
	require.Zero(t, sink.Len())
}

func TestRunRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	var attempts atomic.Int64
	adapter := &fakeAdapter{
		name: "fake",
		ids:  []string{"1"},
		fetch: func(_ context.Context, id string) ([]byte, error) {
			if attempts.Add(1) <= 2 {
				return nil, catalog.Transient("fetch item", errors.New("http 503"))
			}
			return []byte(`{"objectID":"1"}`), nil
		},
	}

	o := newTestOrchestrator(Config{
		MaxConcurrent: 2,
		MaxRetries:    3,
		BackoffBase:   5 * time.Millisecond,
		BackoffMax:    50 * time.Millisecond,
		DequeueWait:   20 * time.Millisecond,
	}, sink)

	start := time.Now()
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	require.Equal(t, int64(3), attempts.Load())
	require.Equal(t, int64(1), snaps["fake"].Succeeded)
	require.Zero(t, snaps["fake"].Failed)
	// Two backoff sleeps: 5ms then 10ms.
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestRunFailsItemAfterRetriesExhausted(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{
		name: "fake",
		ids:  []string{"1", "2"},
		fetch: func(_ context.Context, id string) ([]byte, error) {
			if id == "1" {
				return nil, catalog.Transient("fetch item", errors.New("http 500"))
			}
			return []byte(`{"objectID":"2"}`), nil
		},
	}

	o := newTestOrchestrator(Config{
		MaxConcurrent: 2,
		MaxRetries:    2,
		BackoffBase:   time.Millisecond,
		DequeueWait:   20 * time.Millisecond,
	}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err, "item failures are recorded in stats, not returned")

	snap := snaps["fake"]
	require.Equal(t, int64(2), snap.Processed)
	require.Equal(t, int64(1), snap.Succeeded)
	require.Equal(t, int64(1), snap.Failed)
	require.Equal(t, int64(2+1), adapter.fetches.Load(), "failed item tried twice, succeeding item once")
}

func TestRunPermanentFailureSkipsRetry(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{
		name: "fake",
		ids:  []string{"1"},
		fetch: func(_ context.Context, id string) ([]byte, error) {
			return nil, errors.New("status 403 from upstream")
		},
	}

	o := newTestOrchestrator(Config{
		MaxConcurrent: 1,
		MaxRetries:    5,
		BackoffBase:   time.Millisecond,
		DequeueWait:   20 * time.Millisecond,
	}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	require.Equal(t, int64(1), snaps["fake"].Failed)
	require.Equal(t, int64(1), adapter.fetches.Load(), "permanent errors must not be retried")
}

func TestRunNeverExceedsGlobalConcurrency(t *testing.T) {
	t.Parallel()

	const limit = 4

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	track := func(_ context.Context, id string) ([]byte, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return []byte(fmt.Sprintf(`{"objectID":%q}`, id)), nil
	}

	adapters := []catalog.Adapter{
		&fakeAdapter{name: "alpha", ids: ids(15), fetch: track},
		&fakeAdapter{name: "beta", ids: ids(15), fetch: track},
	}

	sink := sinkmem.New()
	o := newTestOrchestrator(Config{MaxConcurrent: limit, DequeueWait: 20 * time.Millisecond}, sink)
	snaps, err := o.Run(context.Background(), adapters)
	require.NoError(t, err)

	require.Equal(t, int64(15), snaps["alpha"].Processed)
	require.Equal(t, int64(15), snaps["beta"].Processed)
	require.LessOrEqual(t, peak, limit, "in-flight fetches exceeded the global limit")
	require.Positive(t, peak)
}

func TestRunRespectsSourceRateLimit(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{name: "fake", cps: 50, ids: ids(6)}

	o := newTestOrchestrator(Config{MaxConcurrent: 6, DequeueWait: 20 * time.Millisecond}, sink)
	start := time.Now()
	_, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	// 6 fetches at 50/s spaced 20ms apart take at least ~100ms after the
	// first immediate call.
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunTruncatesToMaxItemsPerSource(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{name: "fake", ids: ids(50)}

	o := newTestOrchestrator(Config{
		MaxConcurrent:     4,
		MaxItemsPerSource: 10,
		DequeueWait:       20 * time.Millisecond,
	}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	snap := snaps["fake"]
	require.Equal(t, int64(50), snap.Discovered)
	require.Equal(t, int64(10), snap.Queued)
	require.Equal(t, int64(10), snap.Processed)
	require.Equal(t, 10, sink.Len())
}

func TestRunDiscoveryFailureIsIsolated(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	broken := &fakeAdapter{name: "broken", listErr: errors.New("sitemap unreachable")}
	healthy := &fakeAdapter{name: "healthy", ids: ids(5)}

	o := newTestOrchestrator(Config{MaxConcurrent: 4, DequeueWait: 20 * time.Millisecond}, sink)
	snaps, err := o.Run(context.Background(), []catalog.Adapter{broken, healthy})

	var derr *catalog.DiscoveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "broken", derr.Source)
	require.Equal(t, int64(5), snaps["healthy"].Succeeded, "sibling source must finish")
	require.Zero(t, snaps["broken"].Processed)
}

func TestRunStopsCleanlyOnCancellation(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	ctx, cancel := context.WithCancel(context.Background())

	var fetched atomic.Int64
	adapter := &fakeAdapter{
		name: "fake",
		ids:  ids(200),
		fetch: func(_ context.Context, id string) ([]byte, error) {
			if fetched.Add(1) == 5 {
				cancel()
			}
			time.Sleep(2 * time.Millisecond)
			return []byte(fmt.Sprintf(`{"objectID":%q}`, id)), nil
		},
	}

	o := newTestOrchestrator(Config{MaxConcurrent: 2, DequeueWait: 20 * time.Millisecond}, sink)

	finished := make(chan struct{})
	var snaps map[string]StatsSnapshot
	var err error
	go func() {
		snaps, err = o.Run(ctx, []catalog.Adapter{adapter})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop within the shutdown bound")
	}

	require.NoError(t, err, "cancellation is a clean shutdown, not a failure")
	snap := snaps["fake"]
	require.Less(t, snap.Processed, int64(200))
	require.Equal(t, snap.Processed, snap.Succeeded+snap.Failed+snap.Skipped)
}

func TestRunArchivesRawAndPublishesEvents(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	archive := archivemem.New()
	publisher := pubmem.New()
	adapter := &fakeAdapter{name: "fake", ids: ids(3)}

	o := New(Config{
		MaxConcurrent: 2,
		DequeueWait:   20 * time.Millisecond,
		EventTopic:    "artwork-ingested",
		ArchivePrefix: "raw",
	}, Deps{Sink: sink, Archive: archive, Publisher: publisher})

	_, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	require.Equal(t, 3, archive.Len())
	raw, ok := archive.Get("raw/fake/2.json")
	require.True(t, ok)
	require.JSONEq(t, `{"objectID":"2"}`, string(raw))

	events := publisher.ForTopic("artwork-ingested")
	require.Len(t, events, 3)
	event, ok := events[0].Payload.(ingestEvent)
	require.True(t, ok)
	require.Equal(t, "fake", event.Source)
	require.Equal(t, o.RunID(), event.RunID)
}

func TestSnapshotDuringRun(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	release := make(chan struct{})
	adapter := &fakeAdapter{
		name: "fake",
		ids:  ids(4),
		fetch: func(ctx context.Context, id string) ([]byte, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []byte(fmt.Sprintf(`{"objectID":%q}`, id)), nil
		},
	}

	o := newTestOrchestrator(Config{MaxConcurrent: 2, DequeueWait: 20 * time.Millisecond}, sink)

	finished := make(chan struct{})
	go func() {
		_, _ = o.Run(context.Background(), []catalog.Adapter{adapter})
		close(finished)
	}()

	require.Eventually(t, func() bool {
		snap, ok := o.Snapshot()["fake"]
		return ok && snap.Queued == 4
	}, time.Second, 5*time.Millisecond)

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	require.Equal(t, int64(4), o.Snapshot()["fake"].Processed)
}

func TestRunStampsRecordTimestamp(t *testing.T) {
	t.Parallel()

	sink := sinkmem.New()
	adapter := &fakeAdapter{name: "fake", ids: []string{"7"}}

	before := time.Now().UTC()
	o := newTestOrchestrator(Config{MaxConcurrent: 1, DequeueWait: 20 * time.Millisecond}, sink)
	_, err := o.Run(context.Background(), []catalog.Adapter{adapter})
	require.NoError(t, err)

	rec, ok := sink.Get("fake", "7")
	require.True(t, ok)
	require.False(t, rec.LastUpdated.Before(before))
}
