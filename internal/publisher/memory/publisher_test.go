package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishCapturesEvents(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "artwork-ingested", map[string]string{"source": "met"})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)

	events := p.Events()
	require.Len(t, events, 1)
	require.Equal(t, "artwork-ingested", events[0].Topic)
}

func TestForTopicFilters(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "artwork-ingested", nil)
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), "crawl-finished", nil)
	require.NoError(t, err)

	require.Len(t, p.ForTopic("artwork-ingested"), 1)
	require.Len(t, p.ForTopic("crawl-finished"), 1)
	require.Empty(t, p.ForTopic("unknown"))
}

func TestPublishConcurrent(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Publish(context.Background(), "artwork-ingested", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Len(t, p.Events(), 20)
}
