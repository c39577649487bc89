package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edwarddgao/historium/internal/catalog"
)

func TestUpsertIdempotentOnKey(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first := catalog.Record{
		Source:      catalog.SourceRef{ID: "louvre", OriginalID: "cl010062370"},
		Title:       catalog.TitleInfo{Primary: "La Joconde"},
		LastUpdated: time.Unix(1000, 0).UTC(),
	}
	require.NoError(t, s.Upsert(ctx, &first))

	second := first
	second.LastUpdated = time.Unix(2000, 0).UTC()
	require.NoError(t, s.Upsert(ctx, &second))

	// One logical record, timestamp refreshed, two physical upserts.
	require.Equal(t, 1, s.Len())
	require.Equal(t, 2, s.Upserts())
	got, ok := s.Get("louvre", "cl010062370")
	require.True(t, ok)
	require.Equal(t, second.LastUpdated, got.LastUpdated)
	require.Equal(t, "La Joconde", got.Title.Primary)
}

func TestUpsertRejectsMissingKey(t *testing.T) {
	t.Parallel()

	s := New()
	require.Error(t, s.Upsert(context.Background(), &catalog.Record{}))
	require.Error(t, s.Upsert(context.Background(), nil))
	require.Equal(t, 0, s.Len())
}
