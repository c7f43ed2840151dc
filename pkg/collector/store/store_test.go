package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testBatch(id, root string, events ...types.ChangeEvent) types.EventBatch {
	return types.EventBatch{
		ID:        id,
		Root:      root,
		ScannedAt: time.Now().UTC(),
		Events:    events,
	}
}

func TestStore_InsertAndList(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	batch := testBatch("b1", "/data",
		types.NewCreated("new.txt", "h-new", now),
		types.NewModified("mod.txt", "h-old", "h-mod", now),
		types.NewDeleted("gone.txt", "h-gone", now),
	)
	require.NoError(t, s.InsertBatch(ctx, batch))

	events, err := s.ListEvents(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first means reverse insertion order.
	assert.Equal(t, "gone.txt", events[0].Path)
	assert.Equal(t, "deleted", events[0].EventType)
	assert.Equal(t, "h-gone", events[0].OldHash)
	assert.Empty(t, events[0].NewHash)

	assert.Equal(t, "mod.txt", events[1].Path)
	assert.Equal(t, "h-old", events[1].OldHash)
	assert.Equal(t, "h-mod", events[1].NewHash)

	assert.Equal(t, "new.txt", events[2].Path)
	assert.Empty(t, events[2].OldHash)

	for _, ev := range events {
		assert.Equal(t, "b1", ev.BatchID)
		assert.Equal(t, "/data", ev.Root)
		assert.True(t, ev.Timestamp.Equal(now), "timestamp = %v, want %v", ev.Timestamp, now)
	}
}

func TestStore_ListFilters(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.InsertBatch(ctx, testBatch("b1", "/alpha",
		types.NewCreated("a1", "h", now),
		types.NewDeleted("a2", "h", now),
	)))
	require.NoError(t, s.InsertBatch(ctx, testBatch("b2", "/beta",
		types.NewCreated("b1", "h", now),
	)))

	byRoot, err := s.ListEvents(ctx, Filter{Root: "/alpha"})
	require.NoError(t, err)
	assert.Len(t, byRoot, 2)

	byType, err := s.ListEvents(ctx, Filter{Type: "created"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	both, err := s.ListEvents(ctx, Filter{Root: "/alpha", Type: "created"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "a1", both[0].Path)

	limited, err := s.ListEvents(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.ListEvents(ctx, Filter{Root: "/missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ListRejectsMalformedTimestamp(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	// A row with a timestamp the schema's writer would never produce must
	// surface as an error, not come back silently zeroed.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (batch_id, root, timestamp, event_type, path)
		VALUES ('b1', '/data', 'not-a-time', 'created', 'a.txt')`)
	require.NoError(t, err)

	_, err = s.ListEvents(ctx, Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse timestamp")
}

func TestStore_CountEvents(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.InsertBatch(ctx, testBatch("b1", "/alpha",
		types.NewCreated("a", "h", now),
		types.NewCreated("b", "h", now),
	)))

	total, err := s.CountEvents(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	scoped, err := s.CountEvents(ctx, "/alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 2, scoped)

	missing, err := s.CountEvents(ctx, "/other")
	require.NoError(t, err)
	assert.Zero(t, missing)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertBatch(ctx, testBatch("b1", "/data",
		types.NewCreated("a", "h", time.Now().UTC()),
	)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.ListEvents(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
