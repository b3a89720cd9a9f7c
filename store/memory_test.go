package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusfeed_backend/store"
)

type doc struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	PublishAt time.Time `json:"publishAt"`
	Members   []string  `json:"members"`
}

func TestMemoryAppendGet(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	want := doc{ID: "a", Title: "hello", PublishAt: time.Now().UTC()}
	require.NoError(t, m.Append(ctx, store.Posts, "a", want))

	var got doc
	require.NoError(t, m.Get(ctx, store.Posts, "a", &got))
	require.Equal(t, "hello", got.Title)

	err := m.Get(ctx, store.Posts, "missing", &got)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryGetPageOrdering(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.Append(ctx, store.Posts, "old", doc{ID: "old", PublishAt: base.Add(-time.Hour)}))
	require.NoError(t, m.Append(ctx, store.Posts, "new", doc{ID: "new", PublishAt: base.Add(time.Hour)}))
	require.NoError(t, m.Append(ctx, store.Posts, "mid-a", doc{ID: "mid-a", PublishAt: base}))
	require.NoError(t, m.Append(ctx, store.Posts, "mid-b", doc{ID: "mid-b", PublishAt: base}))

	docs, err := m.GetPage(ctx, store.Posts, nil, 10)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	require.Equal(t, "new", docs[0].ID)
	// Equal timestamps break ties by id descending.
	require.Equal(t, "mid-b", docs[1].ID)
	require.Equal(t, "mid-a", docs[2].ID)
	require.Equal(t, "old", docs[3].ID)
}

func TestMemoryGetPageCursor(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for i, id := range ids {
		require.NoError(t, m.Append(ctx, store.Posts, id, doc{ID: id, PublishAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	first, err := m.GetPage(ctx, store.Posts, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "p5", first[0].ID)
	require.Equal(t, "p4", first[1].ID)

	cursor := &store.Cursor{PublishAt: base.Add(3 * time.Minute), ID: "p4"}
	second, err := m.GetPage(ctx, store.Posts, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	// Strictly after the cursor: p4 itself must not repeat.
	require.Equal(t, "p3", second[0].ID)
	require.Equal(t, "p2", second[1].ID)

	cursor = &store.Cursor{PublishAt: base.Add(time.Minute), ID: "p2"}
	last, err := m.GetPage(ctx, store.Posts, cursor, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, "p1", last[0].ID)
}

func TestCursorRoundTrip(t *testing.T) {
	c := store.Cursor{PublishAt: time.Date(2026, 3, 14, 9, 26, 53, 123456789, time.UTC), ID: "abc-123"}
	decoded, err := store.DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.True(t, decoded.PublishAt.Equal(c.PublishAt))
	require.Equal(t, c.ID, decoded.ID)

	_, err = store.DecodeCursor("not a cursor !!!")
	require.Error(t, err)
}

func TestMemoryUpdateFields(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Posts, "a", doc{ID: "a", Title: "before", Owner: "u1"}))
	require.NoError(t, m.UpdateFields(ctx, store.Posts, "a", map[string]any{"title": "after"}))

	var got doc
	require.NoError(t, m.Get(ctx, store.Posts, "a", &got))
	require.Equal(t, "after", got.Title)
	require.Equal(t, "u1", got.Owner)

	err := m.UpdateFields(ctx, store.Posts, "missing", map[string]any{"title": "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemorySetOps(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Posts, "a", doc{ID: "a", Members: []string{}}))

	require.NoError(t, m.AddToSet(ctx, store.Posts, "a", "members", "u1"))
	require.NoError(t, m.AddToSet(ctx, store.Posts, "a", "members", "u2"))
	require.NoError(t, m.AddToSet(ctx, store.Posts, "a", "members", "u1"))

	var got doc
	require.NoError(t, m.Get(ctx, store.Posts, "a", &got))
	require.ElementsMatch(t, []string{"u1", "u2"}, got.Members)

	require.NoError(t, m.RemoveFromSet(ctx, store.Posts, "a", "members", "u1"))
	require.NoError(t, m.RemoveFromSet(ctx, store.Posts, "a", "members", "u1"))
	require.NoError(t, m.Get(ctx, store.Posts, "a", &got))
	require.Equal(t, []string{"u2"}, got.Members)
}

func TestMemoryFind(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Comments, "c1", map[string]string{"postId": "p1", "senderId": "u1"}))
	require.NoError(t, m.Append(ctx, store.Comments, "c2", map[string]string{"postId": "p1", "senderId": "u2"}))
	require.NoError(t, m.Append(ctx, store.Comments, "c3", map[string]string{"postId": "p2", "senderId": "u1"}))

	docs, err := m.Find(ctx, store.Comments, map[string]string{"postId": "p1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = m.Find(ctx, store.Comments, map[string]string{"postId": "p1", "senderId": "u1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "c1", docs[0].ID)

	docs, err = m.Find(ctx, store.Comments, map[string]string{"postId": "p9"})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestMemoryDelete(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Posts, "a", doc{ID: "a"}))
	require.NoError(t, m.Delete(ctx, store.Posts, "a"))

	var got doc
	require.ErrorIs(t, m.Get(ctx, store.Posts, "a", &got), store.ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, store.Posts, "a"), store.ErrNotFound)
}

func TestMemorySubscribe(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	events, unsubscribe := m.Subscribe(store.Posts)
	defer unsubscribe()

	require.NoError(t, m.Append(ctx, store.Posts, "a", doc{ID: "a", Title: "t"}))
	require.NoError(t, m.UpdateFields(ctx, store.Posts, "a", map[string]any{"title": "t2"}))
	require.NoError(t, m.Delete(ctx, store.Posts, "a"))

	// Writes to other collections must not leak into this subscription.
	require.NoError(t, m.Append(ctx, store.Comments, "c", doc{ID: "c"}))

	ev := <-events
	require.Equal(t, store.EventCreated, ev.Type)
	require.Equal(t, "a", ev.ID)
	require.NotNil(t, ev.Doc)

	ev = <-events
	require.Equal(t, store.EventUpdated, ev.Type)

	ev = <-events
	require.Equal(t, store.EventDeleted, ev.Type)
	require.Nil(t, ev.Doc)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
