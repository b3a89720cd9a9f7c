package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

func TestToggleLike(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	post := models.Post{ID: "p1", Likers: []string{}, Dislikers: []string{}}
	require.NoError(t, m.Append(ctx, store.Posts, post.ID, post))

	v := NewVotingLedger(m)
	u := &Principal{ID: "u1", Role: models.RoleStudent}

	liked, err := v.ToggleLike(ctx, u, "p1")
	require.NoError(t, err)
	require.True(t, liked)

	var got models.Post
	require.NoError(t, m.Get(ctx, store.Posts, "p1", &got))
	require.Equal(t, []string{"u1"}, got.Likers)

	// Second toggle undoes the first; the document is back where it started.
	liked, err = v.ToggleLike(ctx, u, "p1")
	require.NoError(t, err)
	require.False(t, liked)
	require.NoError(t, m.Get(ctx, store.Posts, "p1", &got))
	require.Empty(t, got.Likers)
}

func TestToggleLikeAndDislikeIndependent(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Posts, "p1", models.Post{ID: "p1", Likers: []string{}, Dislikers: []string{}}))

	v := NewVotingLedger(m)
	u := &Principal{ID: "u1", Role: models.RoleStudent}

	_, err := v.ToggleLike(ctx, u, "p1")
	require.NoError(t, err)
	_, err = v.ToggleDislike(ctx, u, "p1")
	require.NoError(t, err)

	var got models.Post
	require.NoError(t, m.Get(ctx, store.Posts, "p1", &got))
	require.Equal(t, []string{"u1"}, got.Likers)
	require.Equal(t, []string{"u1"}, got.Dislikers)
}

func TestToggleRequiresPrincipal(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()

	v := NewVotingLedger(m)
	_, err := v.ToggleLike(context.Background(), nil, "p1")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestToggleMissingPost(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()

	v := NewVotingLedger(m)
	_, err := v.ToggleLike(context.Background(), &Principal{ID: "u1"}, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentVoters(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, store.Posts, "p1", models.Post{ID: "p1", Likers: []string{}, Dislikers: []string{}}))

	v := NewVotingLedger(m)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &Principal{ID: fmt.Sprintf("u%02d", i), Role: models.RoleStudent}
			liked, err := v.ToggleLike(ctx, u, "p1")
			require.NoError(t, err)
			require.True(t, liked)
		}(i)
	}
	wg.Wait()

	var got models.Post
	require.NoError(t, m.Get(ctx, store.Posts, "p1", &got))
	require.Len(t, got.Likers, n)
}
