package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

type threadFixture struct {
	store   *store.Memory
	threads *ThreadManager
	mask    *Anonymizer
	now     time.Time
}

func newThreadFixture(t *testing.T) *threadFixture {
	t.Helper()
	m := store.NewMemory()
	t.Cleanup(m.Close)

	f := &threadFixture{
		store:   m,
		threads: NewThreadManager(m),
		mask:    NewAnonymizer("1234"),
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.threads.now = func() time.Time { return f.now }

	ctx := context.Background()
	require.NoError(t, m.Append(ctx, store.Posts, "p1", models.Post{ID: "p1", State: models.StateApproved, PublishAt: f.now.Add(-time.Hour)}))
	require.NoError(t, m.Append(ctx, store.Posts, "p2", models.Post{ID: "p2", State: models.StateApproved, PublishAt: f.now.Add(-time.Hour)}))
	require.NoError(t, m.Append(ctx, store.Users, "u1", models.User{ID: "u1", Username: "ana", Role: models.RoleStudent}))
	return f
}

func (f *threadFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func student(id string) *Principal {
	return &Principal{ID: id, DisplayName: id, Role: models.RoleStudent}
}

func TestPostCommentValidation(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	_, err := f.threads.PostComment(ctx, nil, f.mask, CommentInput{PostID: "p1", Text: "hi"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "   "})
	require.ErrorIs(t, err, ErrValidation)

	long := strings.Repeat("x", MaxCommentLength+1)
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: long})
	require.ErrorIs(t, err, ErrValidation)

	// Exactly at the limit is fine.
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: strings.Repeat("x", MaxCommentLength)})
	require.NoError(t, err)

	// An image with no text is a valid comment.
	f.advance(CommentCooldown + time.Second)
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Image: "https://example.com/a.png"})
	require.NoError(t, err)

	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "missing", Text: "hi"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostCommentCooldown(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	_, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "first"})
	require.NoError(t, err)

	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "too soon"})
	require.ErrorIs(t, err, ErrRateLimited)

	// Cooldown applies across posts, not per post.
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p2", Text: "also too soon"})
	require.ErrorIs(t, err, ErrRateLimited)

	f.advance(CommentCooldown)
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "after waiting"})
	require.NoError(t, err)
}

func TestPostCommentTopLevelCap(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	var first models.Comment
	for i := 0; i < MaxTopLevelComments; i++ {
		c, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "comment"})
		require.NoError(t, err)
		if i == 0 {
			first = c
		}
		f.advance(CommentCooldown + time.Second)
	}

	_, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "one too many"})
	require.ErrorIs(t, err, ErrRateLimited)

	// Replies do not count against the top-level cap.
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "reply", ParentID: first.ID})
	require.NoError(t, err)

	// The cap is per post, not global.
	f.advance(CommentCooldown + time.Second)
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p2", Text: "fresh post"})
	require.NoError(t, err)
}

func TestPostCommentReplyRules(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	top, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "top"})
	require.NoError(t, err)

	f.advance(CommentCooldown + time.Second)
	reply, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "reply", ParentID: top.ID})
	require.NoError(t, err)
	require.Equal(t, top.ID, reply.ParentID)

	// One level deep only.
	f.advance(CommentCooldown + time.Second)
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "nested", ParentID: reply.ID})
	require.ErrorIs(t, err, ErrValidation)

	// Parent must live on the same post.
	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p2", Text: "cross", ParentID: top.ID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "orphan", ParentID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostCommentMaskedName(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	c, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "hi"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(c.DisplayName, "Anonymous "))
	require.NotContains(t, c.DisplayName, "u1")

	f.advance(CommentCooldown + time.Second)
	admin := &Principal{ID: "adm", DisplayName: "Real Admin", Role: models.RoleAdmin}
	c, err = f.threads.PostComment(ctx, admin, f.mask, CommentInput{PostID: "p1", Text: "notice"})
	require.NoError(t, err)
	require.Equal(t, "Admin", c.DisplayName)
}

func TestDeleteComment(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	top, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "top"})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	reply, err := f.threads.PostComment(ctx, student("u2"), f.mask, CommentInput{PostID: "p1", Text: "reply", ParentID: top.ID})
	require.NoError(t, err)

	// Not the sender, not a moderator.
	require.ErrorIs(t, f.threads.DeleteComment(ctx, student("u3"), top.ID), ErrForbidden)
	require.ErrorIs(t, f.threads.DeleteComment(ctx, nil, top.ID), ErrForbidden)

	// Deleting the top-level comment takes the reply with it.
	require.NoError(t, f.threads.DeleteComment(ctx, student("u1"), top.ID))
	var gone models.Comment
	require.ErrorIs(t, f.store.Get(ctx, store.Comments, top.ID, &gone), store.ErrNotFound)
	require.ErrorIs(t, f.store.Get(ctx, store.Comments, reply.ID, &gone), store.ErrNotFound)
}

func TestDeleteCommentAsModerator(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	c, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "objectionable"})
	require.NoError(t, err)

	mod := &Principal{ID: "mod", Role: models.RoleSubadmin}
	require.NoError(t, f.threads.DeleteComment(ctx, mod, c.ID))
}

func TestDeleteReplyLeavesParent(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	top, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "top"})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	reply, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "reply", ParentID: top.ID})
	require.NoError(t, err)

	require.NoError(t, f.threads.DeleteComment(ctx, student("u1"), reply.ID))

	var kept models.Comment
	require.NoError(t, f.store.Get(ctx, store.Comments, top.ID, &kept))
}

func TestThreadOrdering(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	older, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "older top"})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	newer, err := f.threads.PostComment(ctx, student("u2"), f.mask, CommentInput{PostID: "p1", Text: "newer top"})
	require.NoError(t, err)

	f.advance(CommentCooldown + time.Second)
	r1, err := f.threads.PostComment(ctx, student("u3"), f.mask, CommentInput{PostID: "p1", Text: "first reply", ParentID: older.ID})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	r2, err := f.threads.PostComment(ctx, student("u4"), f.mask, CommentInput{PostID: "p1", Text: "second reply", ParentID: older.ID})
	require.NoError(t, err)

	thread, err := f.threads.Thread(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, thread, 2)

	// Top-level newest first, replies oldest first.
	require.Equal(t, newer.ID, thread[0].ID)
	require.Equal(t, older.ID, thread[1].ID)
	require.Len(t, thread[1].Replies, 2)
	require.Equal(t, r1.ID, thread[1].Replies[0].ID)
	require.Equal(t, r2.ID, thread[1].Replies[1].ID)

	count, err := f.threads.CommentCount(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestDeleteThread(t *testing.T) {
	f := newThreadFixture(t)
	ctx := context.Background()

	_, err := f.threads.PostComment(ctx, student("u1"), f.mask, CommentInput{PostID: "p1", Text: "a"})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	_, err = f.threads.PostComment(ctx, student("u2"), f.mask, CommentInput{PostID: "p1", Text: "b"})
	require.NoError(t, err)
	f.advance(CommentCooldown + time.Second)
	keep, err := f.threads.PostComment(ctx, student("u3"), f.mask, CommentInput{PostID: "p2", Text: "other post"})
	require.NoError(t, err)

	require.NoError(t, f.threads.DeleteThread(ctx, "p1"))

	count, err := f.threads.CommentCount(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, count)

	var kept models.Comment
	require.NoError(t, f.store.Get(ctx, store.Comments, keep.ID, &kept))
}
