package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

const (
	MaxCommentLength    = 200
	CommentCooldown     = 10 * time.Second
	MaxTopLevelComments = 5
)

// ThreadManager owns the nested comment/reply subsystem. Comments are a
// keyed collection with explicit postId/parentId references, so every edit
// touches exactly one document and concurrent writers cannot drop each
// other's changes. The cooldown check is server-side, keyed by principal,
// against the durable lastCommentAt timestamp on the user document.
type ThreadManager struct {
	store store.Store
	now   func() time.Time
}

func NewThreadManager(s store.Store) *ThreadManager {
	return &ThreadManager{store: s, now: time.Now}
}

type CommentInput struct {
	PostID   string
	Text     string
	Image    string
	ParentID string
}

// PostComment validates, rate-limits and persists a comment or reply. The
// commenter's masked display name is resolved through mask and stored with
// the comment, never recomputed at render time. All checks run before the
// write; a failure leaves no partial state.
func (t *ThreadManager) PostComment(ctx context.Context, p *Principal, mask *Anonymizer, in CommentInput) (models.Comment, error) {
	if p == nil {
		return models.Comment{}, ErrForbidden
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return models.Comment{}, fmt.Errorf("%w: comment needs text or an image", ErrValidation)
	}
	if len([]rune(text)) > MaxCommentLength {
		return models.Comment{}, fmt.Errorf("%w: comment text exceeds 200 characters", ErrValidation)
	}

	var post models.Post
	if err := t.store.Get(ctx, store.Posts, in.PostID, &post); err != nil {
		return models.Comment{}, storeErr(err)
	}

	now := t.now()

	var user models.User
	switch err := t.store.Get(ctx, store.Users, p.ID, &user); {
	case err == nil:
		if !user.LastCommentAt.IsZero() && now.Sub(user.LastCommentAt) < CommentCooldown {
			return models.Comment{}, fmt.Errorf("%w: wait 10 seconds between comments", ErrRateLimited)
		}
	case errors.Is(err, store.ErrNotFound):
		// No user document, no prior comment to throttle against.
	default:
		return models.Comment{}, storeErr(err)
	}

	if in.ParentID != "" {
		var parent models.Comment
		if err := t.store.Get(ctx, store.Comments, in.ParentID, &parent); err != nil {
			return models.Comment{}, storeErr(err)
		}
		if parent.PostID != in.PostID {
			return models.Comment{}, fmt.Errorf("%w: parent comment belongs to another post", ErrValidation)
		}
		if parent.ParentID != "" {
			// Replies are exactly one level deep.
			return models.Comment{}, fmt.Errorf("%w: cannot reply to a reply", ErrValidation)
		}
	} else {
		mine, err := t.store.Find(ctx, store.Comments, map[string]string{
			"postId":   in.PostID,
			"senderId": p.ID,
			"parentId": "",
		})
		if err != nil {
			return models.Comment{}, storeErr(err)
		}
		if len(mine) >= MaxTopLevelComments {
			return models.Comment{}, fmt.Errorf("%w: max of 5 comments reached on this post", ErrRateLimited)
		}
	}

	comment := models.Comment{
		ID:          uuid.NewString(),
		PostID:      in.PostID,
		ParentID:    in.ParentID,
		Text:        text,
		Image:       in.Image,
		SenderID:    p.ID,
		DisplayName: mask.DisplayName(p),
		Timestamp:   now,
	}
	if err := t.store.Append(ctx, store.Comments, comment.ID, comment); err != nil {
		return models.Comment{}, storeErr(err)
	}

	if err := t.store.UpdateFields(ctx, store.Users, p.ID, map[string]any{
		"lastCommentAt": now,
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("feed: recording lastCommentAt for %s: %v", p.ID, err)
	}

	return comment, nil
}

// DeleteComment removes a comment if the requester is its sender or a
// moderator. Deleting a top-level comment takes its whole reply subtree
// with it; deleting a reply removes only that reply.
func (t *ThreadManager) DeleteComment(ctx context.Context, p *Principal, commentID string) error {
	if p == nil {
		return ErrForbidden
	}

	var comment models.Comment
	if err := t.store.Get(ctx, store.Comments, commentID, &comment); err != nil {
		return storeErr(err)
	}
	if comment.SenderID != p.ID && !p.Moderator() {
		return ErrForbidden
	}

	if comment.ParentID == "" {
		replies, err := t.store.Find(ctx, store.Comments, map[string]string{"parentId": commentID})
		if err != nil {
			return storeErr(err)
		}
		for _, r := range replies {
			if err := t.store.Delete(ctx, store.Comments, r.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return storeErr(err)
			}
		}
	}

	if err := t.store.Delete(ctx, store.Comments, commentID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}
	return nil
}

// DeleteThread removes every comment of a post. Used when the post itself
// is deleted.
func (t *ThreadManager) DeleteThread(ctx context.Context, postID string) error {
	docs, err := t.store.Find(ctx, store.Comments, map[string]string{"postId": postID})
	if err != nil {
		return storeErr(err)
	}
	for _, d := range docs {
		if err := t.store.Delete(ctx, store.Comments, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeErr(err)
		}
	}
	return nil
}

// Thread assembles the display ordering: top-level comments newest-first,
// replies within each parent oldest-first.
func (t *ThreadManager) Thread(ctx context.Context, postID string) ([]models.ThreadComment, error) {
	docs, err := t.store.Find(ctx, store.Comments, map[string]string{"postId": postID})
	if err != nil {
		return nil, storeErr(err)
	}

	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		var c models.Comment
		if err := d.Unmarshal(&c); err != nil {
			return nil, storeErr(err)
		}
		comments = append(comments, c)
	}

	replies := lo.GroupBy(
		lo.Filter(comments, func(c models.Comment, _ int) bool { return c.ParentID != "" }),
		func(c models.Comment) string { return c.ParentID },
	)
	top := lo.Filter(comments, func(c models.Comment, _ int) bool { return c.ParentID == "" })

	sort.Slice(top, func(i, j int) bool {
		if !top[i].Timestamp.Equal(top[j].Timestamp) {
			return top[i].Timestamp.After(top[j].Timestamp)
		}
		return top[i].ID > top[j].ID
	})

	thread := make([]models.ThreadComment, 0, len(top))
	for _, c := range top {
		reps := replies[c.ID]
		sort.Slice(reps, func(i, j int) bool {
			if !reps[i].Timestamp.Equal(reps[j].Timestamp) {
				return reps[i].Timestamp.Before(reps[j].Timestamp)
			}
			return reps[i].ID < reps[j].ID
		})
		thread = append(thread, models.ThreadComment{Comment: c, Replies: reps})
	}
	return thread, nil
}

// CommentCount returns the total number of comments and replies on a post.
func (t *ThreadManager) CommentCount(ctx context.Context, postID string) (int, error) {
	docs, err := t.store.Find(ctx, store.Comments, map[string]string{"postId": postID})
	if err != nil {
		return 0, storeErr(err)
	}
	return len(docs), nil
}
