package feed

import (
	"context"

	"github.com/samber/lo"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

// VotingLedger flips set membership in a post's likers/dislikers. Both
// operations are idempotent with respect to repeated identical calls and
// the underlying set writes are commutative, so concurrent voters never
// conflict. Likers and dislikers are independent sets; no mutual exclusion
// is enforced between them.
type VotingLedger struct {
	store store.Store
}

func NewVotingLedger(s store.Store) *VotingLedger {
	return &VotingLedger{store: s}
}

// ToggleLike adds the caller to the likers set if absent, removes them if
// present, and reports the resulting membership.
func (v *VotingLedger) ToggleLike(ctx context.Context, p *Principal, postID string) (bool, error) {
	return v.toggle(ctx, p, postID, "likers")
}

func (v *VotingLedger) ToggleDislike(ctx context.Context, p *Principal, postID string) (bool, error) {
	return v.toggle(ctx, p, postID, "dislikers")
}

func (v *VotingLedger) toggle(ctx context.Context, p *Principal, postID, field string) (bool, error) {
	if p == nil {
		// Must be logged in to vote.
		return false, ErrForbidden
	}

	var post models.Post
	if err := v.store.Get(ctx, store.Posts, postID, &post); err != nil {
		return false, storeErr(err)
	}

	set := post.Likers
	if field == "dislikers" {
		set = post.Dislikers
	}

	if lo.Contains(set, p.ID) {
		if err := v.store.RemoveFromSet(ctx, store.Posts, postID, field, p.ID); err != nil {
			return false, storeErr(err)
		}
		return false, nil
	}
	if err := v.store.AddToSet(ctx, store.Posts, postID, field, p.ID); err != nil {
		return false, storeErr(err)
	}
	return true, nil
}
