package models

import "time"

type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateRejected ModerationState = "rejected"
)

// Post is the persisted document shape. Likers and Dislikers hold user IDs;
// membership in either set is the vote record, there is no separate entity.
type Post struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Desc       string          `json:"desc"`
	Image      string          `json:"image,omitempty"`
	AuthorID   string          `json:"authorId"`
	AuthorName string          `json:"authorName"`
	AuthorImg  string          `json:"authorImg,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	PublishAt  time.Time       `json:"publishAt"`
	State      ModerationState `json:"moderationState"`
	Likers     []string        `json:"likers"`
	Dislikers  []string        `json:"dislikers"`
}

type CreatePostRequest struct {
	Title     string     `json:"title" binding:"required"`
	Desc      string     `json:"desc" binding:"required"`
	Image     string     `json:"image"`
	PublishAt *time.Time `json:"publish_at"`
}

type UpdatePostRequest struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Image string `json:"image"`
}

type PostResponse struct {
	Post
	LikeCount    int    `json:"like_count"`
	DislikeCount int    `json:"dislike_count"`
	CommentCount int    `json:"comment_count"`
	Upcoming     bool   `json:"upcoming"`
	Countdown    string `json:"countdown,omitempty"`
}

type FeedPageResponse struct {
	Items      []PostResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type ModerateRequest struct {
	Action string `json:"action" binding:"required,oneof=approve disapprove"`
}
