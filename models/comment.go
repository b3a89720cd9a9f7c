package models

import "time"

// Comment lives in its own collection keyed by ID. ParentID is empty for a
// top-level comment and holds the parent comment ID for a reply; replies are
// exactly one level deep. DisplayName is the pseudonym (or "Admin") resolved
// at write time, never recomputed at render time.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	ParentID    string    `json:"parentId"`
	Text        string    `json:"text"`
	Image       string    `json:"image,omitempty"`
	SenderID    string    `json:"senderId"`
	DisplayName string    `json:"displayName"`
	Timestamp   time.Time `json:"timestamp"`
}

type CreateCommentRequest struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	ParentID string `json:"parent_id"`
}

// ThreadComment is a top-level comment with its replies attached, in the
// display order the thread view uses.
type ThreadComment struct {
	Comment
	Replies []Comment `json:"replies"`
}
