package models

import "time"

// Post is a citizen's public post.
type Post struct {
	ID           string     `json:"_id" db:"id"`
	UserID       string     `json:"userId" db:"user_id"`
	Caption      string     `json:"caption" db:"caption"`
	Category     string     `json:"category" db:"category"`
	Images       StringList `json:"images" db:"images_json"`
	LikeCount    int        `json:"likeCount" db:"like_count"`
	CommentCount int        `json:"commentCount" db:"comment_count"`
	LikedByMe    bool       `json:"likedByMe" db:"liked_by_me"`
	Author       Author     `json:"user" db:"-"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// Comment is a single comment on a post.
type Comment struct {
	ID          string    `json:"_id" db:"id"`
	PostID      string    `json:"postId" db:"post_id"`
	UserID      string    `json:"userId" db:"user_id"`
	CommentText string    `json:"commentText" db:"comment_text"`
	Author      Author    `json:"user" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
