package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrLikeTarget is returned when a like does not name exactly one target.
var ErrLikeTarget = errors.New("like must reference exactly one of post or comment")

// Like is a ledger row: one user liking exactly one post or one comment.
// Counts shown to clients are always derived from these rows.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;uniqueIndex:idx_like_user_comment" json:"userId"`
	PostID    *uint     `gorm:"uniqueIndex:idx_like_user_post;index" json:"postId,omitempty"`
	CommentID *uint     `gorm:"uniqueIndex:idx_like_user_comment;index" json:"commentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate enforces the exactly-one-target rule.
func (l *Like) Validate() error {
	hasPost := l.PostID != nil && *l.PostID != 0
	hasComment := l.CommentID != nil && *l.CommentID != 0
	if hasPost == hasComment {
		return ErrLikeTarget
	}
	return nil
}

// BeforeCreate keeps malformed likes out of the ledger.
func (l *Like) BeforeCreate(_ *gorm.DB) error {
	return l.Validate()
}
